// Command spiderctl is a thin CLI over the spider service's admin HTTP
// endpoints: minting API keys and managing their scopes (spec.md §6
// /api/v1/admin/*).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	root := flag.String("root", os.Getenv("SPIDER_ROOT_URL"), "base URL of the running spider service")
	apiKey := flag.String("api-key", os.Getenv("SPIDER_ADMIN_KEY"), "an admin-scoped api_key")

	cmd := os.Args[1]
	args := os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.StringVar(root, "root", *root, "base URL of the running spider service")
	fs.StringVar(apiKey, "api-key", *apiKey, "an admin-scoped api_key")

	switch cmd {
	case "new-key":
		comment := fs.String("comment", "", "free-form note stored with the key")
		scopes := fs.String("scopes", "", "comma-separated scopes to grant immediately")
		fs.Parse(args)
		runNewKey(*root, *apiKey, *comment, *scopes)
	case "grant-scope":
		key := fs.String("key", "", "target key")
		scope := fs.String("scope", "", "scope to grant")
		fs.Parse(args)
		runSetScope(*root, *apiKey, *key, *scope, http.MethodPut)
	case "revoke-scope":
		key := fs.String("key", "", "target key")
		scope := fs.String("scope", "", "scope to revoke")
		fs.Parse(args)
		runSetScope(*root, *apiKey, *key, *scope, http.MethodDelete)
	case "scopes":
		key := fs.String("key", "", "target key")
		fs.Parse(args)
		runGetScopes(*root, *apiKey, *key)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: spiderctl <new-key|grant-scope|revoke-scope|scopes> [flags]")
}

func runNewKey(root, apiKey, comment, scopes string) {
	q := url.Values{}
	if comment != "" {
		q.Set("comment", comment)
	}
	if scopes != "" {
		q.Set("scopes", scopes)
	}
	mustRequest(http.MethodPost, root+"/api/v1/admin/new_key?"+q.Encode(), apiKey)
}

func runSetScope(root, apiKey, key, scope, method string) {
	q := url.Values{"key": {key}, "scope": {scope}}
	mustRequest(method, root+"/api/v1/admin/scope?"+q.Encode(), apiKey)
}

func runGetScopes(root, apiKey, key string) {
	q := url.Values{"key": {key}}
	mustRequest(http.MethodGet, root+"/api/v1/admin/scope?"+q.Encode(), apiKey)
}

func mustRequest(method, fullURL, apiKey string) {
	req, err := http.NewRequest(method, fullURL, nil)
	if err != nil {
		fatal(err)
	}
	req.Header.Set("api_key", apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fatal(err)
	}
	if resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "spider returned %d: %s\n", resp.StatusCode, body)
		os.Exit(1)
	}
	if len(body) == 0 {
		return
	}

	var pretty any
	if err := json.Unmarshal(body, &pretty); err != nil {
		fmt.Println(string(body))
		return
	}
	encoded, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Println(string(encoded))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
