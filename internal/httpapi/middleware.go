package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/keystore"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/metrics"
	"github.com/go-chi/chi/v5"
)

type contextKey int

const keyIdentityContextKey contextKey = iota

// keyIdentity returns the authenticated caller's key id, as stashed by
// requireScope, or "" for an unauthenticated (e.g. OPTIONS) request.
func keyIdentity(r *http.Request) string {
	id, _ := r.Context().Value(keyIdentityContextKey).(string)
	return id
}

// requireScope authenticates the api_key header against ks, requiring scope
// when non-empty (spec.md §4.3 Authentication). OPTIONS requests pass
// through unauthenticated so the CORS middleware's preflight response is
// never blocked.
func requireScope(ks *keystore.KeyStore, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get("api_key")
			if key == "" {
				writeError(w, apperrors.Unauthorized("missing api_key header"))
				return
			}
			ok, err := ks.Authorize(r.Context(), key, scope)
			if err != nil {
				writeError(w, err)
				return
			}
			if !ok {
				writeError(w, apperrors.Unauthorized("api_key invalid, expired, or missing required scope"))
				return
			}
			ctx := context.WithValue(r.Context(), keyIdentityContextKey, ks.Identify(key))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// metricsMiddleware records the per-endpoint call/status/duration triplet
// spec.md §4.3 Observability requires, keyed on the matched chi route
// pattern rather than the raw path so checksum/UUID path segments don't
// explode the label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		endpoint := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			endpoint = rc.RoutePattern()
		}
		metrics.RecordHTTPRequest(endpoint, strconv.Itoa(sw.status), time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an AppError to its HTTP status (spec.md §7); any other
// error is treated as an unmapped internal failure.
func writeError(w http.ResponseWriter, err error) {
	if ae, ok := apperrors.As(err); ok {
		status := ae.Type.StatusCode()
		if status == 0 {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]string{"error": ae.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
