// Package keystore is the embedded API-key authenticator (spec.md §4.4):
// salted, iterated key hashes plus a row of boolean scope columns, stored in
// SQLite and migrated forward on open, the direct port of web_auth.py's
// KeyStore.
package keystore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	apperrors "github.com/UCSD-E4E/fishsense-data-processing-spider/internal/errors"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations        = 200_000
	defaultExpiration = 400 * 24 * time.Hour
)

// Scope names, spec.md §4.4: the capability an authenticated request is
// checked against.
const (
	ScopeDoDiscovery        = "doDiscovery"
	ScopeDoLabelStudioSync  = "doLabelStudioSync"
	ScopeGetRawFile         = "getRawFile"
	ScopePutPreprocessFrame = "putPreprocessedFrame"
	ScopeGetLaserLabel      = "getLaserLabel"
	ScopeGetLaserFrame      = "getLaserFrame"
	ScopePutLaserFrame      = "putLaserFrame"
	ScopePutDebugBlob       = "putDebugBlob"
	ScopeAdmin              = "admin"
	ScopeGetMetadata        = "getMetadata"
)

// AllScopes lists every recognized scope column, in column-declaration
// order, used by migrations and by scope validation at the HTTP boundary.
var AllScopes = []string{
	ScopeDoDiscovery, ScopeDoLabelStudioSync, ScopeGetRawFile, ScopePutPreprocessFrame,
	ScopeGetLaserLabel, ScopeGetLaserFrame, ScopePutLaserFrame, ScopePutDebugBlob,
	ScopeAdmin, ScopeGetMetadata,
}

func validScope(scope string) bool {
	for _, s := range AllScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// KeyStore wraps the SQLite-backed key database. Each operation opens a
// short-lived connection through the shared *sql.DB pool; SQLite serializes
// writers itself.
type KeyStore struct {
	db         *sql.DB
	salt       string
	iterations int
}

// Open initializes (or migrates) the database at path and returns a ready
// KeyStore.
func Open(path string) (*KeyStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeFatal, "opening key store")
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers on one *sql.DB handle set >1

	ks := &KeyStore{db: db, iterations: iterations}
	if err := ks.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return ks, nil
}

func (k *KeyStore) Close() error {
	return k.db.Close()
}

func (k *KeyStore) hashKey(key string) string {
	derived := pbkdf2.Key([]byte(key), []byte(k.salt), k.iterations, sha256.Size, sha256.New)
	return hex.EncodeToString(derived)
}

// Identify returns the stable, non-secret id a caller's plaintext key hashes
// to, for recording against rows (e.g. a job's originating key) without
// persisting the bearer credential itself.
func (k *KeyStore) Identify(key string) string {
	return k.hashKey(key)
}

// NewKey generates a random 32-byte-hex API key, stores its hash with
// expiration and comment, and returns the plaintext key (the only time it is
// ever returned). expires defaults to now+400 days when zero.
func (k *KeyStore) NewKey(ctx context.Context, comment string, expires time.Time) (string, time.Time, error) {
	raw, err := randomHexKey()
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(err, apperrors.TypeFatal, "generating key material")
	}
	if expires.IsZero() {
		expires = time.Now().Add(defaultExpiration)
	}
	hash := k.hashKey(raw)

	_, err = k.db.ExecContext(ctx,
		`INSERT INTO keys (hash, expires, comment) VALUES (?, ?, ?)`,
		hash, expires.Unix(), comment,
	)
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(err, apperrors.TypeFatal, "storing new key")
	}
	return raw, expires, nil
}

// Authorize reports whether key exists, is unexpired, and (if scope is
// non-empty) has that scope set (spec.md §4.3 Authentication).
func (k *KeyStore) Authorize(ctx context.Context, key, scope string) (bool, error) {
	if scope != "" && !validScope(scope) {
		return false, apperrors.BadRequest("unknown scope: " + scope)
	}
	hash := k.hashKey(key)

	query := `SELECT expires FROM keys WHERE hash = ?`
	args := []any{hash}
	if scope != "" {
		query = `SELECT expires FROM keys WHERE hash = ? AND ` + scope + ` = 1`
	}

	var expires int64
	err := k.db.QueryRowContext(ctx, query, args...).Scan(&expires)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.TypeTransient, "checking key authorization")
	}
	return time.Unix(expires, 0).After(time.Now()), nil
}

// SetScope sets a single scope boolean on the key identified by its
// plaintext value. Only admin-scoped callers may invoke this at the HTTP
// boundary (spec.md §1 invariant: scope booleans read-only under the
// authorize path).
func (k *KeyStore) SetScope(ctx context.Context, key, scope string, value bool) error {
	if !validScope(scope) {
		return apperrors.BadRequest("unknown scope: " + scope)
	}
	hash := k.hashKey(key)
	res, err := k.db.ExecContext(ctx, `UPDATE keys SET `+scope+` = ? WHERE hash = ?`, value, hash)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeTransient, "setting scope")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeTransient, "checking scope update result")
	}
	if n == 0 {
		return apperrors.NotFound("key")
	}
	return nil
}

// Scopes lists the scope names currently set true on key.
func (k *KeyStore) Scopes(ctx context.Context, key string) ([]string, error) {
	hash := k.hashKey(key)
	columns := "hash"
	for _, s := range AllScopes {
		columns += ", " + s
	}
	row := k.db.QueryRowContext(ctx, `SELECT `+columns+` FROM keys WHERE hash = ?`, hash)

	dest := make([]any, len(AllScopes)+1)
	var discardHash string
	dest[0] = &discardHash
	flags := make([]bool, len(AllScopes))
	for i := range flags {
		dest[i+1] = &flags[i]
	}
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.NotFound("key")
		}
		return nil, apperrors.Wrap(err, apperrors.TypeTransient, "reading scopes")
	}

	var active []string
	for i, flag := range flags {
		if flag {
			active = append(active, AllScopes[i])
		}
	}
	return active, nil
}
