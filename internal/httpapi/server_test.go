package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/catalog"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/config"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/filecache"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/keystore"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/orchestrator"
	"github.com/UCSD-E4E/fishsense-data-processing-spider/internal/worker"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	server *Server
	mock   sqlmock.Sqlmock
	key    string
}

func newTestEnv(t testing.TB, scope string) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	cat := catalog.NewWithDB(sqlx.NewDb(db, "sqlmock"), zap.NewNop())

	ksPath := filepath.Join(t.TempDir(), "keys.db")
	ks, err := keystore.Open(ksPath)
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })

	key, _, err := ks.NewKey(context.Background(), "test key", time.Time{})
	require.NoError(t, err)
	if scope != "" {
		require.NoError(t, ks.SetScope(context.Background(), key, scope, true))
	}

	cache, err := filecache.Open(t.TempDir(), 10, zap.NewNop())
	require.NoError(t, err)

	noop := func(ctx context.Context) {}
	deps := Deps{
		Config:       config.DefaultConfig(),
		Catalog:      cat,
		Orchestrator: orchestrator.New(cat, zap.NewNop()),
		Cache:        cache,
		KeyStore:     ks,
		Discovery:    worker.NewRunner("discovery", time.Hour, zap.NewNop(), noop),
		LabelSync:    worker.NewRunner("labelsync", time.Hour, zap.NewNop(), noop),
		Log:          zap.NewNop(),
	}

	return &testEnv{server: NewServer(":0", deps), mock: mock, key: key}
}

func (e *testEnv) do(t testing.TB, method, path, apiKey string) *http.Response {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if apiKey != "" {
		req.Header.Set("api_key", apiKey)
	}
	e.server.httpServer.Handler.ServeHTTP(rec, req)
	return rec.Result()
}

const sampleChecksum = "0123456789abcdef0123456789abcdef"

func TestMissingAPIKeyIsUnauthorized(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodGet, "/api/v1/data/raw/"+sampleChecksum, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestScopedKeyCannotCallUnrelatedScope(t *testing.T) {
	env := newTestEnv(t, keystore.ScopeGetRawFile)

	// A getRawFile-scoped key is rejected on the doDiscovery-scoped endpoint
	// (spec.md §8's "scope to one capability" property).
	resp := env.do(t, http.MethodPost, "/api/v1/control/discover", env.key)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestScopedKeyCanReachItsOwnEndpoint(t *testing.T) {
	env := newTestEnv(t, keystore.ScopeGetRawFile)
	env.mock.ExpectQuery(`SELECT checksum, path, dive_path`).
		WillReturnRows(sqlmock.NewRows([]string{
			"checksum", "path", "dive_path", "camera_serial", "camera_id", "capture_date",
			"preprocess_state", "preprocess_laser_state", "preprocess_jpeg_path", "preprocess_laser_jpeg_path",
		}))

	resp := env.do(t, http.MethodGet, "/api/v1/data/raw/"+sampleChecksum, env.key)
	// No matching image row: the handler fails with a mapped AppError
	// (404), never the 401 an unrelated-scope call would get.
	require.NotEqual(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVersionRequiresNoAuth(t *testing.T) {
	env := newTestEnv(t, "")
	resp := env.do(t, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSPreflightBypassesAuth(t *testing.T) {
	env := newTestEnv(t, "")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/control/discover", nil)
	req.Header.Set("Origin", "https://example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	env.server.httpServer.Handler.ServeHTTP(rec, req)

	require.NotEqual(t, http.StatusUnauthorized, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
