package keystore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *KeyStore {
	t.Helper()
	ks, err := Open(t.TempDir() + "/keys.db")
	require.NoError(t, err)
	t.Cleanup(func() { ks.Close() })
	return ks
}

func TestNewKeyDefaultExpirationIsApproximately400Days(t *testing.T) {
	ks := newTestStore(t)
	_, expires, err := ks.NewKey(context.Background(), "test key", time.Time{})
	require.NoError(t, err)

	want := time.Now().Add(defaultExpiration)
	assert.WithinDuration(t, want, expires, time.Minute)
}

func TestAuthorizeUnknownKeyIsRejected(t *testing.T) {
	ks := newTestStore(t)
	ok, err := ks.Authorize(context.Background(), "nope", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizeFreshKeyWithoutScope(t *testing.T) {
	ks := newTestStore(t)
	key, _, err := ks.NewKey(context.Background(), "test", time.Time{})
	require.NoError(t, err)

	ok, err := ks.Authorize(context.Background(), key, "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorizeRequiresScopeToBeSet(t *testing.T) {
	ks := newTestStore(t)
	key, _, err := ks.NewKey(context.Background(), "test", time.Time{})
	require.NoError(t, err)

	ok, err := ks.Authorize(context.Background(), key, ScopeAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ks.SetScope(context.Background(), key, ScopeAdmin, true))

	ok, err = ks.Authorize(context.Background(), key, ScopeAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthorizeExpiredKeyIsRejected(t *testing.T) {
	ks := newTestStore(t)
	key, _, err := ks.NewKey(context.Background(), "test", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	ok, err := ks.Authorize(context.Background(), key, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScopesRoundTrip(t *testing.T) {
	ks := newTestStore(t)
	key, _, err := ks.NewKey(context.Background(), "test", time.Time{})
	require.NoError(t, err)

	require.NoError(t, ks.SetScope(context.Background(), key, ScopeGetRawFile, true))
	require.NoError(t, ks.SetScope(context.Background(), key, ScopeAdmin, true))

	scopes, err := ks.Scopes(context.Background(), key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ScopeGetRawFile, ScopeAdmin}, scopes)

	// adding then removing a scope leaves the rest unchanged (spec.md §8 scenario)
	require.NoError(t, ks.SetScope(context.Background(), key, ScopeGetMetadata, true))
	require.NoError(t, ks.SetScope(context.Background(), key, ScopeGetMetadata, false))

	scopes, err = ks.Scopes(context.Background(), key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ScopeGetRawFile, ScopeAdmin}, scopes)
}

func TestSetScopeRejectsUnknownScope(t *testing.T) {
	ks := newTestStore(t)
	key, _, err := ks.NewKey(context.Background(), "test", time.Time{})
	require.NoError(t, err)

	err = ks.SetScope(context.Background(), key, "bogus", true)
	assert.Error(t, err)
}

func TestSetScopeOnMissingKey(t *testing.T) {
	ks := newTestStore(t)
	err := ks.SetScope(context.Background(), "does-not-exist", ScopeAdmin, true)
	assert.Error(t, err)
}
