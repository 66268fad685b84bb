package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// An explicit nImages=0 must short-circuit to an empty batch rather than
// falling back to the default batch size (spec.md §8 boundary property 1).
// GetNextBatch's nImages<=0 guard returns before touching the candidate-pool
// queries, so this exercises the handler without needing a live Postgres.
func TestRetrieveBatchExplicitZeroReturnsEmptyBatch(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPost, "/api/v1/jobs/retrieve_batch?worker=w1&nImages=0", env.key)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Jobs []any `json:"jobs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Empty(t, body.Jobs)
}
