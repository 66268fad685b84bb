package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewServer(t *testing.T) {
	server := NewServer(":18080", zap.NewNop())

	assert.NotNil(t, server)
	assert.Equal(t, ":18080", server.server.Addr)
}

func TestServerMetricsAndHealthEndpoints(t *testing.T) {
	server := NewServer(":18081", zap.NewNop())
	server.StartAsync()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	}()

	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get("http://localhost:18081/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "# HELP")

	healthResp, err := http.Get("http://localhost:18081/health")
	require.NoError(t, err)
	defer healthResp.Body.Close()
	healthBody, err := io.ReadAll(healthResp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(healthBody))
}

func TestRecordHTTPRequest(t *testing.T) {
	RecordHTTPRequest("/version", "200", 10*time.Millisecond)
	// No panic and the vector accepts the labels; value assertions would
	// require scraping the registry, covered by the /metrics test above.
}
