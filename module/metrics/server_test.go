package metrics

import (
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsp-research/lspmarket/utils/unittest"
)

func TestServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	sc := NewSimulationCollector(registry)
	sc.CurrentEpoch(3)

	server := NewServer(unittest.Logger(), 0, registry)
	select {
	case <-server.Ready():
	case <-time.After(5 * time.Second):
		require.Fail(t, "metrics server did not start")
	}
	require.NotNil(t, server.Addr(), "ready before listening")
	defer func() { <-server.Done() }()

	url := "http://" + server.Addr().String() + metricsEndpoint
	get := func() string {
		resp, err := http.Get(url)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	assert.Contains(t, get(), "lspmarket_runner_current_epoch 3")

	// the first scrape shows up in the request metrics of the second
	body := get()
	assert.Contains(t, body, "lspmarket_http_request_duration_seconds")
	count, err := testutil.GatherAndCount(registry, "lspmarket_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestServer_PortInUse(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewServer(unittest.Logger(), 0, registry)
	<-first.Ready()
	require.NotNil(t, first.Addr())
	defer func() { <-first.Done() }()

	port := first.Addr().(*net.TCPAddr).Port
	second := NewServer(unittest.Logger(), uint(port), prometheus.NewRegistry())
	<-second.Ready()
	assert.Nil(t, second.Addr())
}
