package collector

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelfMetricsCountsRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	self := NewSelfMetrics()
	client := &http.Client{Transport: self.InstrumentRoundTripper(http.DefaultTransport)}
	for _, path := range []string{"/ok", "/ok", "/missing"} {
		resp, err := client.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(self.apiRequests.WithLabelValues("200", "get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(self.apiRequests.WithLabelValues("404", "get")))
}

func TestSelfMetricsRender(t *testing.T) {
	self := NewSelfMetrics()
	self.SetSitesMatched(3)

	lines, err := self.Render(1500 * time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"# HELP mist_exporter_run_duration_seconds Time spent fetching and building metrics.",
		"# TYPE mist_exporter_run_duration_seconds gauge",
		"mist_exporter_run_duration_seconds 1.5",
		"# HELP mist_exporter_sites_matched Sites selected by the site name filter.",
		"# TYPE mist_exporter_sites_matched gauge",
		"mist_exporter_sites_matched 3",
	}, lines)
	assert.Equal(t, 3.0, testutil.ToFloat64(self.sitesMatched))
	assert.Equal(t, 2, testutil.CollectAndCount(self.runDuration)+testutil.CollectAndCount(self.sitesMatched))
}
