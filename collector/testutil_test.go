package collector

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/mlueckert/mist-exporter/mist"
	"github.com/mlueckert/mist-exporter/mist/misttest"
	"github.com/stretchr/testify/require"
)

const (
	testOrg    = "9777c1a0-6ef6-11e6-8bbf-02e208b2d34f"
	viennaSite = "4ac1dcf4-9d8b-7211-65c4-057819f0862b"
	zurichSite = "6c1c4d6e-0a2b-41f6-9a4b-0c2e1f7d9e10"
)

// mockMistServer is a fake Mist API loaded with fixtures from testdata.
type mockMistServer struct {
	*misttest.Server
	t *testing.T
}

// newMockMistServer serves the site list; device and edge endpoints are added per test.
func newMockMistServer(t *testing.T) *mockMistServer {
	t.Helper()

	m := &mockMistServer{Server: misttest.NewServer(t), t: t}
	m.setFixture("/orgs/"+testOrg+"/sites", "sites.json")
	return m
}

func (m *mockMistServer) setFixture(path, filename string) {
	m.SetAPI(path, http.StatusOK, loadTestData(m.t, filename))
}

func (m *mockMistServer) setDevices(siteID, filename string) {
	m.setFixture("/sites/"+siteID+"/stats/devices", filename)
}

func (m *mockMistServer) setEdges(filename string) {
	m.setFixture("/orgs/"+testOrg+"/stats/mxedges", filename)
}

func (m *mockMistServer) setEdgesJSON(body string) {
	m.SetAPI("/orgs/"+testOrg+"/stats/mxedges", http.StatusOK, []byte(body))
}

// client connects a real mist.Client to the mock server.
func (m *mockMistServer) client(logger *slog.Logger, filter string, self *SelfMetrics) *mist.Client {
	m.t.Helper()

	cfg := mist.ClientConfig{
		BaseURL:         m.BaseURL(),
		OrgID:           testOrg,
		Token:           misttest.Token,
		SiteNameFilter:  filter,
		Timeout:         time.Second,
		SiteConcurrency: 2,
	}
	if self != nil {
		cfg.Instrument = self.InstrumentRoundTripper
	}
	c, err := mist.NewClient(cfg, logger)
	require.NoError(m.t, err, "Failed to create client for mock server")
	return c
}

// newTestLogger returns a debug level JSON logger and the buffer it writes to.
func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
