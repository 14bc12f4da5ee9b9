package collector

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// SelfMetrics describes one exporter run. A fresh registry is used per run.
type SelfMetrics struct {
	registry     *prometheus.Registry
	apiRequests  *prometheus.CounterVec
	sitesMatched prometheus.Gauge
	runDuration  prometheus.Gauge
}

// NewSelfMetrics returns a *SelfMetrics with its collectors registered.
func NewSelfMetrics() *SelfMetrics {
	s := &SelfMetrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: exporter,
				Name:      "api_requests_total",
				Help:      "Mist API requests issued during this run.",
			},
			[]string{"code", "method"},
		),
		sitesMatched: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: exporter,
				Name:      "sites_matched",
				Help:      "Sites selected by the site name filter.",
			},
		),
		runDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: exporter,
				Name:      "run_duration_seconds",
				Help:      "Time spent fetching and building metrics.",
			},
		),
	}
	s.registry.MustRegister(s.apiRequests, s.sitesMatched, s.runDuration)
	return s
}

// InstrumentRoundTripper counts API requests by status code and method.
func (s *SelfMetrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperCounter(s.apiRequests, next)
}

// SetSitesMatched records the number of sites after filtering.
func (s *SelfMetrics) SetSitesMatched(n int) {
	s.sitesMatched.Set(float64(n))
}

// Render gathers the registry and renders it in the text exposition format.
func (s *SelfMetrics) Render(runDuration time.Duration) ([]string, error) {
	s.runDuration.Set(runDuration.Seconds())

	families, err := s.registry.Gather()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, err
		}
	}
	if buf.Len() == 0 {
		return nil, nil
	}
	return strings.Split(strings.TrimRight(buf.String(), "\n"), "\n"), nil
}
