package collector

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/itchyny/gojq"
	"github.com/mlueckert/mist-exporter/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gta "gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
)

var deviceBody = []byte(`{
  "name": "ap-lobby",
  "radio_stat": {
    "band_24": {"channel": 6, "tx_bytes": 1200, "noise_floor": -92},
    "band_5": {"channel": 36, "tx_bytes": 3400, "noise_floor": -97}
  },
  "env_stat": {"cpu_temp": 55.5}
}`)

func Test_metricsFromBody(t *testing.T) {
	tT := map[string]struct {
		rawBody       []byte
		jqFilter      string
		wantErrString string
		wantMetrics   []JQYieldedMetric
	}{
		"happy path for radio bands": {
			rawBody: deviceBody,
			jqFilter: `[.radio_stat | to_entries[] | {
        name: "mist_device_radio_noise_floor",
        value: .value.noise_floor,
        labels: {band: (.key | ltrimstr("band_"))}
      }] | sort_by(.labels.band)`,
			wantMetrics: []JQYieldedMetric{
				{
					Name:   "mist_device_radio_noise_floor",
					Value:  -92,
					Labels: map[string]string{"band": "24"},
				},
				{
					Name:   "mist_device_radio_noise_floor",
					Value:  -97,
					Labels: map[string]string{"band": "5"},
				},
			},
		},
		"literal integers and booleans are accepted": {
			rawBody: deviceBody,
			jqFilter: `[{name: "mist_device_has_env", value: (.env_stat != null)},
        {name: "mist_device_constant", value: 3}]`,
			wantMetrics: []JQYieldedMetric{
				{Name: "mist_device_has_env", Value: 1, Labels: map[string]string{}},
				{Name: "mist_device_constant", Value: 3, Labels: map[string]string{}},
			},
		},
		"errors are bubbled up": {
			rawBody: deviceBody,
			jqFilter: `[.radio_stat | to_entries[] | {
        name1: "mist_device_radio_noise_floor",
        valuefoo: .value.noise_floor,
        labels: {band: .key}
      }]`,
			wantErrString: "item missing name, provided keys: [labels name1 valuefoo]",
			wantMetrics:   nil,
		},
		"good items survive bad ones": {
			rawBody: deviceBody,
			jqFilter: `[{name: "mist_device_cpu_temp", value: .env_stat.cpu_temp},
        {name: "bad name", value: 1}]`,
			wantErrString: `item contained an invalid metric name "bad name"`,
			wantMetrics: []JQYieldedMetric{
				{Name: "mist_device_cpu_temp", Value: 55.5, Labels: map[string]string{}},
			},
		},
		"items with invalid label names are rejected": {
			rawBody: deviceBody,
			jqFilter: `[{name: "mist_device_x", value: 1, labels: {"bad-name": "v"}},
        {name: "mist_device_x", value: 2, labels: {"__reserved": "v"}},
        {name: "mist_device_x", value: 3, labels: {band: "5"}}]`,
			wantErrString: `item contained an invalid label name "bad-name"`,
			wantMetrics: []JQYieldedMetric{
				{Name: "mist_device_x", Value: 3, Labels: map[string]string{"band": "5"}},
			},
		},
		"halt stops without error": {
			rawBody:     deviceBody,
			jqFilter:    `halt`,
			wantMetrics: nil,
		},
		"runtime errors abort the record": {
			rawBody:       deviceBody,
			jqFilter:      `error("boom")`,
			wantErrString: "boom",
			wantMetrics:   []JQYieldedMetric{},
		},
	}
	for tName, test := range tT {
		t.Run(tName, func(t *testing.T) {
			query, err := gojq.Parse(test.jqFilter)
			gta.NilError(t, err)

			got, err := metricsFromBody(context.Background(), query, test.rawBody)
			if test.wantErrString != "" {
				gta.Assert(t, cmp.ErrorContains(err, test.wantErrString))
			} else {
				gta.NilError(t, err)
			}
			gta.Assert(t, cmp.DeepEqual(test.wantMetrics, got))
		})
	}
}

func Test_convertToMetric(t *testing.T) {
	tT := map[string]struct {
		item       map[string]any
		wantMetric JQYieldedMetric
		wantError  string
	}{
		"normal, no labels": {
			item: map[string]any{
				"name":  "foo",
				"value": 1.0,
			},
			wantMetric: JQYieldedMetric{
				Name:   "foo",
				Value:  1.0,
				Labels: map[string]string{},
			},
		},
		"normal, labels": {
			item: map[string]any{
				"name":  "foo",
				"value": 1.0,
				"labels": map[string]any{
					"tree": "house",
					// non-string label values are dropped
					"count": 2.0,
				},
			},
			wantMetric: JQYieldedMetric{
				Name:  "foo",
				Value: 1.0,
				Labels: map[string]string{
					"tree": "house",
				},
			},
		},
		"invalid label name": {
			item: map[string]any{
				"name":   "foo",
				"value":  1.0,
				"labels": map[string]any{"port-id": "eth0", "port": "eth0"},
			},
			wantMetric: JQYieldedMetric{
				Name:   "foo",
				Value:  1.0,
				Labels: map[string]string{"port": "eth0"},
			},
			wantError: `item contained an invalid label name "port-id"`,
		},
		"unexpected input leads to empty metric and error": {
			item: map[string]any{
				"name":  1.0,
				"value": "foo",
			},
			wantMetric: JQYieldedMetric{
				Labels: map[string]string{},
			},
			wantError: "item contained a non-string name\nitem contained a non-numeric value",
		},
		"missing input leads to empty metric and error": {
			item: map[string]any{
				"foo": "name",
			},
			wantMetric: JQYieldedMetric{
				Labels: map[string]string{},
			},
			wantError: "item missing name, provided keys: [foo]\nitem missing value, provided keys: [foo]",
		},
	}

	for tName, test := range tT {
		t.Run(tName, func(t *testing.T) {
			got, err := convertToMetric(test.item)
			gta.Assert(t, cmp.DeepEqual(test.wantMetric, got))
			if test.wantError != "" {
				gta.Assert(t, cmp.ErrorContains(err, test.wantError))
			} else {
				gta.NilError(t, err)
			}
		})
	}
}

func TestJQMetricsBuild(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	devices := NewDeviceBuilder(logger)

	set, err := NewJQMetrics(config.JQMetricConfig{
		Entity: config.EntityDevice,
		Filter: `[{name: "mist_device_cpu_temp", value: .env_stat.cpu_temp, labels: {unit: "celsius", sensor: "cpu"}}]`,
	}, devices, time.Second, logger)
	require.NoError(t, err)
	assert.Equal(t, config.EntityDevice, set.Entity())

	records := []Record{
		{"name": "ap-lobby", "env_stat": map[string]any{"cpu_temp": 55.5}},
		// skipped: no name
		{"env_stat": map[string]any{"cpu_temp": 40.0}},
		// value is null, the item is rejected and logged
		{"name": "ap-roof"},
	}
	lines := set.Build(context.Background(), records)

	assert.Equal(t, []string{
		`mist_device_cpu_temp{hostname="AP-LOBBY", sensor="cpu", unit="celsius"} 55.5`,
	}, lines)
	assert.Contains(t, logs.String(), "jq filter yielded unusable items")
	assert.Contains(t, logs.String(), `"entity":"AP-ROOF"`)
}

func TestJQMetricsBuildLabels(t *testing.T) {
	tT := map[string]struct {
		filter    string
		wantLines []string
		wantLog   string
	}{
		"identity label cannot be replaced": {
			filter:    `[{name: "mist_device_x", value: 1, labels: {hostname: "spoof", band: "5"}}]`,
			wantLines: []string{`mist_device_x{hostname="AP1", band="5"} 1`},
			wantLog:   "jq item label clashes with an identity label",
		},
		"identity clash ignores case": {
			filter:    `[{name: "mist_device_x", value: 1, labels: {HostName: "spoof"}}]`,
			wantLines: []string{`mist_device_x{hostname="AP1"} 1`},
			wantLog:   `"label":"HostName"`,
		},
		"invalid label name drops the item": {
			filter:  `[{name: "mist_device_x", value: 1, labels: {"bad-name": "v"}}]`,
			wantLog: `item contained an invalid label name \"bad-name\"`,
		},
	}
	for tName, test := range tT {
		t.Run(tName, func(t *testing.T) {
			logger, logs := newTestLogger()
			set, err := NewJQMetrics(config.JQMetricConfig{Entity: config.EntityDevice, Filter: test.filter},
				NewDeviceBuilder(logger), time.Second, logger)
			require.NoError(t, err)

			lines := set.Build(context.Background(), []Record{{"name": "ap1"}})
			assert.Equal(t, test.wantLines, lines)
			assert.Contains(t, logs.String(), test.wantLog)
		})
	}
}

func TestNewJQMetricsFromConfig(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	devices, edges := NewDeviceBuilder(logger), NewEdgeBuilder(logger)

	sets, err := NewJQMetricsFromConfig([]config.JQMetricConfig{
		{Entity: config.EntityDevice, Filter: `[]`},
		{Entity: config.EntityEdge, Filter: `[]`},
	}, devices, edges, time.Second, logger)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Same(t, devices, sets[0].builder)
	assert.Same(t, edges, sets[1].builder)

	_, err = NewJQMetricsFromConfig([]config.JQMetricConfig{{Entity: "switch", Filter: `[]`}}, devices, edges, time.Second, logger)
	assert.ErrorContains(t, err, `jq_metrics[0]: unknown entity "switch"`)

	_, err = NewJQMetricsFromConfig([]config.JQMetricConfig{{Entity: config.EntityEdge, Filter: `[.foo`}}, devices, edges, time.Second, logger)
	assert.ErrorContains(t, err, "jq_metrics[0]: jq parse error for edge metrics")
}
