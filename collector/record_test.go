package collector

import (
	"encoding/json"
	"testing"

	gta "gotest.tools/v3/assert"
)

func TestResolve(t *testing.T) {
	rec := Record{
		"name":        "AP-Lobby",
		"uptime":      json.Number("86400"),
		"cpu":         12.5,
		"connected":   true,
		"disabled":    false,
		"nothing":     nil,
		"empty":       "",
		"port_stat":   map[string]any{"eth0": map[string]any{"tx_bytes": json.Number("1000")}},
		"ip_config":   map[string]any{"dns": []any{"10.0.0.1", "10.0.0.2"}},
		"radio_stat":  Record{"band_5": Record{"util_all": 25.0}},
		"scalar_root": "text",
	}

	tT := map[string]struct {
		path        string
		wantValue   string
		wantPresent bool
	}{
		"top level string is lowercased": {path: "name", wantValue: "ap-lobby", wantPresent: true},
		"json number":                    {path: "uptime", wantValue: "86400", wantPresent: true},
		"float":                          {path: "cpu", wantValue: "12.5", wantPresent: true},
		"true":                           {path: "connected", wantValue: "true", wantPresent: true},
		"false is present":               {path: "disabled", wantValue: "false", wantPresent: true},
		"empty string is present":        {path: "empty", wantPresent: true},
		"nested":                         {path: "port_stat.eth0.tx_bytes", wantValue: "1000", wantPresent: true},
		"array index":                    {path: "ip_config.dns.1", wantValue: "10.0.0.2", wantPresent: true},
		"nested Record values":           {path: "radio_stat.band_5.util_all", wantValue: "25", wantPresent: true},
		"missing key":                    {path: "num_clients"},
		"missing intermediate":           {path: "port_stat.eth1.tx_bytes"},
		"null leaf":                      {path: "nothing"},
		"object leaf":                    {path: "port_stat.eth0"},
		"array leaf":                     {path: "ip_config.dns"},
		"index out of range":             {path: "ip_config.dns.2"},
		"negative index":                 {path: "ip_config.dns.-1"},
		"non numeric index":              {path: "ip_config.dns.first"},
		"descending into a scalar":       {path: "scalar_root.child"},
		"descending into null":           {path: "nothing.child"},
	}
	for tName, test := range tT {
		t.Run(tName, func(t *testing.T) {
			got := Resolve(rec, ParsePath(test.path))
			gta.Equal(t, test.wantPresent, !got.IsAbsent())
			gta.Equal(t, test.wantValue, got.String())
		})
	}
}

func TestResolveEmptyPath(t *testing.T) {
	gta.Assert(t, Resolve(Record{"a": "b"}, nil).IsAbsent())
	gta.Assert(t, Resolve(nil, ParsePath("a")).IsAbsent())
}

func TestFieldPathString(t *testing.T) {
	gta.Equal(t, "port_stat.eth0.tx_bytes", ParsePath("port_stat.eth0.tx_bytes").String())
	gta.DeepEqual(t, FieldPath{"sensor_stat", "redundancies", "PS", "state"}, ParsePath("sensor_stat.redundancies.PS.state"))
}
