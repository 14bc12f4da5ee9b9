package collector

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// loadTestData loads a JSON fixture from testdata directory
func loadTestData(t *testing.T, filename string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", filename))
	require.NoError(t, err, "Failed to read test data file: %s", filename)
	return data
}

// loadRecords decodes a fixture the way the Mist client does, numbers kept as json.Number.
func loadRecords(t *testing.T, filename string) []Record {
	t.Helper()

	var raw []map[string]any
	dec := json.NewDecoder(bytes.NewReader(loadTestData(t, filename)))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&raw), "Failed to parse test data file: %s", filename)
	return toRecords(raw)
}
