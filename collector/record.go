package collector

import (
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Record is one entity (site, device, edge) as decoded from a Mist API response.
// Values are the usual encoding/json shapes: map[string]any, []any, string,
// json.Number or float64, bool and nil.
type Record map[string]any

// FieldPath addresses a scalar leaf inside a Record.
type FieldPath []string

// ParsePath splits a dotted path such as "port_stat.eth0.tx_bytes".
func ParsePath(dotted string) FieldPath {
	return FieldPath(strings.Split(dotted, "."))
}

func (p FieldPath) String() string {
	return strings.Join(p, ".")
}

// Value is the result of resolving a FieldPath. The zero Value is absent.
type Value struct {
	text    string
	present bool
}

// Absent marks a path that could not be fully traversed.
var Absent = Value{}

// Present wraps an already rendered scalar.
func Present(text string) Value {
	return Value{text: text, present: true}
}

// IsAbsent reports whether the path could not be resolved.
func (v Value) IsAbsent() bool {
	return !v.present
}

// String returns the lowercase rendering of the leaf, or "" when absent.
func (v Value) String() string {
	return v.text
}

// Resolve walks path through rec and returns the leaf rendered as a lowercase string.
// Missing keys, out of range indexes, non-container intermediates, null leaves and
// container leaves all resolve to Absent.
func Resolve(rec Record, path FieldPath) Value {
	if len(path) == 0 {
		return Absent
	}
	return resolve(map[string]any(rec), path)
}

func resolve(node any, path FieldPath) Value {
	if len(path) == 0 {
		return scalar(node)
	}

	var next any
	switch n := node.(type) {
	case map[string]any:
		child, ok := n[path[0]]
		if !ok {
			return Absent
		}
		next = child
	case Record:
		child, ok := n[path[0]]
		if !ok {
			return Absent
		}
		next = child
	case []any:
		idx, err := strconv.Atoi(path[0])
		if err != nil || idx < 0 || idx >= len(n) {
			return Absent
		}
		next = n[idx]
	default:
		return Absent
	}
	return resolve(next, path[1:])
}

func scalar(leaf any) Value {
	switch leaf.(type) {
	case nil, map[string]any, Record, []any:
		return Absent
	}
	text, err := cast.ToStringE(leaf)
	if err != nil {
		return Absent
	}
	return Present(strings.ToLower(text))
}
