package collector

import (
	"slices"
	"strings"
)

const statusMetric = "mist_exporter_status"

// Label is one name/value pair of a LabelSet.
type Label struct {
	Name  string
	Value string
}

// LabelSet is an ordered set of labels. Order of first insertion is kept so identical
// input always renders identically.
type LabelSet []Label

// Labels builds a LabelSet from alternating name/value arguments.
func Labels(kv ...string) LabelSet {
	ls := make(LabelSet, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		ls = ls.With(kv[i], kv[i+1])
	}
	return ls
}

// With returns a copy of ls with name set to value. An existing label of the same
// (case-insensitive) name keeps its position and takes the new value.
func (ls LabelSet) With(name, value string) LabelSet {
	out := make(LabelSet, len(ls), len(ls)+1)
	copy(out, ls)
	for i := range out {
		if strings.EqualFold(out[i].Name, name) {
			out[i].Value = value
			return out
		}
	}
	return append(out, Label{Name: name, Value: value})
}

// Has reports whether ls carries a label called name, ignoring case.
func (ls LabelSet) Has(name string) bool {
	return slices.ContainsFunc(ls, func(l Label) bool {
		return strings.EqualFold(l.Name, name)
	})
}

// Merge returns ls followed by the labels of other; on a name clash other wins.
func (ls LabelSet) Merge(other LabelSet) LabelSet {
	out := append(make(LabelSet, 0, len(ls)+len(other)), ls...)
	for _, l := range other {
		out = out.With(l.Name, l.Value)
	}
	return out
}

var labelValueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// FormatMetric renders one exposition line: name{k1="v1", k2="v2"} value.
// The metric name and label names are lowercased; an empty set renders as {}.
func FormatMetric(name string, labels LabelSet, value string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(name))
	b.WriteByte('{')
	for i, l := range labels {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strings.ToLower(l.Name))
		b.WriteString(`="`)
		b.WriteString(labelValueEscaper.Replace(l.Value))
		b.WriteByte('"')
	}
	b.WriteString("} ")
	b.WriteString(value)
	return b.String()
}

// FormatStatus renders the trailing exporter status line.
func FormatStatus(ok bool) string {
	if ok {
		return statusMetric + " 1"
	}
	return statusMetric + " 0"
}

// FormatHelp renders a HELP comment line.
func FormatHelp(name, help string) string {
	return "# HELP " + strings.ToLower(name) + " " + help
}
