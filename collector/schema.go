package collector

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric name parts.
const (
	namespace = "mist"
	exporter  = "exporter"
)

// Kind selects how a resolved value becomes a sample value.
type Kind int

const (
	// KindNumber passes numeric text through.
	KindNumber Kind = iota
	// KindEnum maps a token through the entry's Domain.
	KindEnum
	// KindRedundancy maps a redundancy state and exposes the raw state as a label.
	KindRedundancy
)

// Entry is one row of an entity metric schema.
type Entry struct {
	Name   string
	Path   FieldPath
	Labels LabelSet
	Kind   Kind
	Domain *Domain
}

// Schema is the fixed metric table of one entity class. Entries are emitted in order.
type Schema struct {
	Subsystem string
	Help      string
	Entries   []Entry
}

// Prefix is the metric name prefix shared by the class, e.g. mist_device.
func (s *Schema) Prefix() string {
	return namespace + "_" + s.Subsystem
}

func (s *Schema) fqName(name string) string {
	return prometheus.BuildFQName(namespace, s.Subsystem, name)
}

func (s *Schema) number(name, path string, labels ...string) {
	s.Entries = append(s.Entries, Entry{
		Name:   s.fqName(name),
		Path:   ParsePath(path),
		Labels: Labels(labels...),
		Kind:   KindNumber,
	})
}

func (s *Schema) enum(name, path string, domain *Domain, labels ...string) {
	s.Entries = append(s.Entries, Entry{
		Name:   s.fqName(name),
		Path:   ParsePath(path),
		Labels: Labels(labels...),
		Kind:   KindEnum,
		Domain: domain,
	})
}

func (s *Schema) redundancy(name, path string, labels ...string) {
	s.Entries = append(s.Entries, Entry{
		Name:   s.fqName(name),
		Path:   ParsePath(path),
		Labels: Labels(labels...),
		Kind:   KindRedundancy,
		Domain: RedundancyState,
	})
}
