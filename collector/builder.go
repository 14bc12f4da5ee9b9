package collector

import (
	"log/slog"
	"strconv"
	"strings"
)

var (
	namePath  = ParsePath("name")
	infoPaths = []struct {
		label string
		path  FieldPath
	}{
		{"serial", ParsePath("serial")},
		{"model", ParsePath("model")},
		{"hw_rev", ParsePath("hw_rev")},
	}
)

// Result holds the lines one Builder produced for its entity class.
type Result struct {
	Lines []string
	// Entities is the number of records that produced metrics.
	Entities int
	// Metrics is the number of info and schema lines, summary and comment lines excluded.
	Metrics int
}

// Builder turns the records of one entity class into exposition lines using a fixed Schema.
type Builder struct {
	schema *Schema
	logger *slog.Logger
}

// NewBuilder returns a Builder for schema.
func NewBuilder(schema *Schema, logger *slog.Logger) *Builder {
	return &Builder{
		schema: schema,
		logger: logger.With(slog.String("builder", schema.Subsystem)),
	}
}

// Schema exposes the builder's metric table.
func (b *Builder) Schema() *Schema {
	return b.schema
}

// Identity returns the label set shared by every line of rec, or false when rec has
// no usable name and must be skipped.
func (b *Builder) Identity(rec Record) (LabelSet, bool) {
	name := Resolve(rec, namePath)
	if name.IsAbsent() || name.String() == "" {
		return nil, false
	}
	return Labels("hostname", strings.ToUpper(name.String())), true
}

// Build renders every record. Each named record yields one info line and exactly one
// line per schema entry; absent fields render as 0 so series stay contiguous.
func (b *Builder) Build(records []Record) Result {
	prefix := b.schema.Prefix()
	res := Result{
		Lines: []string{FormatHelp(prefix, b.schema.Help)},
	}
	b.logger.Info("building metrics", slog.Int("records", len(records)))

	for i, rec := range records {
		identity, ok := b.Identity(rec)
		if !ok {
			b.logger.Warn("skipping record without name", slog.Int("index", i))
			continue
		}
		hostname := identity[0].Value
		entityLogger := b.logger.With(slog.String("entity", hostname))

		info := LabelSet{}
		for _, p := range infoPaths {
			info = info.With(p.label, Resolve(rec, p.path).String())
		}
		res.Lines = append(res.Lines, FormatMetric(prefix+"_info", info.Merge(identity), "1"))
		res.Metrics++

		for _, entry := range b.schema.Entries {
			res.Lines = append(res.Lines, b.entryLine(entityLogger, rec, identity, entry))
			res.Metrics++
		}
		res.Entities++
	}

	b.logger.Info("built metrics",
		slog.Int("entities", res.Entities),
		slog.Int("metrics", res.Metrics),
	)
	res.Lines = append(res.Lines,
		FormatMetric(prefix+"_total_count", nil, strconv.Itoa(res.Entities)),
		FormatMetric(prefix+"_metric_total_count", nil, strconv.Itoa(res.Metrics)),
	)
	return res
}

func (b *Builder) entryLine(logger *slog.Logger, rec Record, identity LabelSet, entry Entry) string {
	value := Resolve(rec, entry.Path)
	labels := identity.Merge(entry.Labels)
	if value.IsAbsent() {
		logger.Warn("metric not found for entity",
			slog.String("metric", entry.Name),
			slog.String("path", entry.Path.String()),
		)
	}

	switch entry.Kind {
	case KindRedundancy:
		state, n := "unknown", 0
		if !value.IsAbsent() {
			state = value.String()
			n, _ = entry.Domain.Normalize(state)
		}
		return FormatMetric(entry.Name, labels.With("state", state), strconv.Itoa(n))
	case KindEnum:
		if value.IsAbsent() {
			return FormatMetric(entry.Name, labels, "0")
		}
		n, known := entry.Domain.Normalize(value.String())
		if !known && entry.Domain.Strict {
			logger.Warn("unmapped enumeration token",
				slog.String("metric", entry.Name),
				slog.String("domain", entry.Domain.Name),
				slog.String("token", value.String()),
				slog.Int("default", entry.Domain.Default),
			)
		}
		return FormatMetric(entry.Name, labels, strconv.Itoa(n))
	default:
		if value.IsAbsent() {
			return FormatMetric(entry.Name, labels, "0")
		}
		text, ok := normalizeNumber(value.String())
		if !ok {
			logger.Warn("non-numeric value",
				slog.String("metric", entry.Name),
				slog.String("value", value.String()),
			)
		}
		return FormatMetric(entry.Name, labels, text)
	}
}
