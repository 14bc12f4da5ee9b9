package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/gojq"
	"github.com/mlueckert/mist-exporter/config"
	"github.com/prometheus/common/model"
)

// JQYieldedMetric is a metric-like struct built from the output of applying a JQ filter
// to one entity record.
type JQYieldedMetric struct {
	Name   string
	Value  float64
	Labels map[string]string
}

// JQMetrics applies a user supplied JQ filter to every record of one entity class.
type JQMetrics struct {
	entity  string
	jqQuery *gojq.Query
	builder *Builder
	timeout time.Duration
	logger  *slog.Logger
}

// NewJQMetrics compiles the filter of cfg. builder supplies the identity labels of the
// entity class the filter targets.
func NewJQMetrics(cfg config.JQMetricConfig, builder *Builder, timeout time.Duration, logger *slog.Logger) (*JQMetrics, error) {
	query, err := gojq.Parse(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("jq parse error for %s metrics: %w", cfg.Entity, err)
	}
	return &JQMetrics{
		entity:  cfg.Entity,
		jqQuery: query,
		builder: builder,
		timeout: timeout,
		logger:  logger.With(slog.String("jq_metrics", cfg.Entity)),
	}, nil
}

// Entity is the entity class the filter runs against.
func (j *JQMetrics) Entity() string {
	return j.entity
}

// Build runs the filter on each named record. Errors are per record: the offending
// items are skipped and logged, everything else is rendered.
func (j *JQMetrics) Build(ctx context.Context, records []Record) []string {
	var lines []string
	for _, rec := range records {
		identity, ok := j.builder.Identity(rec)
		if !ok {
			continue
		}
		body, err := json.Marshal(rec)
		if err != nil {
			j.logger.Warn("failed to encode record for jq", slog.Any("error", err))
			continue
		}

		rctx, cancel := context.WithTimeout(ctx, j.timeout)
		metrics, err := metricsFromBody(rctx, j.jqQuery, body)
		cancel()
		if err != nil {
			j.logger.Warn("jq filter yielded unusable items",
				slog.String("entity", identity[0].Value),
				slog.Any("error", err),
			)
		}
		for _, metric := range metrics {
			labels := identity
			for _, name := range slices.Sorted(maps.Keys(metric.Labels)) {
				if identity.Has(name) {
					j.logger.Warn("jq item label clashes with an identity label, dropping it",
						slog.String("entity", identity[0].Value),
						slog.String("metric", metric.Name),
						slog.String("label", name),
					)
					continue
				}
				labels = labels.With(name, metric.Labels[name])
			}
			lines = append(lines, FormatMetric(metric.Name, labels, strconv.FormatFloat(metric.Value, 'f', -1, 64)))
		}
	}
	return lines
}

// metricsFromBody applies the given gojq.Query to a record body.
// The filter is expected to yield arrays of {name, value, labels} objects. Items that do not
// convert are skipped and their errors are joined together and returned as a bundle.
func metricsFromBody(ctx context.Context, query *gojq.Query, jsonBody []byte) ([]JQYieldedMetric, error) {
	var yielded []JQYieldedMetric
	var parseErrors []error
	var intermediary map[string]any

	if err := json.Unmarshal(jsonBody, &intermediary); err != nil {
		return yielded, err
	}
	iter := query.RunWithContext(ctx, intermediary)

	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			if err, ok := err.(*gojq.HaltError); ok && err.Value() == nil {
				break
			}
			return []JQYieldedMetric{}, err
		}
		if container, ok := v.([]any); ok {
			for _, items := range container {
				if item, ok := items.(map[string]any); ok {
					yieldedMetric, err := convertToMetric(item)
					if err != nil {
						parseErrors = append(parseErrors, err)
						continue
					}
					yielded = append(yielded, yieldedMetric)
				}
			}
		}
	}
	return yielded, errors.Join(parseErrors...)
}

// convertToMetric yields a typed struct through type assertions on one jq output item.
func convertToMetric(item map[string]any) (JQYieldedMetric, error) {
	ret := JQYieldedMetric{
		Labels: map[string]string{},
	}
	var convertErrors []error
	keys := slices.Sorted(maps.Keys(item))

	if iName, ok := item["name"]; ok {
		if strName, ok := iName.(string); !ok {
			convertErrors = append(convertErrors, fmt.Errorf("item contained a non-string name"))
		} else if !model.IsValidMetricName(model.LabelValue(strName)) {
			convertErrors = append(convertErrors, fmt.Errorf("item contained an invalid metric name %q", strName))
		} else {
			ret.Name = strName
		}
	} else {
		convertErrors = append(convertErrors, fmt.Errorf("item missing name, provided keys: %s", keys))
	}

	if iVal, ok := item["value"]; ok {
		switch val := iVal.(type) {
		case float64:
			ret.Value = val
		case int:
			ret.Value = float64(val)
		case bool:
			ret.Value = boolToFloat64(val)
		default:
			convertErrors = append(convertErrors, fmt.Errorf("item contained a non-numeric value"))
		}
	} else {
		convertErrors = append(convertErrors, fmt.Errorf("item missing value, provided keys: %s", keys))
	}

	if iLabels, ok := item["labels"]; ok {
		if mapLabels, ok := iLabels.(map[string]any); ok {
			for _, lName := range slices.Sorted(maps.Keys(mapLabels)) {
				valStr, ok := mapLabels[lName].(string)
				if !ok {
					continue
				}
				if !model.LabelName(lName).IsValid() || strings.HasPrefix(lName, model.ReservedLabelPrefix) {
					convertErrors = append(convertErrors, fmt.Errorf("item contained an invalid label name %q", lName))
					continue
				}
				ret.Labels[lName] = valStr
			}
		}
	}

	return ret, errors.Join(convertErrors...)
}

func boolToFloat64(data bool) float64 {
	if data {
		return float64(1)
	}
	return float64(0)
}
