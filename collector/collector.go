package collector

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mlueckert/mist-exporter/config"
)

// NewJQMetricsFromConfig creates the jq metric sets described in cfg, binding each to the
// builder of the entity class it names.
func NewJQMetricsFromConfig(cfg []config.JQMetricConfig, devices, edges *Builder, timeout time.Duration, logger *slog.Logger) ([]*JQMetrics, error) {
	var sets []*JQMetrics
	for i, c := range cfg {
		var builder *Builder
		switch c.Entity {
		case config.EntityDevice:
			builder = devices
		case config.EntityEdge:
			builder = edges
		default:
			return nil, fmt.Errorf("jq_metrics[%d]: unknown entity %q", i, c.Entity)
		}
		set, err := NewJQMetrics(c, builder, timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("jq_metrics[%d]: %w", i, err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}
