package collector

import "log/slog"

// EdgeSubsystem is the Mist Edge gateway subsystem.
const EdgeSubsystem = "edge"

var edgeSchema = createEdgeSchema()

func createEdgeSchema() *Schema {
	s := &Schema{Subsystem: EdgeSubsystem, Help: "Mist edge metrics"}
	s.enum("status", "status", ConnectionState)
	s.number("uptime_seconds", "uptime")
	s.number("last_seen_seconds", "last_seen")
	s.number("cpu_usage_percent", "cpu_stat.usage")
	s.number("memory_usage_percent", "memory_stat.usage")
	// redundancy keys are upper case in the API payload
	s.redundancy("redundancy_state", "sensor_stat.redundancies.PS.state", "component", "ps")
	s.redundancy("redundancy_state", "sensor_stat.redundancies.FAN.state", "component", "fan")
	return s
}

// NewEdgeBuilder returns the builder for Mist Edge gateways (orgs/{id}/stats/mxedges).
func NewEdgeBuilder(logger *slog.Logger) *Builder {
	return NewBuilder(edgeSchema, logger)
}
