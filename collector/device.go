package collector

import "log/slog"

// DeviceSubsystem is the access point device subsystem.
const DeviceSubsystem = "device"

var deviceSchema = createDeviceSchema()

func createDeviceSchema() *Schema {
	s := &Schema{Subsystem: DeviceSubsystem, Help: "Mist device metrics"}
	s.number("uptime_seconds", "uptime")
	s.enum("status", "status", ConnectionState)
	s.number("num_clients", "num_clients")
	s.number("port_tx_bytes", "port_stat.eth0.tx_bytes", "port", "eth0")
	s.number("port_rx_bytes", "port_stat.eth0.rx_bytes", "port", "eth0")
	s.number("radio_util_all", "radio_stat.band_6.util_all", "band", "6")
	s.number("radio_util_all", "radio_stat.band_5.util_all", "band", "5")
	s.number("radio_util_all", "radio_stat.band_24.util_all", "band", "24")
	s.number("last_seen_seconds", "last_seen")
	return s
}

// NewDeviceBuilder returns the builder for access point devices (sites/{id}/stats/devices).
func NewDeviceBuilder(logger *slog.Logger) *Builder {
	return NewBuilder(deviceSchema, logger)
}
