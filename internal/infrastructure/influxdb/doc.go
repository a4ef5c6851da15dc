// Package influxdb provides InfluxDB telemetry for chroma-sync.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, non-blocking batched writes, and health monitoring.
//
// # Purpose
//
// Telemetry is optional. When enabled it records:
//   - One point per device operation (device_ops)
//   - Inbound broadcast notifications (broadcast_events)
//   - Power notifications (power_events)
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteOperation(influxdb.OperationSample{
//	    DeviceID: "kb", Kind: "keyboard", Op: "send_colors", Outcome: "ok",
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Write helpers are no-ops on a nil or closed client.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors are delivered to the
// SetOnError callback wrapped with ErrWriteFailed.
package influxdb
