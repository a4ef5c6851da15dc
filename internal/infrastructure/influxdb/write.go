package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by chroma-sync.
const (
	MeasurementDeviceOps   = "device_ops"
	MeasurementBroadcast   = "broadcast_events"
	MeasurementPowerEvents = "power_events"
)

// OperationSample describes one device operation outcome.
type OperationSample struct {
	DeviceID string
	Kind     string // keyboard, wled
	Op       string // load, unload, turn_on, turn_off, send_colors
	Outcome  string // ok, skipped, failed
	Duration time.Duration
	At       time.Time
}

// WriteOperation records a device operation outcome. Non-blocking.
//
// Example:
//
//	client.WriteOperation(influxdb.OperationSample{
//	    DeviceID: "desk-strip", Kind: "wled", Op: "send_colors",
//	    Outcome: "ok", Duration: 3 * time.Millisecond,
//	})
func (c *Client) WriteOperation(s OperationSample) {
	if !c.IsConnected() {
		return
	}

	at := s.At
	if at.IsZero() {
		at = time.Now()
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementDeviceOps,
		map[string]string{
			"device_id": s.DeviceID,
			"kind":      s.Kind,
			"op":        s.Op,
			"outcome":   s.Outcome,
		},
		map[string]interface{}{
			"duration_ms": float64(s.Duration) / float64(time.Millisecond),
			"count":       1,
		},
		at,
	))
}

// WriteBroadcastEvent records one inbound broadcast notification.
// kind is "effect" or "status"; forwarded reports whether a color
// effect reached the devices (sync enabled).
func (c *Client) WriteBroadcastEvent(kind string, forwarded bool) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementBroadcast,
		map[string]string{"kind": kind},
		map[string]interface{}{"count": 1, "forwarded": forwarded},
		time.Now(),
	))
}

// WritePowerEvent records one power notification by semantic kind and raw code.
func (c *Client) WritePowerEvent(kind string, code int) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementPowerEvents,
		map[string]string{"kind": kind},
		map[string]interface{}{"code": code},
		time.Now(),
	))
}
