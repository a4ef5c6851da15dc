package api

import (
	"net"
	"net/url"
	"time"

	"github.com/nerrad567/chroma-sync/internal/device"
	"github.com/nerrad567/chroma-sync/internal/syncctl"
)

// ResultPayload is the wire form of one device result.
type ResultPayload struct {
	DeviceID   string      `json:"device_id"`
	Kind       device.Kind `json:"kind"`
	Op         device.Op   `json:"op"`
	Outcome    string      `json:"outcome"`
	Error      string      `json:"error,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

func newResultPayload(res device.Result) ResultPayload {
	p := ResultPayload{
		DeviceID:   res.DeviceID,
		Kind:       res.Kind,
		Op:         res.Op,
		Outcome:    res.Outcome(),
		DurationMS: res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		p.Error = res.Err.Error()
	}
	return p
}

// ReportPayload is the wire form of an aggregate report.
type ReportPayload struct {
	Op      device.Op       `json:"op"`
	OK      int             `json:"ok"`
	Skipped int             `json:"skipped"`
	Failed  int             `json:"failed"`
	Results []ResultPayload `json:"results"`
}

// NewReportPayload converts report to its wire form.
func NewReportPayload(report device.Report) ReportPayload {
	ok, skipped, failed := report.Counts()
	p := ReportPayload{
		Op:      report.Op,
		OK:      ok,
		Skipped: skipped,
		Failed:  failed,
		Results: make([]ResultPayload, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		p.Results = append(p.Results, newResultPayload(res))
	}
	return p
}

// SyncPayload is the wire form of a sync change.
type SyncPayload struct {
	Enabled      bool           `json:"enabled"`
	PersistError string         `json:"persist_error,omitempty"`
	Report       *ReportPayload `json:"report,omitempty"`
	At           time.Time      `json:"at"`
}

// NewSyncPayload converts a sync change to its wire form.
func NewSyncPayload(change syncctl.Change) SyncPayload {
	report := NewReportPayload(change.Report)
	p := SyncPayload{Enabled: change.Enabled, Report: &report, At: change.At}
	if change.PersistErr != nil {
		p.PersistError = change.PersistErr.Error()
	}
	return p
}

// isLoopbackOrigin reports whether a browser origin points at this host.
func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
