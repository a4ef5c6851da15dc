package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nerrad567/chroma-sync/internal/broadcast"
	"github.com/nerrad567/chroma-sync/internal/device"
	"github.com/nerrad567/chroma-sync/internal/engine"
)

// toggleRequest is the body of PUT /sync and PUT /run-at-boot.
type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func decodeToggle(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false, false
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled is required")
		return false, false
	}
	return *req.Enabled, true
}

// handleGetSync returns the sync flag.
func (s *Server) handleGetSync(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.sync.Enabled()})
}

// handleSetSync enables or disables sync and returns the load/unload report.
// A persistence failure still applies the change and is reported in the body.
func (s *Server) handleSetSync(w http.ResponseWriter, r *http.Request) {
	enabled, ok := decodeToggle(w, r)
	if !ok {
		return
	}

	report, err := s.sync.Set(r.Context(), enabled)
	resp := SyncPayload{Enabled: enabled, At: time.Now().UTC()}
	rp := NewReportPayload(report)
	resp.Report = &rp
	if err != nil {
		resp.PersistError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetRunAtBoot returns the stored run-at-boot flag.
func (s *Server) handleGetRunAtBoot(w http.ResponseWriter, r *http.Request) {
	rec, err := s.settings.Load(r.Context())
	if err != nil {
		writeInternalError(w, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": rec.RunAtBoot})
}

// handleSetRunAtBoot stores the run-at-boot flag. Registering the process
// with the OS is left to the installer.
func (s *Server) handleSetRunAtBoot(w http.ResponseWriter, r *http.Request) {
	enabled, ok := decodeToggle(w, r)
	if !ok {
		return
	}
	if err := s.settings.SetRunAtBoot(r.Context(), enabled); err != nil {
		s.logger.Error("run-at-boot not persisted", "error", err)
		writeInternalError(w, "failed to persist run-at-boot")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

// appIDRequest is the body of PUT /app-id.
type appIDRequest struct {
	AppID string `json:"app_id"`
}

// AppIDResponse is the body of GET and PUT /app-id. The broadcast feed
// initialises once per start, so a new ID applies after a restart.
type AppIDResponse struct {
	AppID           string `json:"app_id"`
	RestartRequired bool   `json:"restart_required"`
}

// handleGetAppID returns the stored broadcast app ID.
func (s *Server) handleGetAppID(w http.ResponseWriter, r *http.Request) {
	rec, err := s.settings.Load(r.Context())
	if err != nil {
		writeInternalError(w, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, AppIDResponse{AppID: rec.AppID})
}

// handleSetAppID validates and stores the broadcast app ID.
func (s *Server) handleSetAppID(w http.ResponseWriter, r *http.Request) {
	var req appIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	id, err := broadcast.ParseAppID(req.AppID)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	if err := s.settings.SetAppID(r.Context(), id.String()); err != nil {
		s.logger.Error("app id not persisted", "error", err)
		writeInternalError(w, "failed to persist app id")
		return
	}
	s.logger.Info("broadcast app id changed", "app_id", id.String())
	writeJSON(w, http.StatusOK, AppIDResponse{AppID: id.String(), RestartRequired: true})
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version     string                    `json:"version"`
	SyncEnabled bool                      `json:"sync_enabled"`
	Broadcast   *BroadcastStatus          `json:"broadcast,omitempty"`
	Engine      *engine.Status            `json:"engine,omitempty"`
	Devices     []device.Info             `json:"devices"`
	Integration map[string]bool           `json:"integrations"`
	Preview     *broadcast.PreviewPayload `json:"preview,omitempty"`
}

// BroadcastStatus is the broadcast part of StatusResponse.
type BroadcastStatus struct {
	Status broadcast.Status     `json:"status"`
	Label  string               `json:"label"`
	Init   broadcast.InitReport `json:"init"`
}

// handleStatus returns a snapshot of the sync flag, broadcast feed,
// engine startup and device lifecycles.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Version:     s.version,
		SyncEnabled: s.sync.Enabled(),
		Devices:     s.registry.List(),
		Integration: map[string]bool{},
	}

	if s.broadcast != nil {
		st := s.broadcast.Status()
		resp.Broadcast = &BroadcastStatus{Status: st, Label: st.Label(), Init: s.broadcast.InitReport()}
		if effect, ok := s.broadcast.LastEffect(); ok {
			p := broadcast.NewPreviewPayload(effect)
			resp.Preview = &p
		}
	}
	if s.engine != nil {
		st := s.engine.Status()
		resp.Engine = &st
	}
	if s.mqtt != nil {
		resp.Integration["mqtt"] = s.mqtt.IsConnected()
	}
	if s.influx != nil {
		resp.Integration["influxdb"] = s.influx.IsConnected()
	}

	writeJSON(w, http.StatusOK, resp)
}
