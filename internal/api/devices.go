package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/chroma-sync/internal/device"
)

// DeviceView is a stored device config with its live lifecycle.
type DeviceView struct {
	device.Config
	Lifecycle  device.Lifecycle `json:"lifecycle"`
	QueueDepth int              `json:"queue_depth"`
	Registered bool             `json:"registered"`
}

func (s *Server) view(cfg device.Config) DeviceView {
	v := DeviceView{Config: cfg}
	for _, info := range s.registry.List() {
		if info.ID == cfg.ID {
			v.Lifecycle = info.Lifecycle
			v.QueueDepth = info.QueueDepth
			v.Registered = true
			break
		}
	}
	return v
}

// handleListDevices returns every stored device in registry order.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	cfgs, err := s.devices.List(r.Context())
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	views := make([]DeviceView, 0, len(cfgs))
	for _, cfg := range cfgs {
		views = append(views, s.view(cfg))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cfg, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, s.view(*cfg))
}

// handleCreateDevice stores a new device config and registers its
// backend. The device is loaded straight away while sync is enabled.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cfg device.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	existing, err := s.devices.List(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	cfg = device.ApplyDefaults(cfg)
	cfg.Position = 0
	if n := len(existing); n > 0 {
		cfg.Position = existing[n-1].Position + 1
	}
	if err := device.ValidateConfig(cfg); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	dev, err := s.factory(cfg)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if err := s.devices.Create(ctx, cfg); err != nil {
		if errors.Is(err, device.ErrDeviceExists) {
			writeConflict(w, "device already exists")
			return
		}
		writeInternalError(w, "failed to store device")
		return
	}
	res, err := s.sync.Admit(ctx, cfg.ID, func() error { return s.registry.Add(dev) })
	if err != nil {
		if delErr := s.devices.Delete(ctx, cfg.ID); delErr != nil {
			s.logger.Error("rollback of device create failed", "device_id", cfg.ID, "error", delErr)
		}
		if errors.Is(err, device.ErrDeviceExists) {
			writeConflict(w, "device already registered")
			return
		}
		writeUnavailable(w, "device registry unavailable")
		return
	}
	if res != nil && res.Failed() {
		s.logger.Warn("new device failed to load", "device_id", cfg.ID, "error", res.Err)
	}

	s.logger.Info("device created", "device_id", cfg.ID, "kind", cfg.Kind)
	writeJSON(w, http.StatusCreated, s.view(cfg))
}

// handleUpdateDevice replaces a device config. The running backend is
// swapped for one built from the new config and loaded while sync is
// enabled.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	current, err := s.devices.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	var cfg device.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	cfg.ID = id
	cfg.Position = current.Position
	if cfg.Kind == "" {
		cfg.Kind = current.Kind
	}
	cfg = device.ApplyDefaults(cfg)
	if err := device.ValidateConfig(cfg); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	dev, err := s.factory(cfg)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if err := s.devices.Update(ctx, cfg); err != nil {
		writeInternalError(w, "failed to store device")
		return
	}

	err = s.sync.Guard(func(enabled bool) error {
		err := s.registry.Replace(ctx, dev)
		if errors.Is(err, device.ErrDeviceNotFound) {
			err = s.registry.Add(dev)
		}
		if err != nil || !enabled {
			return err
		}
		// A config fix can bring back a device whose old instance never loaded.
		if life, _ := s.registry.Lifecycle(id); life == device.Loaded {
			return nil
		}
		res, err := s.registry.Apply(ctx, id, device.OpLoad)
		if err == nil && res.Failed() {
			err = res.Err
		}
		return err
	})
	if err != nil {
		s.logger.Warn("device replace incomplete", "device_id", id, "error", err)
	}

	s.logger.Info("device updated", "device_id", id, "kind", cfg.Kind)
	writeJSON(w, http.StatusOK, s.view(cfg))
}

// handleDeleteDevice unloads and unregisters a device, then deletes its config.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	err := s.sync.Guard(func(bool) error { return s.registry.Remove(ctx, id) })
	if err != nil && !errors.Is(err, device.ErrDeviceNotFound) {
		s.logger.Warn("device unload on delete failed", "device_id", id, "error", err)
	}

	if err := s.devices.Delete(ctx, id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	s.logger.Info("device deleted", "device_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// errSyncDisabled rejects a single-device load while sync is off.
var errSyncDisabled = errors.New("sync is disabled")

// handleDeviceOp runs one lifecycle operation on one device:
// load, unload, on or off. Colors only arrive from the broadcast feed.
// A load is refused while sync is disabled; an unload is always allowed.
func (s *Server) handleDeviceOp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	op, err := device.ParseOp(chi.URLParam(r, "op"))
	if err != nil || op == device.OpSendColors {
		writeBadRequest(w, "op must be load, unload, on or off")
		return
	}

	var res device.Result
	err = s.sync.Guard(func(enabled bool) error {
		if op == device.OpLoad && !enabled {
			return errSyncDisabled
		}
		var applyErr error
		res, applyErr = s.registry.Apply(r.Context(), id, op)
		return applyErr
	})
	if err != nil {
		if errors.Is(err, errSyncDisabled) {
			writeConflict(w, "enable sync before loading a device")
			return
		}
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to apply operation")
		return
	}

	status := http.StatusOK
	if res.Failed() {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, newResultPayload(res))
}
