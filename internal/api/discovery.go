package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nerrad567/chroma-sync/internal/device"
	"github.com/nerrad567/chroma-sync/internal/discovery"
)

// discoveryTimeout bounds a discovery request including the info probes.
const discoveryTimeout = 10 * time.Second

// DiscoveredDevice is a controller found on the network with a suggested
// config that can be POSTed to /devices unchanged.
type DiscoveredDevice struct {
	discovery.Found
	Config     device.Config `json:"config"`
	Registered bool          `json:"registered"`
}

// handleDiscovery scans the network for WLED controllers.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeUnavailable(w, "discovery is disabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), discoveryTimeout)
	defer cancel()

	found, err := s.scanner.Scan(ctx)
	if err != nil {
		s.logger.Warn("discovery failed", "error", err)
		writeUnavailable(w, "discovery failed")
		return
	}

	known := make(map[string]bool)
	if cfgs, err := s.devices.List(ctx); err == nil {
		for _, cfg := range cfgs {
			if cfg.WLED != nil {
				known[cfg.WLED.Host] = true
			}
		}
	}

	out := make([]DiscoveredDevice, 0, len(found))
	for _, f := range found {
		out = append(out, DiscoveredDevice{
			Found:      f,
			Config:     f.Config(),
			Registered: known[f.Address] || known[f.Host],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": out, "count": len(out)})
}
