package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/chroma-sync/internal/bridges"
	"github.com/nerrad567/chroma-sync/internal/broadcast"
	"github.com/nerrad567/chroma-sync/internal/device"
	"github.com/nerrad567/chroma-sync/internal/discovery"
	"github.com/nerrad567/chroma-sync/internal/engine"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/config"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/logging"
	"github.com/nerrad567/chroma-sync/internal/settings"
	"github.com/nerrad567/chroma-sync/internal/syncctl"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SyncControl is the sync flag owner. Device membership changes and
// single-device lifecycle commands run under its Guard or Admit.
type SyncControl interface {
	Enabled() bool
	Set(ctx context.Context, enabled bool) (device.Report, error)
	Guard(fn func(enabled bool) error) error
	Admit(ctx context.Context, id string, add func() error) (*device.Result, error)
	Subscribe() (<-chan syncctl.Change, func())
}

// SettingsStore reads and writes the persisted settings record.
type SettingsStore interface {
	Load(ctx context.Context) (settings.Record, error)
	SetRunAtBoot(ctx context.Context, enabled bool) error
	SetAppID(ctx context.Context, appID string) error
}

// BroadcastState exposes the router's view of the broadcast feed.
type BroadcastState interface {
	Status() broadcast.Status
	InitReport() broadcast.InitReport
	LastEffect() (device.ColorEffect, bool)
}

// EngineState exposes the engine's startup outcome.
type EngineState interface {
	Status() engine.Status
}

// Scanner finds controllers on the network.
type Scanner interface {
	Scan(ctx context.Context) ([]discovery.Found, error)
}

// DBStats exposes connection pool statistics.
type DBStats interface {
	Stats() sql.DBStats
}

// Connectivity reports whether an optional integration is connected.
type Connectivity interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Registry  *device.Registry
	Devices   device.Repository
	Factory   bridges.Factory
	Sync      SyncControl
	Settings  SettingsStore
	Broadcast BroadcastState // optional
	Engine    EngineState    // optional
	Scanner   Scanner        // optional: discovery disabled when nil
	MQTT      Connectivity   // optional
	InfluxDB  Connectivity   // optional
	DB        DBStats        // optional
	Hub       *Hub           // If set, the server uses this hub instead of creating its own
	Version   string
}

// Server is the HTTP control API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	registry  *device.Registry
	devices   device.Repository
	factory   bridges.Factory
	sync      SyncControl
	settings  SettingsStore
	broadcast BroadcastState
	engine    EngineState
	scanner   Scanner
	mqtt      Connectivity
	influx    Connectivity
	db        DBStats
	version   string
	startTime time.Time

	server      *http.Server
	listener    net.Listener
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, registry, device repository,
//     factory, sync control, settings)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device repository is required")
	}
	if deps.Factory == nil {
		return nil, fmt.Errorf("device factory is required")
	}
	if deps.Sync == nil {
		return nil, fmt.Errorf("sync control is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings store is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		registry:  deps.Registry,
		devices:   deps.Devices,
		factory:   deps.Factory,
		sync:      deps.Sync,
		settings:  deps.Settings,
		broadcast: deps.Broadcast,
		engine:    deps.Engine,
		scanner:   deps.Scanner,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// The router needs the hub as its presenter before the server starts.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless injected), relays sync changes to
// WebSocket clients, binds the listener and serves in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	changes, unsubscribe := s.sync.Subscribe()
	go s.relaySyncChanges(srvCtx, changes, unsubscribe)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln
	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// relaySyncChanges forwards sync flag changes to WebSocket clients.
func (s *Server) relaySyncChanges(ctx context.Context, changes <-chan syncctl.Change, unsubscribe func()) {
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			s.hub.Broadcast(ChannelSyncChanged, NewSyncPayload(change))
		}
	}
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
