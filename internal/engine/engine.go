package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/chroma-sync/internal/broadcast"
	"github.com/nerrad567/chroma-sync/internal/device"
)

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the slice of device.Registry the engine needs at shutdown.
type Registry interface {
	Unload(ctx context.Context) device.Report
	Close(ctx context.Context) error
}

// SyncRestorer applies the persisted sync flag at startup.
type SyncRestorer interface {
	Restore(ctx context.Context, enabled bool) device.Report
}

// Router is the broadcast subscription.
type Router interface {
	Start(ctx context.Context) broadcast.InitReport
	Stop(ctx context.Context) error
}

// Power is the power lifecycle controller.
type Power interface {
	Start(ctx context.Context) error
	Stop() error
}

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("engine: already started")

// Options configures an Engine.
type Options struct {
	// SyncEnabled is the persisted sync flag applied at Start.
	SyncEnabled bool

	// ShutdownGrace bounds the device drain at Shutdown.
	ShutdownGrace time.Duration
}

// Status is a snapshot for the control API.
type Status struct {
	Running    bool                 `json:"running"`
	Broadcast  broadcast.InitReport `json:"broadcast"`
	PowerWired bool                 `json:"power_wired"`
	PowerError string               `json:"power_error,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
}

// Engine sequences startup and shutdown of the synchronization engine.
//
// Start order: restore sync flag (load all if enabled), subscribe to the
// broadcast, then wire power. Power is only wired after a successful
// broadcast subscription.
//
// Shutdown order: unsubscribe broadcast, stop power, unload every device,
// drain device queues within the grace period.
type Engine struct {
	reg    Registry
	syncer SyncRestorer
	router Router
	power  Power
	logger Logger
	opts   Options

	mu     sync.Mutex
	status Status
}

// New creates an engine. power may be nil.
func New(reg Registry, syncer SyncRestorer, router Router, power Power, opts Options) *Engine {
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 5 * time.Second
	}
	return &Engine{
		reg:    reg,
		syncer: syncer,
		router: router,
		power:  power,
		logger: noopLogger{},
		opts:   opts,
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Start brings the engine up. Broadcast and power failures are not fatal;
// they are logged and visible in Status.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.status.Running {
		return ErrAlreadyStarted
	}
	e.status = Status{Running: true, StartedAt: time.Now()}

	if e.opts.SyncEnabled {
		e.syncer.Restore(ctx, true)
	}

	initReport := e.router.Start(ctx)
	e.status.Broadcast = initReport
	if !initReport.OK {
		e.logger.Warn("broadcast unavailable, power events not wired",
			"source", initReport.Source,
			"error", initReport.Error,
		)
		return nil
	}

	if e.power != nil {
		if err := e.power.Start(ctx); err != nil {
			e.status.PowerError = err.Error()
			e.logger.Warn("power events not wired", "error", err)
		} else {
			e.status.PowerWired = true
		}
	}

	e.logger.Info("engine started",
		"broadcast", initReport.Source,
		"power_wired", e.status.PowerWired,
	)
	return nil
}

// Shutdown stops event intake, unloads every device and waits for device
// queues to drain. ctx bounds the whole sequence; the drain is further
// bounded by the shutdown grace.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error

	if err := e.router.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("broadcast: %w", err))
	}
	if e.power != nil && e.status.PowerWired {
		if err := e.power.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("power: %w", err))
		}
	}

	graceCtx, cancel := context.WithTimeout(ctx, e.opts.ShutdownGrace)
	defer cancel()

	report := e.reg.Unload(graceCtx)
	if err := report.Err(); err != nil {
		e.logger.Warn("unload failures at shutdown", "error", err)
	}
	if err := e.reg.Close(graceCtx); err != nil {
		errs = append(errs, fmt.Errorf("draining devices: %w", err))
	}

	e.status.Running = false
	e.status.PowerWired = false
	e.logger.Info("engine stopped")
	return errors.Join(errs...)
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}
