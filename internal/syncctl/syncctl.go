package syncctl

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/chroma-sync/internal/device"
)

// Logger defines the logging interface used by the Controller.
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

// Registry is the slice of device.Registry the controller drives.
type Registry interface {
	Load(ctx context.Context) device.Report
	Unload(ctx context.Context) device.Report
	Apply(ctx context.Context, id string, op device.Op) (device.Result, error)
}

// Persister stores the sync flag.
type Persister interface {
	SetSyncEnabled(ctx context.Context, enabled bool) error
}

// Change describes one completed enable or disable.
type Change struct {
	Enabled    bool          `json:"enabled"`
	Report     device.Report `json:"report"`
	PersistErr error         `json:"-"`
	At         time.Time     `json:"at"`
}

const subscriberBuffer = 8

// Controller owns the sync flag. Enable and Disable change the flag,
// persist it and issue the aggregate load or unload under one mutex, so
// the flag always matches the last lifecycle command sent to every device.
//
// Enabled is lock-free and safe to call from event paths.
type Controller struct {
	reg    Registry
	store  Persister
	logger Logger

	mu      sync.Mutex
	enabled atomic.Bool

	subsMu sync.Mutex
	subs   map[chan Change]struct{}
}

// New creates a controller in the Disabled state. Use Restore to apply
// the persisted flag at startup.
func New(reg Registry, store Persister) *Controller {
	return &Controller{
		reg:    reg,
		store:  store,
		logger: noopLogger{},
		subs:   make(map[chan Change]struct{}),
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// Enabled reports the current flag.
func (c *Controller) Enabled() bool {
	return c.enabled.Load()
}

// Enable sets the flag, persists it and loads every device. Calling it
// while enabled re-issues the load. The returned error is the persistence
// failure, if any; device failures are in the Report.
func (c *Controller) Enable(ctx context.Context) (device.Report, error) {
	return c.Set(ctx, true)
}

// Disable clears the flag, persists it and unloads every device.
func (c *Controller) Disable(ctx context.Context) (device.Report, error) {
	return c.Set(ctx, false)
}

// Set applies enabled. See Enable and Disable.
func (c *Controller) Set(ctx context.Context, enabled bool) (device.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled.Store(enabled)

	var persistErr error
	if c.store != nil {
		if err := c.store.SetSyncEnabled(ctx, enabled); err != nil {
			persistErr = fmt.Errorf("persisting sync flag: %w", err)
			c.logger.Error("sync flag not persisted", "enabled", enabled, "error", err)
		}
	}

	report := c.apply(ctx, enabled)
	c.logger.Info("sync changed", "enabled", enabled, "failures", len(report.Failures()))

	c.notify(Change{Enabled: enabled, Report: report, PersistErr: persistErr, At: time.Now()})
	return report, persistErr
}

// Guard runs fn with the flag held steady and passes it the current
// value. Registry membership changes and single-device lifecycle commands
// go through Guard so they never interleave with an aggregate load or
// unload.
func (c *Controller) Guard(fn func(enabled bool) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(c.enabled.Load())
}

// Admit runs add and then, if sync is enabled, loads device id. Both
// happen under the flag lock, so a device added while sync is disabled
// stays Unloaded. The returned Result is nil when no load was issued.
func (c *Controller) Admit(ctx context.Context, id string, add func() error) (*device.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := add(); err != nil {
		return nil, err
	}
	if !c.enabled.Load() {
		return nil, nil
	}
	res, err := c.reg.Apply(ctx, id, device.OpLoad)
	if err != nil {
		return nil, err
	}
	if res.Failed() {
		c.logger.Warn("admitted device failed to load", "device_id", id, "error", res.Err)
	}
	return &res, nil
}

// Restore applies a persisted flag at startup without writing it back.
func (c *Controller) Restore(ctx context.Context, enabled bool) device.Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled.Store(enabled)
	if !enabled {
		return device.Report{Op: device.OpUnload}
	}
	report := c.apply(ctx, true)
	c.logger.Info("sync restored", "enabled", enabled, "failures", len(report.Failures()))
	c.notify(Change{Enabled: enabled, Report: report, At: time.Now()})
	return report
}

func (c *Controller) apply(ctx context.Context, enabled bool) device.Report {
	if enabled {
		return c.reg.Load(ctx)
	}
	return c.reg.Unload(ctx)
}

// Subscribe returns a channel of changes and a function that cancels the
// subscription. Slow subscribers miss changes rather than block the controller.
func (c *Controller) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)

	c.subsMu.Lock()
	c.subs[ch] = struct{}{}
	c.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, ch)
			c.subsMu.Unlock()
			close(ch)
		})
	}
}

func (c *Controller) notify(change Change) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	for ch := range c.subs {
		select {
		case ch <- change:
		default:
			c.logger.Warn("sync change subscriber is full; dropping notification")
		}
	}
}
