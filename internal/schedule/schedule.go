package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/chroma-sync/internal/device"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/config"
)

// ErrInvalidSpec is returned for a cron spec that does not parse.
var ErrInvalidSpec = errors.New("schedule: invalid cron spec")

// Logger defines the logging interface used by the Scheduler.
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

// Syncer is the slice of syncctl.Controller the scheduler drives.
type Syncer interface {
	Set(ctx context.Context, enabled bool) (device.Report, error)
}

// Entry describes one scheduled toggle.
type Entry struct {
	Spec    string    `json:"spec"`
	Enabled bool      `json:"enabled"`
	Next    time.Time `json:"next"`
}

// parser accepts standard five-field specs, an optional leading seconds
// field and descriptors such as @daily.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler turns sync on and off on cron specs.
type Scheduler struct {
	cron    *cron.Cron
	syncer  Syncer
	timeout time.Duration
	logger  Logger

	mu      sync.Mutex
	entries map[cron.EntryID]Entry
}

// New creates a scheduler in loc. A nil loc means local time.
func New(syncer Syncer, loc *time.Location, timeout time.Duration) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		syncer:  syncer,
		timeout: timeout,
		logger:  noopLogger{},
		entries: make(map[cron.EntryID]Entry),
	}
}

// FromConfig builds a scheduler from the schedule section. It returns
// nil when scheduling is disabled.
func FromConfig(cfg config.ScheduleConfig, syncer Syncer, timeout time.Duration) (*Scheduler, error) {
	if !cfg.Enabled {
		return nil, nil //nolint:nilnil // Disabled is not an error
	}

	var loc *time.Location
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("schedule timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	s := New(syncer, loc, timeout)
	if cfg.Enable != "" {
		if err := s.Add(cfg.Enable, true); err != nil {
			return nil, err
		}
	}
	if cfg.Disable != "" {
		if err := s.Add(cfg.Disable, false); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.logger = logger
}

// Add schedules sync to be set to enabled whenever spec fires.
func (s *Scheduler) Add(spec string, enabled bool) error {
	sched, err := parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidSpec, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(spec, enabled) }))
	s.entries[id] = Entry{Spec: spec, Enabled: enabled}
	s.logger.Info("sync schedule added", "spec", spec, "enabled", enabled)
	return nil
}

func (s *Scheduler) fire(spec string, enabled bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report, err := s.syncer.Set(ctx, enabled)
	if err != nil {
		s.logger.Error("scheduled sync change not persisted", "spec", spec, "enabled", enabled, "error", err)
	}
	s.logger.Info("scheduled sync change",
		"spec", spec,
		"enabled", enabled,
		"failures", len(report.Failures()),
	)
}

// Entries lists the scheduled toggles with their next firing time.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.cron.Entries() {
		entry, ok := s.entries[e.ID]
		if !ok {
			continue
		}
		entry.Next = e.Next
		out = append(out, entry)
	}
	return out
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	s.logger.Info("sync scheduler started", "entries", n)
}

// Stop stops the scheduler and waits for a running toggle until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("sync scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
