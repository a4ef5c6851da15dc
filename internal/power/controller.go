package power

import (
	"context"
	"fmt"
	"sync"

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
	TurnOn(ctx context.Context) device.Report
	TurnOff(ctx context.Context) device.Report
}

// Sink receives every handled event with the report of the action taken.
// The report is empty for Other events.
type Sink func(Event, device.Report)

const eventBuffer = 16

// Controller turns every device off on suspend and on again on resume.
// Events are drained on one goroutine so the platform notification path
// only ever performs a non-blocking send.
type Controller struct {
	source Source
	reg    Registry
	logger Logger
	sink   Sink

	mu      sync.Mutex
	events  chan Event
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewController creates a controller reading from source.
func NewController(source Source, reg Registry) *Controller {
	return &Controller{
		source: source,
		reg:    reg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// SetSink sets the callback for handled events. Call before Start.
func (c *Controller) SetSink(sink Sink) {
	c.sink = sink
}

// Source returns the source the controller reads from.
func (c *Controller) Source() Source {
	return c.source
}

// Start starts the source and the event loop.
//
// Returns:
//   - error: ErrAlreadyStarted, or the source's start error
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event, eventBuffer)

	if err := c.source.Start(loopCtx, events); err != nil {
		cancel()
		return fmt.Errorf("starting %s power source: %w", c.source.Name(), err)
	}

	c.events = events
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(loopCtx, events, c.done)

	c.logger.Info("power source started", "source", c.source.Name())
	return nil
}

func (c *Controller) run(ctx context.Context, events <-chan Event, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			c.Handle(ctx, ev)
		}
	}
}

// Handle acts on one event: Suspend turns every device off, Resume turns
// every device on, Other does nothing. The event is acknowledged once the
// action completes.
func (c *Controller) Handle(ctx context.Context, ev Event) device.Report {
	var report device.Report

	switch ev.Kind {
	case Suspend:
		report = c.reg.TurnOff(ctx)
	case Resume:
		report = c.reg.TurnOn(ctx)
	default:
		c.logger.Debug("power event ignored", "code", ev.Code, "source", ev.Source)
	}
	ev.Ack()

	if report.Op != "" {
		c.logger.Info("power event handled",
			"kind", string(ev.Kind),
			"code", ev.Code,
			"source", ev.Source,
			"failures", len(report.Failures()),
		)
	}

	if c.sink != nil {
		c.sink(ev, report)
	}
	return report
}

// Stop stops the source, then the event loop. Events still buffered are
// discarded.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.running = false

	err := c.source.Stop()
	c.cancel()
	<-c.done

	if err != nil {
		return fmt.Errorf("stopping %s power source: %w", c.source.Name(), err)
	}
	c.logger.Info("power source stopped", "source", c.source.Name())
	return nil
}
