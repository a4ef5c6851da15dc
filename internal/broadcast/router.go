package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/chroma-sync/internal/device"
)

// Logger defines the logging interface used by the Router.
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

// Registry is the slice of device.Registry the router drives.
type Registry interface {
	Dispatch(op device.Op, effect device.ColorEffect) *device.Pending
}

// Gate reports whether color effects should reach the devices.
type Gate interface {
	Enabled() bool
}

// Observer is told about every routed event and whether it was forwarded
// to the devices.
type Observer func(ev Event, forwarded bool)

// State is the router's subscription state.
type State string

// Router states.
const (
	Uninitialized State = "uninitialized"
	Subscribed    State = "subscribed"
)

// InitReport records the outcome of Start.
type InitReport struct {
	Source string    `json:"source"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`

	err error
}

// Err returns the start failure, or nil.
func (r InitReport) Err() error { return r.err }

// RouterOptions configures a Router.
type RouterOptions struct {
	// AppID identifies this application to the broadcast API.
	AppID string

	// Buffer is the capacity of the inbound event channel.
	Buffer int

	// ReportTimeout bounds how long a dispatch is awaited before its
	// report is presented with pending devices.
	ReportTimeout time.Duration
}

// Router subscribes to a broadcast Source and turns its events into
// presenter updates and, while sync is enabled, SendColors dispatches.
//
// State machine:
//
//	Uninitialized ──Start() ok──▶ Subscribed ──Stop()──▶ Uninitialized
//	Uninitialized ──Start() fails──▶ Uninitialized (InitReport.OK false)
type Router struct {
	source    Source
	reg       Registry
	gate      Gate
	presenter Presenter
	logger    Logger
	observer  Observer
	opts      RouterOptions

	mu         sync.RWMutex
	state      State
	initReport InitReport
	status     Status
	lastEffect *device.ColorEffect

	events  chan Event
	cancel  context.CancelFunc
	done    chan struct{}
	waiters sync.WaitGroup
}

// NewRouter creates an Uninitialized router.
func NewRouter(source Source, reg Registry, gate Gate, opts RouterOptions) *Router {
	if opts.Buffer < 1 {
		opts.Buffer = 64
	}
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = 5 * time.Second
	}
	return &Router{
		source:    source,
		reg:       reg,
		gate:      gate,
		presenter: Presenters(nil),
		logger:    noopLogger{},
		opts:      opts,
		state:     Uninitialized,
		status:    NotLive,
	}
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// SetPresenter sets the presenter. Call before Start.
func (r *Router) SetPresenter(p Presenter) {
	if p == nil {
		p = Presenters(nil)
	}
	r.presenter = p
}

// SetObserver sets the event observer. Call before Start.
func (r *Router) SetObserver(obs Observer) {
	r.observer = obs
}

// Start initialises the source and subscribes. A failure is not fatal:
// it is logged, recorded in the returned InitReport and the router stays
// Uninitialized.
func (r *Router) Start(ctx context.Context) InitReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Subscribed {
		return InitReport{Source: r.source.Name(), Error: ErrAlreadyStarted.Error(), At: time.Now(), err: ErrAlreadyStarted}
	}

	if err := r.source.Init(ctx, r.opts.AppID); err != nil {
		return r.record(err)
	}

	events := make(chan Event, r.opts.Buffer)
	if err := r.source.Subscribe(events); err != nil {
		if cerr := r.source.Close(); cerr != nil {
			r.logger.Warn("broadcast source close failed", "source", r.source.Name(), "error", cerr)
		}
		return r.record(err)
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.events = events
	r.cancel = cancel
	r.done = make(chan struct{})
	r.state = Subscribed

	go r.run(loopCtx, events, r.done)

	r.logger.Info("broadcast subscribed", "source", r.source.Name())
	return r.record(nil)
}

// record stores and returns the InitReport for err. Caller holds mu.
func (r *Router) record(err error) InitReport {
	rep := InitReport{Source: r.source.Name(), OK: err == nil, At: time.Now(), err: err}
	if err != nil {
		rep.Error = err.Error()
		r.logger.Warn("broadcast not initialized", "source", rep.Source, "error", err)
	}
	r.initReport = rep
	return rep
}

func (r *Router) run(ctx context.Context, events <-chan Event, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			r.handle(ctx, ev)
		}
	}
}

// handle routes one event. Effects are dispatched without waiting; the
// report is awaited on a separate goroutine.
func (r *Router) handle(ctx context.Context, ev Event) {
	switch ev.Type {
	case TypeStatus:
		r.mu.Lock()
		r.status = ev.Status
		r.mu.Unlock()

		r.logger.Info("broadcast status", "status", string(ev.Status), "label", ev.Status.Label())
		r.presenter.PresentStatus(ev.Status)
		r.observe(ev, false)

	case TypeEffect:
		effect := ev.Effect
		r.mu.Lock()
		r.lastEffect = &effect
		r.mu.Unlock()

		r.presenter.PresentPreview(effect)

		forwarded := r.gate == nil || r.gate.Enabled()
		if forwarded {
			pending := r.reg.Dispatch(device.OpSendColors, effect)
			r.waiters.Add(1)
			go r.awaitReport(ctx, pending)
		}
		r.observe(ev, forwarded)

	default:
		r.logger.Debug("broadcast event ignored", "type", string(ev.Type))
	}
}

func (r *Router) awaitReport(ctx context.Context, pending *device.Pending) {
	defer r.waiters.Done()

	waitCtx, cancel := context.WithTimeout(ctx, r.opts.ReportTimeout)
	defer cancel()

	report := pending.Wait(waitCtx)
	if failures := report.Failures(); len(failures) > 0 {
		r.logger.Debug("send_colors failures", "count", len(failures), "error", report.Err())
	}
	r.presenter.PresentReport(report)
}

func (r *Router) observe(ev Event, forwarded bool) {
	if r.observer != nil {
		r.observer(ev, forwarded)
	}
}

// Stop unsubscribes from the source, stops the worker and uninitialises
// the source. Events still buffered are discarded. Report waiters are
// awaited until ctx ends.
func (r *Router) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.state != Subscribed {
		r.mu.Unlock()
		return nil
	}
	r.state = Uninitialized
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	uerr := r.source.Unsubscribe()
	cancel()
	<-done
	cerr := r.source.Close()

	waited := make(chan struct{})
	go func() {
		r.waiters.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
	}

	r.logger.Info("broadcast unsubscribed", "source", r.source.Name())

	if uerr != nil {
		return fmt.Errorf("unsubscribing %s: %w", r.source.Name(), uerr)
	}
	if cerr != nil {
		return fmt.Errorf("closing %s: %w", r.source.Name(), cerr)
	}
	return nil
}

// State returns the subscription state.
func (r *Router) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// InitReport returns the outcome of the last Start.
func (r *Router) InitReport() InitReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initReport
}

// Status returns the last connectivity status seen. NotLive until the
// source reports otherwise.
func (r *Router) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// LastEffect returns the last color effect seen, if any.
func (r *Router) LastEffect() (device.ColorEffect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastEffect == nil {
		return device.ColorEffect{}, false
	}
	return *r.lastEffect, true
}
