package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer receives every per-device result. It is called from device
// worker goroutines and must not block.
type Observer func(Result)

// RegistryOptions tunes the per-device workers.
type RegistryOptions struct {
	// OpTimeout bounds each device operation. Zero means no deadline.
	OpTimeout time.Duration

	// QueueWarnDepth logs a warning once a device queue reaches this depth.
	QueueWarnDepth int

	// RateLimit caps send_colors operations per second per device. Zero disables pacing.
	RateLimit float64
	RateBurst int
}

// DefaultRegistryOptions returns the options used when none are configured.
func DefaultRegistryOptions() RegistryOptions {
	return RegistryOptions{
		OpTimeout:      2 * time.Second,
		QueueWarnDepth: 256,
	}
}

// Registry is the ordered set of device instances. Each instance gets its
// own worker goroutine, so operations on one device apply in issue order
// and a slow or failing device never blocks the others.
//
// Membership changes and dispatch are serialized by a read-write mutex:
// Add, Remove and Replace take the write lock, Dispatch takes the read lock.
//
// All public methods are thread-safe.
type Registry struct {
	opts   RegistryOptions
	logger Logger

	mu       sync.RWMutex
	order    []string
	workers  map[string]*worker
	closed   bool
	observer Observer

	base   context.Context
	cancel context.CancelFunc
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	base, cancel := context.WithCancel(context.Background())
	return &Registry{
		opts:    opts,
		logger:  noopLogger{},
		workers: make(map[string]*worker),
		base:    base,
		cancel:  cancel,
	}
}

// SetLogger sets the logger for the registry and its workers.
// Call before adding devices.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// SetObserver installs a callback that receives every Result.
func (r *Registry) SetObserver(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = obs
}

// Add appends dev to the registry in the Unloaded state and starts its worker.
func (r *Registry) Add(dev Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRegistryClosed
	}
	if _, exists := r.workers[dev.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDeviceExists, dev.ID())
	}

	w := newWorker(r.base, dev, r.opts, r.logger)
	r.workers[dev.ID()] = w
	r.order = append(r.order, dev.ID())
	go w.run()

	r.logger.Info("device registered", "device_id", dev.ID(), "kind", dev.Kind())
	return nil
}

// Remove unloads the device, stops its worker and drops it from the
// registry. It waits for the worker to drain until ctx ends.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	w, ok := r.workers[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	delete(r.workers, id)
	r.order = removeID(r.order, id)
	r.mu.Unlock()

	res, err := r.retire(ctx, w)
	if err != nil {
		return err
	}
	r.logger.Info("device removed", "device_id", id)
	if res.Failed() {
		return fmt.Errorf("unloading %s: %w", id, res.Err)
	}
	return nil
}

// Replace swaps the instance registered under dev.ID() for dev, keeping
// its position. The new instance starts after the old one has unloaded;
// if the old instance was loaded, the new one is loaded first thing.
func (r *Registry) Replace(ctx context.Context, dev Device) error {
	loadRes := make(chan Result, 1)
	done := r.observe(func(res Result) { loadRes <- res })

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	old, ok := r.workers[dev.ID()]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, dev.ID())
	}
	wasLoaded := old.state() == Loaded

	w := newWorker(r.base, dev, r.opts, r.logger)
	if wasLoaded {
		w.enqueue(job{op: OpLoad, done: done})
	}
	r.workers[dev.ID()] = w
	r.mu.Unlock()

	_, err := r.retire(ctx, old)
	go w.run()
	if err != nil {
		return err
	}

	if wasLoaded {
		select {
		case res := <-loadRes:
			if res.Failed() {
				return fmt.Errorf("loading %s: %w", dev.ID(), res.Err)
			}
		case <-ctx.Done():
			return fmt.Errorf("loading %s: %w", dev.ID(), ctx.Err())
		}
	}
	r.logger.Info("device replaced", "device_id", dev.ID(), "kind", dev.Kind())
	return nil
}

// retire queues an unload behind any pending work and stops the worker.
func (r *Registry) retire(ctx context.Context, w *worker) (Result, error) {
	resCh := make(chan Result, 1)
	queued := w.enqueue(job{op: OpUnload, done: r.observe(func(res Result) { resCh <- res })})
	w.stop()

	select {
	case <-w.done:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("waiting for %s to drain: %w", w.dev.ID(), ctx.Err())
	}
	if !queued {
		return Result{DeviceID: w.dev.ID(), Kind: w.dev.Kind(), Op: OpUnload}, nil
	}
	return <-resCh, nil
}

// submit runs one operation on one worker and waits for its result.
func (r *Registry) submit(ctx context.Context, w *worker, op Op) Result {
	resCh := make(chan Result, 1)
	if !w.enqueue(job{op: op, done: r.observe(func(res Result) { resCh <- res })}) {
		return Result{DeviceID: w.dev.ID(), Kind: w.dev.Kind(), Op: op, Err: ErrRegistryClosed}
	}
	select {
	case res := <-resCh:
		return res
	case <-ctx.Done():
		return Result{DeviceID: w.dev.ID(), Kind: w.dev.Kind(), Op: op, Err: ErrPending}
	}
}

// observe wraps done so the observer sees the result first.
func (r *Registry) observe(done func(Result)) func(Result) {
	r.mu.RLock()
	obs := r.observer
	r.mu.RUnlock()

	return func(res Result) {
		if obs != nil {
			obs(res)
		}
		done(res)
	}
}

// Dispatch queues op on every registered device and returns immediately.
// effect is only used by OpSendColors. send_colors is skipped for
// instances that are unloaded when the job runs.
func (r *Registry) Dispatch(op Op, effect ColorEffect) *Pending {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return newPending(op, 0)
	}

	p := newPending(op, len(r.order))
	obs := r.observer
	for i, id := range r.order {
		w := r.workers[id]
		p.results[i] = Result{DeviceID: id, Kind: w.dev.Kind(), Op: op}

		idx := i
		done := func(res Result) {
			if obs != nil {
				obs(res)
			}
			p.complete(idx, res)
		}
		if !w.enqueue(job{op: op, effect: effect, done: done}) {
			done(Result{DeviceID: id, Kind: w.dev.Kind(), Op: op, Err: ErrRegistryClosed})
		}
	}
	return p
}

// Do queues op on every device and waits for all results or ctx.
func (r *Registry) Do(ctx context.Context, op Op, effect ColorEffect) Report {
	return r.Dispatch(op, effect).Wait(ctx)
}

// Load opens every device.
func (r *Registry) Load(ctx context.Context) Report {
	return r.Do(ctx, OpLoad, ColorEffect{})
}

// Unload releases every device.
func (r *Registry) Unload(ctx context.Context) Report {
	return r.Do(ctx, OpUnload, ColorEffect{})
}

// TurnOn switches every device's output on. Unloaded devices report skipped.
func (r *Registry) TurnOn(ctx context.Context) Report {
	return r.Do(ctx, OpTurnOn, ColorEffect{})
}

// TurnOff switches every device's output off. Unloaded devices report skipped.
func (r *Registry) TurnOff(ctx context.Context) Report {
	return r.Do(ctx, OpTurnOff, ColorEffect{})
}

// SendColors writes effect to every loaded device.
func (r *Registry) SendColors(ctx context.Context, effect ColorEffect) Report {
	return r.Do(ctx, OpSendColors, effect)
}

// Apply runs op on a single device and waits for the result.
func (r *Registry) Apply(ctx context.Context, id string, op Op) (Result, error) {
	r.mu.RLock()
	w, ok := r.workers[id]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return r.submit(ctx, w, op), nil
}

// ForEach calls fn for every device in registry order until fn returns false.
func (r *Registry) ForEach(fn func(Device) bool) {
	r.mu.RLock()
	devs := make([]Device, 0, len(r.order))
	for _, id := range r.order {
		devs = append(devs, r.workers[id].dev)
	}
	r.mu.RUnlock()

	for _, d := range devs {
		if !fn(d) {
			return
		}
	}
}

// List returns a snapshot of every instance in registry order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		w := r.workers[id]
		infos = append(infos, Info{
			ID:         id,
			Kind:       w.dev.Kind(),
			Lifecycle:  w.state(),
			QueueDepth: w.depth(),
		})
	}
	return infos
}

// Lifecycle returns the tracked lifecycle of one device.
func (r *Registry) Lifecycle(id string) (Lifecycle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workers[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return w.state(), nil
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Close stops accepting work and waits for every queue to drain until ctx
// ends. In-flight operations are then cancelled.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	workers := make([]*worker, 0, len(r.workers))
	for _, id := range r.order {
		workers = append(workers, r.workers[id])
	}
	r.mu.Unlock()

	defer r.cancel()

	for _, w := range workers {
		w.stop()
	}
	for _, w := range workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			r.logger.Warn("device queues not drained before deadline", "device_id", w.dev.ID())
			return fmt.Errorf("draining device queues: %w", ctx.Err())
		}
	}
	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
