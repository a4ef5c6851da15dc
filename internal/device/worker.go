package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// job is one queued operation for one device.
type job struct {
	op     Op
	effect ColorEffect
	done   func(Result)
}

// worker owns one device and applies its operations in FIFO order.
// The queue is unbounded so no operation is ever dropped; a slow device
// only delays its own queue.
type worker struct {
	dev       Device
	timeout   time.Duration
	limiter   *rate.Limiter
	warnDepth int
	logger    Logger
	base      context.Context

	mu        sync.Mutex
	queue     []job
	closed    bool
	lifecycle Lifecycle
	warned    bool

	signal chan struct{}
	done   chan struct{}
}

func newWorker(base context.Context, dev Device, opts RegistryOptions, logger Logger) *worker {
	w := &worker{
		dev:       dev,
		timeout:   opts.OpTimeout,
		warnDepth: opts.QueueWarnDepth,
		logger:    logger,
		base:      base,
		lifecycle: Unloaded,
		signal:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return w
}

// enqueue appends j to the queue. Returns false once the worker is stopping.
func (w *worker) enqueue(j job) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.queue = append(w.queue, j)
	depth := len(w.queue)
	warn := w.warnDepth > 0 && depth >= w.warnDepth && !w.warned
	if warn {
		w.warned = true
	}
	w.mu.Unlock()

	if warn {
		w.logger.Warn("device queue backing up", "device_id", w.dev.ID(), "depth", depth)
	}

	select {
	case w.signal <- struct{}{}:
	default:
	}
	return true
}

// stop refuses further jobs. Queued jobs still run.
func (w *worker) stop() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *worker) depth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

func (w *worker) state() Lifecycle {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lifecycle
}

// run drains the queue until stopped and empty.
func (w *worker) run() {
	defer close(w.done)

	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			if w.closed {
				w.mu.Unlock()
				return
			}
			w.warned = false
			w.mu.Unlock()
			<-w.signal
			continue
		}
		j := w.queue[0]
		w.queue[0] = job{}
		w.queue = w.queue[1:]
		w.mu.Unlock()

		res := w.execute(j)
		if j.done != nil {
			j.done(res)
		}
	}
}

// execute runs one job against the device and classifies the outcome.
func (w *worker) execute(j job) Result {
	start := time.Now()
	res := Result{DeviceID: w.dev.ID(), Kind: w.dev.Kind(), Op: j.op}

	if j.op == OpSendColors && w.state() != Loaded {
		res.Err = ErrNotLoaded
		res.Skipped = true
		return res
	}

	ctx := w.base
	var cancel context.CancelFunc
	if w.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var err error
	if w.limiter != nil && j.op == OpSendColors {
		err = w.limiter.Wait(ctx)
	}
	if err == nil {
		err = w.invoke(ctx, j)
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	w.transition(j.op, err)

	res.Err = err
	res.Skipped = errors.Is(err, ErrNotLoaded)
	res.Duration = time.Since(start)

	if res.Failed() {
		w.logger.Warn("device operation failed",
			"device_id", res.DeviceID, "kind", res.Kind, "op", res.Op, "error", err)
	}
	return res
}

// invoke calls the backend, turning a panic into an error.
func (w *worker) invoke(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return call(ctx, w.dev, j.op, j.effect)
}

// transition updates the tracked lifecycle after a load or unload.
// An unload always leaves the instance unloaded; the backend releases
// what it can even when it reports an error.
func (w *worker) transition(op Op, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch op {
	case OpLoad:
		if err == nil {
			w.lifecycle = Loaded
		}
	case OpUnload:
		w.lifecycle = Unloaded
	}
}
