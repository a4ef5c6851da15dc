package device

import (
	"context"
	"sync"
	"time"
)

// fakeCall records one backend invocation.
type fakeCall struct {
	Op     Op
	Effect ColorEffect
}

// fakeDevice is a test implementation of Device that records calls.
// It enforces the ErrNotLoaded contract like a real backend.
type fakeDevice struct {
	id   string
	kind Kind

	mu     sync.Mutex
	calls  []fakeCall
	loaded bool

	// For testing error paths
	errs  map[Op]error
	delay time.Duration
	panic bool
	gate  chan struct{}
}

func newFakeDevice(id string, kind Kind) *fakeDevice {
	return &fakeDevice{id: id, kind: kind, errs: make(map[Op]error)}
}

func (f *fakeDevice) ID() string { return f.id }
func (f *fakeDevice) Kind() Kind { return f.kind }

func (f *fakeDevice) failWith(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = err
}

func (f *fakeDevice) do(ctx context.Context, op Op, effect ColorEffect) error {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Op: op, Effect: effect})
	err := f.errs[op]
	delay := f.delay
	gate := f.gate
	shouldPanic := f.panic
	f.mu.Unlock()

	if shouldPanic {
		panic("boom")
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch op {
	case OpLoad:
		f.loaded = true
	case OpUnload:
		f.loaded = false
	default:
		if !f.loaded {
			return ErrNotLoaded
		}
	}
	return nil
}

func (f *fakeDevice) Load(ctx context.Context) error    { return f.do(ctx, OpLoad, ColorEffect{}) }
func (f *fakeDevice) Unload(ctx context.Context) error  { return f.do(ctx, OpUnload, ColorEffect{}) }
func (f *fakeDevice) TurnOn(ctx context.Context) error  { return f.do(ctx, OpTurnOn, ColorEffect{}) }
func (f *fakeDevice) TurnOff(ctx context.Context) error { return f.do(ctx, OpTurnOff, ColorEffect{}) }
func (f *fakeDevice) SendColors(ctx context.Context, e ColorEffect) error {
	return f.do(ctx, OpSendColors, e)
}

// count returns how many times op was invoked.
func (f *fakeDevice) count(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *fakeDevice) history() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}
