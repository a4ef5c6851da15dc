// Package devicetest provides a recording device.Device for tests of the
// packages that drive a device.Registry.
package devicetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/chroma-sync/internal/device"
)

// Call records one backend invocation.
type Call struct {
	Op     device.Op
	Effect device.ColorEffect
	At     time.Time
}

// Device records every call and honours the ErrNotLoaded contract.
type Device struct {
	id   string
	kind device.Kind

	mu     sync.Mutex
	calls  []Call
	loaded bool
	errs   map[device.Op]error
}

// New creates an unloaded recording device.
func New(id string, kind device.Kind) *Device {
	return &Device{id: id, kind: kind, errs: make(map[device.Op]error)}
}

// FailWith makes every future op return err.
func (d *Device) FailWith(op device.Op, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[op] = err
}

func (d *Device) ID() string        { return d.id }
func (d *Device) Kind() device.Kind { return d.kind }

func (d *Device) record(op device.Op, effect device.ColorEffect) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, Call{Op: op, Effect: effect, At: time.Now()})
	if err := d.errs[op]; err != nil {
		return err
	}
	switch op {
	case device.OpLoad:
		d.loaded = true
	case device.OpUnload:
		d.loaded = false
	default:
		if !d.loaded {
			return device.ErrNotLoaded
		}
	}
	return nil
}

func (d *Device) Load(context.Context) error    { return d.record(device.OpLoad, device.ColorEffect{}) }
func (d *Device) Unload(context.Context) error  { return d.record(device.OpUnload, device.ColorEffect{}) }
func (d *Device) TurnOn(context.Context) error  { return d.record(device.OpTurnOn, device.ColorEffect{}) }
func (d *Device) TurnOff(context.Context) error { return d.record(device.OpTurnOff, device.ColorEffect{}) }
func (d *Device) SendColors(_ context.Context, e device.ColorEffect) error {
	return d.record(device.OpSendColors, e)
}

// Count returns how many times op was invoked.
func (d *Device) Count(op device.Op) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Calls returns a copy of the call history.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Reset forgets the call history but keeps the lifecycle.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// Registry builds a registry over devs and closes it when the test ends.
func Registry(t testing.TB, devs ...device.Device) *device.Registry {
	t.Helper()
	reg := device.NewRegistry(device.RegistryOptions{OpTimeout: time.Second})
	for _, d := range devs {
		if err := reg.Add(d); err != nil {
			t.Fatalf("Add(%s) error = %v", d.ID(), err)
		}
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		reg.Close(ctx) //nolint:errcheck // Test cleanup
	})
	return reg
}

// Eventually polls cond until it holds or the timeout passes.
func Eventually(t testing.TB, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}
