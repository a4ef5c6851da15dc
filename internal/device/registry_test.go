package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var testEffect = NewColorEffect(
	RGB{255, 0, 0},
	RGB{0, 255, 0},
	RGB{0, 0, 255},
	RGB{255, 255, 0},
)

func newTestRegistry(t *testing.T, devs ...Device) *Registry {
	t.Helper()
	r := NewRegistry(RegistryOptions{OpTimeout: time.Second, QueueWarnDepth: 16})
	for _, d := range devs {
		if err := r.Add(d); err != nil {
			t.Fatalf("Add(%s) error = %v", d.ID(), err)
		}
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		r.Close(ctx) //nolint:errcheck // Test cleanup
	})
	return r
}

func TestRegistry_Add(t *testing.T) {
	kb := newFakeDevice("kb", KindKeyboard)
	r := newTestRegistry(t, kb)

	if err := r.Add(newFakeDevice("kb", KindWLED)); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Add(duplicate) error = %v, want ErrDeviceExists", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	lc, err := r.Lifecycle("kb")
	if err != nil || lc != Unloaded {
		t.Errorf("Lifecycle(kb) = %v, %v; want unloaded", lc, err)
	}
	if _, err := r.Lifecycle("missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Lifecycle(missing) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_LoadUnloadOncePerDevice(t *testing.T) {
	devs := []*fakeDevice{
		newFakeDevice("a", KindKeyboard),
		newFakeDevice("b", KindWLED),
		newFakeDevice("c", KindWLED),
	}
	r := newTestRegistry(t, devs[0], devs[1], devs[2])
	ctx := context.Background()

	report := r.Load(ctx)
	if !report.OK() {
		t.Fatalf("Load() failures = %v", report.Failures())
	}
	for _, d := range devs {
		if got := d.count(OpLoad); got != 1 {
			t.Errorf("%s load calls = %d, want 1", d.id, got)
		}
		if lc, _ := r.Lifecycle(d.id); lc != Loaded {
			t.Errorf("%s lifecycle = %s, want loaded", d.id, lc)
		}
	}

	r.Unload(ctx)
	for _, d := range devs {
		if got := d.count(OpUnload); got != 1 {
			t.Errorf("%s unload calls = %d, want 1", d.id, got)
		}
		if lc, _ := r.Lifecycle(d.id); lc != Unloaded {
			t.Errorf("%s lifecycle = %s, want unloaded", d.id, lc)
		}
	}
}

func TestRegistry_SendColorsSkipsUnloaded(t *testing.T) {
	kb := newFakeDevice("kb", KindKeyboard)
	led := newFakeDevice("led", KindWLED)
	r := newTestRegistry(t, kb, led)
	ctx := context.Background()

	if res, err := r.Apply(ctx, "kb", OpLoad); err != nil || res.Failed() {
		t.Fatalf("Apply(kb, load) = %v, %v", res, err)
	}

	report := r.SendColors(ctx, testEffect)

	if !report.OK() {
		t.Errorf("SendColors() failures = %v, want none", report.Failures())
	}
	calls := kb.history()
	last := calls[len(calls)-1]
	if last.Op != OpSendColors || last.Effect != testEffect {
		t.Errorf("keyboard last call = %+v, want send_colors %v", last, testEffect)
	}
	if got := led.count(OpSendColors); got != 0 {
		t.Errorf("unloaded device send_colors calls = %d, want 0", got)
	}

	byID := map[string]Result{}
	for _, res := range report.Results {
		byID[res.DeviceID] = res
	}
	if byID["kb"].Outcome() != OutcomeOK {
		t.Errorf("kb outcome = %s, want ok", byID["kb"].Outcome())
	}
	if !byID["led"].Skipped || !errors.Is(byID["led"].Err, ErrNotLoaded) {
		t.Errorf("led result = %+v, want skipped with ErrNotLoaded", byID["led"])
	}
}

func TestRegistry_FailureIsolation(t *testing.T) {
	ioErr := errors.New("usb write failed")
	devs := []*fakeDevice{
		newFakeDevice("a", KindWLED),
		newFakeDevice("b", KindKeyboard),
		newFakeDevice("c", KindWLED),
	}
	devs[1].failWith(OpSendColors, ioErr)
	r := newTestRegistry(t, devs[0], devs[1], devs[2])
	ctx := context.Background()
	r.Load(ctx)

	report := r.SendColors(ctx, testEffect)

	failures := report.Failures()
	if len(failures) != 1 || failures[0].DeviceID != "b" {
		t.Fatalf("Failures() = %+v, want only b", failures)
	}
	if !errors.Is(report.Err(), ioErr) {
		t.Errorf("Err() = %v, want wrapping %v", report.Err(), ioErr)
	}
	for _, d := range []*fakeDevice{devs[0], devs[2]} {
		if got := d.count(OpSendColors); got != 1 {
			t.Errorf("%s send_colors calls = %d, want 1", d.id, got)
		}
	}
}

func TestRegistry_TurnOffReachesEveryDevice(t *testing.T) {
	loaded := newFakeDevice("loaded", KindKeyboard)
	unloaded := newFakeDevice("unloaded", KindWLED)
	r := newTestRegistry(t, loaded, unloaded)
	ctx := context.Background()
	r.Apply(ctx, "loaded", OpLoad) //nolint:errcheck // Checked via lifecycle below

	report := r.TurnOff(ctx)

	for _, d := range []*fakeDevice{loaded, unloaded} {
		if got := d.count(OpTurnOff); got != 1 {
			t.Errorf("%s turn_off calls = %d, want 1", d.id, got)
		}
	}
	if !report.OK() {
		t.Errorf("TurnOff() failures = %v, want none", report.Failures())
	}
	if _, skipped, _ := report.Counts(); skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}
}

func TestRegistry_PerDeviceOrder(t *testing.T) {
	d := newFakeDevice("strip", KindWLED)
	r := newTestRegistry(t, d)
	ctx := context.Background()
	r.Load(ctx)

	const n = 50
	var pendings []*Pending
	for i := 0; i < n; i++ {
		e := ColorEffect{RGB{R: uint8(i)}}
		pendings = append(pendings, r.Dispatch(OpSendColors, e))
	}
	for _, p := range pendings {
		p.Wait(ctx)
	}

	var got []uint8
	for _, c := range d.history() {
		if c.Op == OpSendColors {
			got = append(got, c.Effect[0].R)
		}
	}
	if len(got) != n {
		t.Fatalf("send_colors calls = %d, want %d", len(got), n)
	}
	for i, v := range got {
		if int(v) != i {
			t.Fatalf("call %d carried %d, want %d", i, v, i)
		}
	}
}

func TestRegistry_SlowDeviceDoesNotBlockOthers(t *testing.T) {
	slow := newFakeDevice("slow", KindWLED)
	fast := newFakeDevice("fast", KindKeyboard)
	r := newTestRegistry(t, slow, fast)
	ctx := context.Background()
	r.Load(ctx)

	slow.mu.Lock()
	slow.gate = make(chan struct{})
	slow.mu.Unlock()

	p := r.Dispatch(OpSendColors, testEffect)

	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	report := p.Wait(waitCtx)

	byID := map[string]Result{}
	for _, res := range report.Results {
		byID[res.DeviceID] = res
	}
	if byID["fast"].Outcome() != OutcomeOK {
		t.Errorf("fast outcome = %s (%v), want ok", byID["fast"].Outcome(), byID["fast"].Err)
	}
	if !errors.Is(byID["slow"].Err, ErrPending) {
		t.Errorf("slow err = %v, want ErrPending", byID["slow"].Err)
	}

	close(slow.gate)
	final := p.Wait(ctx)
	if !final.OK() {
		t.Errorf("final report failures = %v", final.Failures())
	}
}

func TestRegistry_OperationTimeout(t *testing.T) {
	d := newFakeDevice("hung", KindKeyboard)
	r := NewRegistry(RegistryOptions{OpTimeout: 20 * time.Millisecond})
	defer r.Close(context.Background()) //nolint:errcheck // Test cleanup
	r.Add(d)                             //nolint:errcheck // Fresh registry

	d.mu.Lock()
	d.delay = time.Second
	d.mu.Unlock()

	report := r.Load(context.Background())
	failures := report.Failures()
	if len(failures) != 1 || !errors.Is(failures[0].Err, ErrTimeout) {
		t.Fatalf("Load() failures = %+v, want one ErrTimeout", failures)
	}
	if lc, _ := r.Lifecycle("hung"); lc != Unloaded {
		t.Errorf("lifecycle after failed load = %s, want unloaded", lc)
	}
}

func TestRegistry_PanicRecovered(t *testing.T) {
	bad := newFakeDevice("bad", KindWLED)
	good := newFakeDevice("good", KindKeyboard)
	bad.panic = true
	r := newTestRegistry(t, bad, good)

	report := r.Load(context.Background())

	failures := report.Failures()
	if len(failures) != 1 || !errors.Is(failures[0].Err, ErrPanic) {
		t.Fatalf("Load() failures = %+v, want one ErrPanic", failures)
	}
	if good.count(OpLoad) != 1 {
		t.Error("good device did not load after sibling panic")
	}

	// The worker survives the panic.
	bad.mu.Lock()
	bad.panic = false
	bad.mu.Unlock()
	if res, _ := r.Apply(context.Background(), "bad", OpLoad); res.Failed() {
		t.Errorf("Apply(bad, load) after panic = %v", res.Err)
	}
}

func TestRegistry_Remove(t *testing.T) {
	a := newFakeDevice("a", KindKeyboard)
	b := newFakeDevice("b", KindWLED)
	r := newTestRegistry(t, a, b)
	ctx := context.Background()
	r.Load(ctx)

	if err := r.Remove(ctx, "a"); err != nil {
		t.Fatalf("Remove(a) error = %v", err)
	}
	if a.count(OpUnload) != 1 {
		t.Errorf("removed device unload calls = %d, want 1", a.count(OpUnload))
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	r.SendColors(ctx, testEffect)
	if a.count(OpSendColors) != 0 {
		t.Error("removed device received send_colors")
	}
	if err := r.Remove(ctx, "a"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Remove(a) again error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_Replace(t *testing.T) {
	a := newFakeDevice("a", KindKeyboard)
	b := newFakeDevice("b", KindWLED)
	r := newTestRegistry(t, a, b)
	ctx := context.Background()
	r.Load(ctx)

	a2 := newFakeDevice("a", KindKeyboard)
	if err := r.Replace(ctx, a2); err != nil {
		t.Fatalf("Replace(a) error = %v", err)
	}
	if a.count(OpUnload) != 1 {
		t.Errorf("old instance unload calls = %d, want 1", a.count(OpUnload))
	}
	if a2.count(OpLoad) != 1 {
		t.Errorf("new instance load calls = %d, want 1", a2.count(OpLoad))
	}

	infos := r.List()
	if len(infos) != 2 || infos[0].ID != "a" || infos[0].Lifecycle != Loaded {
		t.Errorf("List() = %+v, want a first and loaded", infos)
	}

	if err := r.Replace(ctx, newFakeDevice("zzz", KindWLED)); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Replace(unknown) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_Observer(t *testing.T) {
	a := newFakeDevice("a", KindKeyboard)
	r := newTestRegistry(t, a)

	var mu sync.Mutex
	var seen []Result
	r.SetObserver(func(res Result) {
		mu.Lock()
		seen = append(seen, res)
		mu.Unlock()
	})

	r.Load(context.Background())
	r.TurnOn(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0].Op != OpLoad || seen[1].Op != OpTurnOn {
		t.Errorf("observed = %+v, want load then turn_on", seen)
	}
}

func TestRegistry_ForEach(t *testing.T) {
	r := newTestRegistry(t,
		newFakeDevice("a", KindKeyboard),
		newFakeDevice("b", KindWLED),
		newFakeDevice("c", KindWLED),
	)

	var ids []string
	r.ForEach(func(d Device) bool {
		ids = append(ids, d.ID())
		return d.ID() != "b"
	})
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ForEach visited %v, want [a b]", ids)
	}
}

func TestRegistry_CloseDrains(t *testing.T) {
	d := newFakeDevice("a", KindWLED)
	r := NewRegistry(RegistryOptions{OpTimeout: time.Second})
	r.Add(d) //nolint:errcheck // Fresh registry
	r.Load(context.Background())

	d.mu.Lock()
	d.delay = 10 * time.Millisecond
	d.mu.Unlock()
	for i := 0; i < 5; i++ {
		r.Dispatch(OpSendColors, testEffect)
	}

	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := d.count(OpSendColors); got != 5 {
		t.Errorf("send_colors after drain = %d, want 5", got)
	}

	p := r.Dispatch(OpSendColors, testEffect)
	if len(p.Report().Results) != 0 {
		t.Error("Dispatch after Close queued work")
	}
	if err := r.Add(newFakeDevice("late", KindWLED)); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Add after Close error = %v, want ErrRegistryClosed", err)
	}

	a2 := newFakeDevice("a", KindWLED)
	if err := r.Replace(context.Background(), a2); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Replace after Close error = %v, want ErrRegistryClosed", err)
	}
	if a2.count(OpLoad) != 0 {
		t.Error("Replace after Close loaded the new instance")
	}
}

func TestRegistry_CloseDeadline(t *testing.T) {
	d := newFakeDevice("stuck", KindWLED)
	d.gate = make(chan struct{})
	r := NewRegistry(RegistryOptions{})
	r.Add(d) //nolint:errcheck // Fresh registry
	r.Dispatch(OpLoad, ColorEffect{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close() error = %v, want deadline exceeded", err)
	}
}

func TestRegistry_RateLimitedSendsStillArrive(t *testing.T) {
	d := newFakeDevice("paced", KindWLED)
	r := NewRegistry(RegistryOptions{OpTimeout: time.Second, RateLimit: 200, RateBurst: 1})
	defer r.Close(context.Background()) //nolint:errcheck // Test cleanup
	r.Add(d)                             //nolint:errcheck // Fresh registry
	r.Load(context.Background())

	var pendings []*Pending
	for i := 0; i < 5; i++ {
		pendings = append(pendings, r.Dispatch(OpSendColors, testEffect))
	}
	for _, p := range pendings {
		if rep := p.Wait(context.Background()); !rep.OK() {
			t.Fatalf("paced send failed: %v", rep.Err())
		}
	}
	if got := d.count(OpSendColors); got != 5 {
		t.Errorf("send_colors calls = %d, want 5", got)
	}
}
