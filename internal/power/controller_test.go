package power

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/chroma-sync/internal/device"
	"github.com/nerrad567/chroma-sync/internal/device/devicetest"
	"github.com/nerrad567/chroma-sync/internal/infrastructure/mqtt"
)

// chanSource is a Source driven by the test.
type chanSource struct {
	mu       sync.Mutex
	out      chan<- Event
	startErr error
	stopped  bool
}

func (s *chanSource) Name() string { return "test" }

func (s *chanSource) Start(_ context.Context, out chan<- Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.out = out
	return nil
}

func (s *chanSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *chanSource) emit(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deliver(s.out, ev)
}

// fakeSubscriber is a test Subscriber.
type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string]mqtt.MessageHandler
	err      error
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, h mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.handlers == nil {
		f.handlers = make(map[string]mqtt.MessageHandler)
	}
	f.handlers[topic] = h
	return nil
}

func (f *fakeSubscriber) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeSubscriber) publish(topic string, payload string) error {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h == nil {
		return errors.New("no subscriber")
	}
	return h(topic, []byte(payload))
}

func loadedDevices(t *testing.T) (*device.Registry, []*devicetest.Device) {
	t.Helper()
	devs := []*devicetest.Device{
		devicetest.New("kb", device.KindKeyboard),
		devicetest.New("strip", device.KindWLED),
	}
	reg := devicetest.Registry(t, devs[0], devs[1])
	if r := reg.Load(context.Background()); !r.OK() {
		t.Fatalf("Load() report = %+v", r)
	}
	for _, d := range devs {
		d.Reset()
	}
	return reg, devs
}

func TestController_Handle(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantOp  device.Op
		wantOff int
		wantOn  int
	}{
		{name: "suspend", code: CodeSuspend, wantOp: device.OpTurnOff, wantOff: 1},
		{name: "resume", code: CodeResumeSuspend, wantOp: device.OpTurnOn, wantOn: 1},
		{name: "power status", code: CodePowerStatus},
		{name: "oem", code: CodeOEMEvent},
		{name: "automatic resume", code: CodeResumeAutomatic},
		{name: "unknown", code: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, devs := loadedDevices(t)
			c := NewController(NoneSource{}, reg)

			report := c.Handle(context.Background(), NewEvent("test", tt.code))
			if report.Op != tt.wantOp {
				t.Errorf("Handle() op = %q, want %q", report.Op, tt.wantOp)
			}
			for _, d := range devs {
				if got := d.Count(device.OpTurnOff); got != tt.wantOff {
					t.Errorf("%s turn_off calls = %d, want %d", d.ID(), got, tt.wantOff)
				}
				if got := d.Count(device.OpTurnOn); got != tt.wantOn {
					t.Errorf("%s turn_on calls = %d, want %d", d.ID(), got, tt.wantOn)
				}
				if got := len(d.Calls()); got != tt.wantOff+tt.wantOn {
					t.Errorf("%s total calls = %d, want %d", d.ID(), got, tt.wantOff+tt.wantOn)
				}
			}
		})
	}
}

func TestController_AckAfterTurnOff(t *testing.T) {
	reg, devs := loadedDevices(t)
	c := NewController(NoneSource{}, reg)

	var offAtAck int
	ev := NewEvent("test", CodeSuspend).WithAck(func() {
		offAtAck = devs[0].Count(device.OpTurnOff) + devs[1].Count(device.OpTurnOff)
	})
	c.Handle(context.Background(), ev)

	if offAtAck != 2 {
		t.Errorf("turn_off calls at ack = %d, want 2", offAtAck)
	}
}

func TestController_Sink(t *testing.T) {
	reg, _ := loadedDevices(t)
	c := NewController(NoneSource{}, reg)

	var got []Kind
	c.SetSink(func(ev Event, _ device.Report) { got = append(got, ev.Kind) })

	ctx := context.Background()
	c.Handle(ctx, NewEvent("test", CodeSuspend))
	c.Handle(ctx, NewEvent("test", CodePowerStatus))
	c.Handle(ctx, NewEvent("test", CodeResumeSuspend))

	want := []Kind{Suspend, Other, Resume}
	if len(got) != len(want) {
		t.Fatalf("sink kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sink[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestController_StartStop(t *testing.T) {
	reg, devs := loadedDevices(t)
	src := &chanSource{}
	c := NewController(src, reg)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	if !src.emit(NewEvent("test", CodeSuspend)) {
		t.Fatal("emit() dropped event")
	}
	devicetest.Eventually(t, time.Second, func() bool {
		return devs[0].Count(device.OpTurnOff) == 1 && devs[1].Count(device.OpTurnOff) == 1
	}, "turn_off on both devices")

	src.emit(NewEvent("test", CodeResumeSuspend))
	devicetest.Eventually(t, time.Second, func() bool {
		return devs[0].Count(device.OpTurnOn) == 1 && devs[1].Count(device.OpTurnOn) == 1
	}, "turn_on on both devices")

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if !src.stopped {
		t.Error("source not stopped")
	}
	if err := c.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestController_StartError(t *testing.T) {
	reg, _ := loadedDevices(t)
	boom := errors.New("no bus")
	c := NewController(&chanSource{startErr: boom}, reg)

	if err := c.Start(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Start() error = %v, want %v", err, boom)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("Stop() after failed Start error = %v", err)
	}
}

func TestMQTTSource(t *testing.T) {
	sub := &fakeSubscriber{}
	src := NewMQTTSource(sub, "chromasync/power/event", 1)
	out := make(chan Event, 1)

	if err := src.Start(context.Background(), out); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := sub.publish("chromasync/power/event", " 4\n"); err != nil {
		t.Fatalf("publish() error = %v", err)
	}
	ev := <-out
	if ev.Kind != Suspend || ev.Code != CodeSuspend || ev.Source != SourceMQTT {
		t.Errorf("event = %+v, want suspend from mqtt", ev)
	}

	if err := sub.publish("chromasync/power/event", "sleep"); err == nil {
		t.Error("publish(non-integer) error = nil, want error")
	}

	// Queue full: the second event is dropped, not blocked on.
	sub.publish("chromasync/power/event", "7") //nolint:errcheck // Fills the buffer
	if err := sub.publish("chromasync/power/event", "7"); err == nil {
		t.Error("publish() with full queue error = nil, want error")
	}

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := sub.publish("chromasync/power/event", "4"); err == nil {
		t.Error("publish() after Stop error = nil, want error")
	}
}

func TestMQTTSource_SubscribeError(t *testing.T) {
	src := NewMQTTSource(&fakeSubscriber{err: errors.New("offline")}, "t", 1)
	if err := src.Start(context.Background(), make(chan Event, 1)); !errors.Is(err, ErrSubscribe) {
		t.Errorf("Start() error = %v, want ErrSubscribe", err)
	}
}
