package wled

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/chroma-sync/internal/device"
)

// fakeController emulates the WLED websocket endpoint and realtime port.
type fakeController struct {
	t      *testing.T
	srv    *httptest.Server
	udp    net.PacketConn
	mu     sync.Mutex
	states []stateCommand
	conns  []*websocket.Conn
}

func newFakeController(t *testing.T) *fakeController {
	t.Helper()
	f := &fakeController{t: t}

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		// WLED pushes its full state on connect.
		conn.WriteJSON(map[string]any{"state": map[string]any{"on": true}}) //nolint:errcheck // Best effort
		for {
			var cmd stateCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			f.mu.Lock()
			f.states = append(f.states, cmd)
			f.mu.Unlock()
		}
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	udp, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket() error = %v", err)
	}
	f.udp = udp
	t.Cleanup(func() { udp.Close() }) //nolint:errcheck // Test cleanup
	return f
}

func (f *fakeController) config(ledCount int) device.Config {
	u, _ := url.Parse(f.srv.URL)
	httpPort, _ := strconv.Atoi(u.Port())
	udpPort := f.udp.LocalAddr().(*net.UDPAddr).Port
	return device.Config{
		ID:   "strip",
		Kind: device.KindWLED,
		WLED: &device.WLEDConfig{
			Host:            "127.0.0.1",
			HTTPPort:        httpPort,
			UDPPort:         udpPort,
			LEDCount:        ledCount,
			RealtimeTimeout: 5,
		},
	}
}

func (f *fakeController) readPacket() []byte {
	f.t.Helper()
	buf := make([]byte, 2048)
	f.udp.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // Test helper
	n, _, err := f.udp.ReadFrom(buf)
	if err != nil {
		f.t.Fatalf("ReadFrom() error = %v", err)
	}
	return buf[:n]
}

func (f *fakeController) waitStates(n int) []stateCommand {
	f.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		got := append([]stateCommand(nil), f.states...)
		f.mu.Unlock()
		if len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.t.Fatalf("controller received fewer than %d state commands", n)
	return nil
}

func (f *fakeController) dropSessions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		c.Close()
	}
}

var effect = device.NewColorEffect(
	device.RGB{R: 255},
	device.RGB{G: 255},
	device.RGB{B: 255},
	device.RGB{R: 255, G: 255},
)

func loadedDevice(t *testing.T, f *fakeController, leds int) *Device {
	t.Helper()
	d, err := New(f.config(leds))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(func() { d.Unload(context.Background()) }) //nolint:errcheck // Test cleanup
	return d
}

func TestNew_RejectsOtherKinds(t *testing.T) {
	_, err := New(device.Config{ID: "kb", Kind: device.KindKeyboard})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New(keyboard) error = %v, want ErrInvalidConfig", err)
	}
}

func TestDevice_UnloadedReturnsErrNotLoaded(t *testing.T) {
	f := newFakeController(t)
	d, _ := New(f.config(8))
	ctx := context.Background()

	for name, op := range map[string]func() error{
		"SendColors": func() error { return d.SendColors(ctx, effect) },
		"TurnOn":     func() error { return d.TurnOn(ctx) },
		"TurnOff":    func() error { return d.TurnOff(ctx) },
		"Unload":     func() error { return d.Unload(ctx) },
	} {
		if err := op(); !errors.Is(err, device.ErrNotLoaded) {
			t.Errorf("%s() error = %v, want ErrNotLoaded", name, err)
		}
	}
}

func TestDevice_SendColorsDRGB(t *testing.T) {
	f := newFakeController(t)
	d := loadedDevice(t, f, 8)

	if err := d.SendColors(context.Background(), effect); err != nil {
		t.Fatalf("SendColors() error = %v", err)
	}

	pkt := f.readPacket()
	if pkt[0] != ProtocolDRGB || pkt[1] != 5 {
		t.Fatalf("header = % x, want 02 05", pkt[:2])
	}
	if len(pkt) != 2+8*3 {
		t.Fatalf("packet length = %d, want %d", len(pkt), 2+8*3)
	}
	// Quarters of 8 LEDs: 2 LEDs per zone.
	wantFirst := []byte{255, 0, 0, 255, 0, 0, 0, 255, 0}
	for i, b := range wantFirst {
		if pkt[2+i] != b {
			t.Fatalf("pixels = % x, want prefix % x", pkt[2:], wantFirst)
		}
	}
}

func TestDevice_TurnOffOnSession(t *testing.T) {
	f := newFakeController(t)
	d := loadedDevice(t, f, 4)
	ctx := context.Background()

	if err := d.TurnOff(ctx); err != nil {
		t.Fatalf("TurnOff() error = %v", err)
	}
	// Colors while off are remembered, not sent.
	if err := d.SendColors(ctx, effect); err != nil {
		t.Fatalf("SendColors() while off error = %v", err)
	}
	if err := d.TurnOn(ctx); err != nil {
		t.Fatalf("TurnOn() error = %v", err)
	}

	states := f.waitStates(2)
	if states[0].On || !states[1].On {
		t.Errorf("states = %+v, want off then on", states)
	}
	pkt := f.readPacket()
	if pkt[2] != 255 || pkt[3] != 0 {
		t.Errorf("repaint after TurnOn = % x, want first zone red", pkt)
	}
}

func TestDevice_ConnectionLossAndReload(t *testing.T) {
	f := newFakeController(t)
	d := loadedDevice(t, f, 4)
	ctx := context.Background()

	f.dropSessions()
	deadline := time.Now().Add(2 * time.Second)
	var err error
	for time.Now().Before(deadline) {
		if err = d.TurnOff(ctx); errors.Is(err, ErrConnectionLost) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !errors.Is(err, ErrConnectionLost) {
		t.Fatalf("TurnOff() after drop error = %v, want ErrConnectionLost", err)
	}

	if err := d.Load(ctx); err != nil {
		t.Fatalf("Load() after drop error = %v", err)
	}
	if err := d.TurnOn(ctx); err != nil {
		t.Errorf("TurnOn() after reload error = %v", err)
	}
}

func TestDevice_LoadFailure(t *testing.T) {
	d, _ := New(device.Config{
		ID:   "gone",
		Kind: device.KindWLED,
		WLED: &device.WLEDConfig{Host: "127.0.0.1", HTTPPort: 1, LEDCount: 10},
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := d.Load(ctx); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Load() error = %v, want ErrConnectionFailed", err)
	}
}
