package wled

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/chroma-sync/internal/device"
)

const (
	defaultWriteTimeout = 2 * time.Second
	wsPath              = "/ws"
	maxInboundMessage   = 64 * 1024
)

// Logger defines the logging interface used by the backend.
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

// stateCommand is the subset of the WLED JSON state API this backend sends.
type stateCommand struct {
	On bool `json:"on"`
}

// Device drives one WLED controller. Colors go over UDP realtime; on/off
// goes over the JSON websocket session.
//
// Thread Safety: methods are safe for concurrent use, though the registry
// only calls them from one worker goroutine.
type Device struct {
	cfg    device.Config
	wled   device.WLEDConfig
	logger Logger

	mu      sync.Mutex
	ws      *websocket.Conn
	udp     net.Conn
	lost    chan struct{} // closed by the read loop when the session drops
	off     bool
	last    device.ColorEffect
	hasLast bool
}

// New creates an unloaded WLED device from its config.
func New(cfg device.Config) (*Device, error) {
	if cfg.Kind != device.KindWLED || cfg.WLED == nil {
		return nil, fmt.Errorf("%w: %s is not a wled config", ErrInvalidConfig, cfg.ID)
	}
	cfg = device.ApplyDefaults(cfg)
	return &Device{
		cfg:    cfg,
		wled:   *cfg.WLED,
		logger: noopLogger{},
	}, nil
}

// SetLogger sets the logger for the device.
func (d *Device) SetLogger(logger Logger) {
	d.logger = logger
}

// ID returns the configured device ID.
func (d *Device) ID() string { return d.cfg.ID }

// Kind returns device.KindWLED.
func (d *Device) Kind() device.Kind { return device.KindWLED }

// Load opens the websocket session and the realtime UDP socket. Calling
// Load on a loaded device with a healthy session is a no-op; a dropped
// session is re-established.
func (d *Device) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ws != nil && !d.sessionLost() {
		return nil
	}
	d.closeLocked()

	wsURL := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort(d.wled.Host, strconv.Itoa(d.wled.HTTPPort)),
		Path:   wsPath,
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("%w: websocket %s: %w", ErrConnectionFailed, wsURL.String(), err)
	}

	var dialer net.Dialer
	udp, err := dialer.DialContext(ctx, "udp", net.JoinHostPort(d.wled.Host, strconv.Itoa(d.wled.UDPPort)))
	if err != nil {
		ws.Close()
		return fmt.Errorf("%w: udp: %w", ErrConnectionFailed, err)
	}

	ws.SetReadLimit(maxInboundMessage)
	d.ws = ws
	d.udp = udp
	d.lost = make(chan struct{})
	d.off = false
	go d.readLoop(ws, d.lost)

	d.logger.Info("wled connected", "device_id", d.cfg.ID, "host", d.wled.Host)
	return nil
}

// readLoop discards state pushes from the controller and signals when
// the session ends. Reading is also what processes control frames.
func (d *Device) readLoop(ws *websocket.Conn, lost chan struct{}) {
	defer close(lost)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (d *Device) sessionLost() bool {
	select {
	case <-d.lost:
		return true
	default:
		return false
	}
}

// Unload closes the session and socket.
func (d *Device) Unload(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ws == nil {
		return device.ErrNotLoaded
	}
	err := d.closeLocked()
	d.logger.Info("wled disconnected", "device_id", d.cfg.ID)
	return err
}

func (d *Device) closeLocked() error {
	var errs []error
	if d.ws != nil {
		_ = d.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		errs = append(errs, d.ws.Close())
		d.ws = nil
	}
	if d.udp != nil {
		errs = append(errs, d.udp.Close())
		d.udp = nil
	}
	return errors.Join(errs...)
}

// TurnOn switches the controller output on and repaints the last colors.
func (d *Device) TurnOn(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.sendState(ctx, true); err != nil {
		return err
	}
	d.off = false
	if d.hasLast {
		return d.writeFrame(ctx, d.last)
	}
	return nil
}

// TurnOff switches the controller output off. The session stays open.
func (d *Device) TurnOff(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.sendState(ctx, false); err != nil {
		return err
	}
	d.off = true
	return nil
}

func (d *Device) sendState(ctx context.Context, on bool) error {
	if d.ws == nil {
		return device.ErrNotLoaded
	}
	if d.sessionLost() {
		return ErrConnectionLost
	}
	if err := d.ws.SetWriteDeadline(deadline(ctx)); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrWriteFailed, err)
	}
	if err := d.ws.WriteJSON(stateCommand{On: on}); err != nil {
		return fmt.Errorf("%w: state: %w", ErrWriteFailed, err)
	}
	return nil
}

// SendColors writes one realtime frame. While the output is off the colors
// are only remembered for the next TurnOn.
func (d *Device) SendColors(ctx context.Context, effect device.ColorEffect) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.udp == nil {
		return device.ErrNotLoaded
	}
	d.last = effect
	d.hasLast = true
	if d.off {
		return nil
	}
	return d.writeFrame(ctx, effect)
}

func (d *Device) writeFrame(ctx context.Context, effect device.ColorEffect) error {
	if d.udp == nil {
		return device.ErrNotLoaded
	}
	if err := d.udp.SetWriteDeadline(deadline(ctx)); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrWriteFailed, err)
	}

	pixels := Pixels(effect, d.wled.Segments, d.wled.LEDCount)
	// #nosec G115 -- realtime_timeout validated to 0..255
	for _, pkt := range EncodeRealtime(pixels, byte(d.wled.RealtimeTimeout)) {
		if _, err := d.udp.Write(pkt); err != nil {
			return fmt.Errorf("%w: realtime: %w", ErrWriteFailed, err)
		}
	}
	return nil
}

// deadline returns ctx's deadline, capped at the default write timeout.
func deadline(ctx context.Context) time.Time {
	dl := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(dl) {
		dl = d
	}
	return dl
}
