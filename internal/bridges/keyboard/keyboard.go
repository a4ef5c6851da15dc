package keyboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/chroma-sync/internal/device"
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

var white = device.RGB{R: 255, G: 255, B: 255}

// Device drives a 4-zone keyboard backlight over HID feature reports.
//
// HID writes are synchronous and may hang on a wedged controller, so each
// write runs on its own goroutine and the call returns device.ErrTimeout
// when ctx expires first. Writes never overlap.
type Device struct {
	cfg    device.Config
	kb     device.KeyboardConfig
	open   opener
	logger Logger

	mu   sync.Mutex
	h    handle
	last device.ColorEffect
	off  bool

	writeMu sync.Mutex
}

// New creates an unloaded keyboard device from its config.
func New(cfg device.Config) (*Device, error) {
	if cfg.Kind != device.KindKeyboard {
		return nil, fmt.Errorf("%w: %s is not a keyboard config", ErrInvalidConfig, cfg.ID)
	}
	cfg = device.ApplyDefaults(cfg)
	return &Device{
		cfg:    cfg,
		kb:     *cfg.Keyboard,
		open:   openHID,
		logger: noopLogger{},
		last:   device.ColorEffect{white, white, white, white},
	}, nil
}

// SetLogger sets the logger for the device.
func (d *Device) SetLogger(logger Logger) {
	d.logger = logger
}

// ID returns the configured device ID.
func (d *Device) ID() string { return d.cfg.ID }

// Kind returns device.KindKeyboard.
func (d *Device) Kind() device.Kind { return device.KindKeyboard }

// Load opens the HID device. A second Load while open is a no-op.
func (d *Device) Load(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.h != nil {
		return nil
	}
	h, path, err := d.open(d.kb.Path, d.kb.VendorID, d.kb.ProductID)
	if err != nil {
		return err
	}
	d.h = h
	d.off = false
	d.logger.Info("keyboard opened", "device_id", d.cfg.ID, "path", path)
	return nil
}

// Unload closes the HID device.
func (d *Device) Unload(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.h == nil {
		return device.ErrNotLoaded
	}
	err := d.h.Close()
	d.h = nil
	if err != nil {
		return fmt.Errorf("closing hid device: %w", err)
	}
	return nil
}

// TurnOn repaints the last colors, or white if none were sent yet.
func (d *Device) TurnOn(ctx context.Context) error {
	d.mu.Lock()
	h, effect := d.h, d.last
	d.mu.Unlock()

	if h == nil {
		return device.ErrNotLoaded
	}
	if err := d.write(ctx, h, effect); err != nil {
		return err
	}

	d.mu.Lock()
	d.off = false
	d.mu.Unlock()
	return nil
}

// TurnOff paints every zone black. The HID handle stays open.
func (d *Device) TurnOff(ctx context.Context) error {
	d.mu.Lock()
	h := d.h
	d.mu.Unlock()

	if h == nil {
		return device.ErrNotLoaded
	}
	if err := d.write(ctx, h, device.ColorEffect{}); err != nil {
		return err
	}

	d.mu.Lock()
	d.off = true
	d.mu.Unlock()
	return nil
}

// SendColors writes the effect. While the output is off the colors are
// only remembered for the next TurnOn.
func (d *Device) SendColors(ctx context.Context, effect device.ColorEffect) error {
	d.mu.Lock()
	h, off := d.h, d.off
	if h != nil {
		d.last = effect
	}
	d.mu.Unlock()

	if h == nil {
		return device.ErrNotLoaded
	}
	if off {
		return nil
	}
	return d.write(ctx, h, effect)
}

// write sends one feature report under ctx's deadline.
func (d *Device) write(ctx context.Context, h handle, effect device.ColorEffect) error {
	report := EncodeReport(effect, d.kb.ZoneMap, d.kb.Brightness)

	done := make(chan error, 1)
	go func() {
		d.writeMu.Lock()
		defer d.writeMu.Unlock()

		if ctx.Err() != nil {
			done <- ctx.Err()
			return
		}
		n, err := h.SendFeatureReport(report)
		switch {
		case err != nil:
			done <- fmt.Errorf("%w: %w", ErrWriteFailed, err)
		case n < len(report):
			done <- fmt.Errorf("%w: short write %d/%d", ErrWriteFailed, n, len(report))
		default:
			done <- nil
		}
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", device.ErrTimeout, err)
		}
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: hid write: %w", device.ErrTimeout, ctx.Err())
	}
}
