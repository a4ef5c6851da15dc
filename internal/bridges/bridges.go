package bridges

import (
	"fmt"

	"github.com/nerrad567/chroma-sync/internal/bridges/keyboard"
	"github.com/nerrad567/chroma-sync/internal/bridges/wled"
	"github.com/nerrad567/chroma-sync/internal/device"
)

// Logger defines the logging interface handed to backends.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// New builds the backend for cfg. This is the only place that switches on
// device kind. logger may be nil.
func New(cfg device.Config, logger Logger) (device.Device, error) {
	cfg = device.ApplyDefaults(cfg)
	if err := device.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case device.KindKeyboard:
		d, err := keyboard.New(cfg)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			d.SetLogger(logger)
		}
		return d, nil

	case device.KindWLED:
		d, err := wled.New(cfg)
		if err != nil {
			return nil, err
		}
		if logger != nil {
			d.SetLogger(logger)
		}
		return d, nil

	default:
		return nil, fmt.Errorf("%w: %q", device.ErrInvalidKind, cfg.Kind)
	}
}

// Factory builds a device from its config.
type Factory func(cfg device.Config) (device.Device, error)

// NewFactory returns a Factory bound to logger.
func NewFactory(logger Logger) Factory {
	return func(cfg device.Config) (device.Device, error) {
		return New(cfg, logger)
	}
}
