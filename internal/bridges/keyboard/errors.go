package keyboard

import "errors"

// Domain errors for the keyboard backend.
var (
	// ErrDeviceNotFound is returned when no supported HID keyboard is attached.
	ErrDeviceNotFound = errors.New("keyboard: no supported device found")

	// ErrOpenFailed is returned when the HID device cannot be opened.
	ErrOpenFailed = errors.New("keyboard: open failed")

	// ErrWriteFailed is returned when a feature report write fails or is short.
	ErrWriteFailed = errors.New("keyboard: write failed")

	// ErrInvalidConfig is returned when the keyboard settings are unusable.
	ErrInvalidConfig = errors.New("keyboard: invalid config")
)
