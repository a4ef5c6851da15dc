package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotLoaded) {
//	    // benign: the instance is unloaded
//	}
var (
	// ErrNotLoaded is returned by a backend called while unloaded.
	// The registry classifies it as skipped, not failed.
	ErrNotLoaded = errors.New("device: not loaded")

	// ErrTimeout is returned when device I/O exceeds the operation deadline.
	ErrTimeout = errors.New("device: operation timed out")

	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when adding a device with an ID already in use.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidConfig is returned when device config validation fails.
	ErrInvalidConfig = errors.New("device: invalid config")

	// ErrInvalidKind is returned when a kind value is not recognised.
	ErrInvalidKind = errors.New("device: invalid kind")

	// ErrInvalidOp is returned for an unknown operation name.
	ErrInvalidOp = errors.New("device: invalid operation")

	// ErrRegistryClosed is returned after Close.
	ErrRegistryClosed = errors.New("device: registry closed")

	// ErrPending marks a result still queued when the caller stopped waiting.
	ErrPending = errors.New("device: operation still pending")

	// ErrPanic wraps a panic recovered from a backend call.
	ErrPanic = errors.New("device: backend panicked")
)
