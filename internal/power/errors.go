package power

import "errors"

// Domain errors for the power package.
var (
	// ErrUnsupported is returned when a power source is not available on this platform.
	ErrUnsupported = errors.New("power: source not supported on this platform")

	// ErrUnknownSource is returned for an unrecognised source name.
	ErrUnknownSource = errors.New("power: unknown source")

	// ErrSubscribe is returned when the platform notification cannot be registered.
	ErrSubscribe = errors.New("power: subscribe failed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("power: already started")
)
