package broadcast

import "errors"

// Domain errors for the broadcast package.
var (
	// ErrUnsupported is returned when a source is not available on this platform.
	ErrUnsupported = errors.New("broadcast: source not supported on this platform")

	// ErrUnknownSource is returned for an unrecognised source name.
	ErrUnknownSource = errors.New("broadcast: unknown source")

	// ErrInvalidAppID is returned when the broadcast app identifier is missing or not a GUID.
	ErrInvalidAppID = errors.New("broadcast: invalid app id")

	// ErrInitFailed is returned when the broadcast API refuses initialisation.
	ErrInitFailed = errors.New("broadcast: init failed")

	// ErrNotInitialized is returned when Subscribe is called before Init.
	ErrNotInitialized = errors.New("broadcast: not initialized")

	// ErrAlreadySubscribed is returned when Subscribe is called twice.
	ErrAlreadySubscribed = errors.New("broadcast: already subscribed")

	// ErrInvalidPayload is returned for a malformed inbound message.
	ErrInvalidPayload = errors.New("broadcast: invalid payload")

	// ErrOutOfRange is returned by the reject policy for a channel outside 0..255.
	ErrOutOfRange = errors.New("broadcast: color channel out of range")

	// ErrAlreadyStarted is returned when the router is started twice.
	ErrAlreadyStarted = errors.New("broadcast: router already started")
)
