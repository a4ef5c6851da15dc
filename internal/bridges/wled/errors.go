package wled

import "errors"

// Domain errors for the WLED backend.
var (
	// ErrConnectionFailed is returned when the websocket or UDP socket cannot be opened.
	ErrConnectionFailed = errors.New("wled: connection failed")

	// ErrConnectionLost is returned when the websocket session dropped since Load.
	ErrConnectionLost = errors.New("wled: connection lost")

	// ErrWriteFailed is returned when a realtime packet or JSON command cannot be sent.
	ErrWriteFailed = errors.New("wled: write failed")

	// ErrInvalidConfig is returned when the controller settings are unusable.
	ErrInvalidConfig = errors.New("wled: invalid config")
)
