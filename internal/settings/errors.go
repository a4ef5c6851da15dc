package settings

import "errors"

// Domain errors for the settings package.
var (
	// ErrInvalidValue is returned when a stored setting cannot be parsed.
	ErrInvalidValue = errors.New("settings: invalid stored value")

	// ErrPersist is returned when a setting cannot be written.
	ErrPersist = errors.New("settings: persist failed")
)
