package statemirror

import "errors"

var (
	// ErrNotFound is returned when no value is mirrored for a key.
	ErrNotFound = errors.New("statemirror: value not found")

	// ErrDisabled indicates Redis is disabled in configuration.
	ErrDisabled = errors.New("statemirror: disabled in configuration")
)
