package host

import "errors"

var (
	// ErrInstanceNotFound is returned for an unknown instance ID.
	ErrInstanceNotFound = errors.New("host: accessor instance not found")

	// ErrDuplicateInstance is returned when an instance ID is already running.
	ErrDuplicateInstance = errors.New("host: accessor instance already exists")

	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("host: stopped")
)
