package instance

import "errors"

var (
	// ErrNotFound is returned when an instance ID does not exist.
	ErrNotFound = errors.New("instance: not found")

	// ErrExists is returned when creating an instance whose ID is taken.
	ErrExists = errors.New("instance: already exists")

	// ErrInvalid is returned when a record fails validation.
	ErrInvalid = errors.New("instance: invalid")
)
