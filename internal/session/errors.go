package session

import "errors"

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session: closed")

	// ErrAlreadyAttached is returned when a second connection is attached.
	ErrAlreadyAttached = errors.New("session: connection already attached")
)
