package suspend

import "errors"

var (
	// ErrStopped is returned when work is submitted to, or resumes on, a
	// stopped scheduler.
	ErrStopped = errors.New("suspend: scheduler stopped")

	// ErrTaskPanicked is returned by Call when the task function panicked.
	ErrTaskPanicked = errors.New("suspend: task panicked")
)
