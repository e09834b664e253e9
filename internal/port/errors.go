package port

import "errors"

// ErrInvalidValue is returned when a written value cannot be converted to
// the port's declared type.
var ErrInvalidValue = errors.New("port: invalid value")
