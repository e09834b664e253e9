package hue

import "errors"

var (
	// ErrCommandRejected is returned when the bridge answers 2xx with an
	// error list, e.g. an unauthorised username.
	ErrCommandRejected = errors.New("hue: bridge rejected request")

	// ErrInvalidColor is returned for values that are not hex colors.
	ErrInvalidColor = errors.New("hue: invalid color")
)
