package gateway

import "errors"

var (
	// ErrMissingBroker is returned by New without a broker.
	ErrMissingBroker = errors.New("gateway: broker is required")

	// ErrMissingHost is returned by New without a host.
	ErrMissingHost = errors.New("gateway: host is required")

	errInvalidMessage = errors.New("gateway: invalid message")
)
