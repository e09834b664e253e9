// Package fault defines the four error kinds every accessor reports.
//
// Adapters wrap a kind with context so callers can both read a useful
// message and branch on the kind:
//
//	return fmt.Errorf("%w: bulb %q not in layout", fault.ErrDeviceUnavailable, name)
//
//	if errors.Is(err, fault.ErrNoDataAvailable) {
//	    // not yet known, try again later
//	}
package fault

import "errors"

var (
	// ErrConfiguration covers missing or invalid parameters, undeclared
	// ports and suspensions issued without a timeout. Never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrDeviceUnavailable means the device could not be reached during
	// setup. Later operations fail fast with it instead of re-attempting.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrNoDataAvailable is returned by output reads before any value has
	// been observed. It is an expected state, not a device fault.
	ErrNoDataAvailable = errors.New("no data available")

	// ErrTransportFailure covers timeouts and dropped connections. Retry
	// policy belongs to the caller.
	ErrTransportFailure = errors.New("transport failure")
)

// Machine-readable codes for each kind.
const (
	CodeConfiguration     = "CONFIGURATION_ERROR"
	CodeDeviceUnavailable = "DEVICE_UNAVAILABLE"
	CodeNoDataAvailable   = "NO_DATA_AVAILABLE"
	CodeTransportFailure  = "TRANSPORT_FAILURE"
	CodeInternal          = "INTERNAL_ERROR"
)

// Kind returns the kind sentinel carried by err, or nil if it has none.
func Kind(err error) error {
	for _, kind := range []error{
		ErrConfiguration,
		ErrDeviceUnavailable,
		ErrNoDataAvailable,
		ErrTransportFailure,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Code maps err to its machine-readable code. Errors without a kind map to
// CodeInternal; a nil error maps to "".
func Code(err error) string {
	if err == nil {
		return ""
	}
	switch Kind(err) {
	case ErrConfiguration:
		return CodeConfiguration
	case ErrDeviceUnavailable:
		return CodeDeviceUnavailable
	case ErrNoDataAvailable:
		return CodeNoDataAvailable
	case ErrTransportFailure:
		return CodeTransportFailure
	default:
		return CodeInternal
	}
}

// HasKind reports whether err already carries one of the four kinds.
func HasKind(err error) bool {
	return Kind(err) != nil
}
