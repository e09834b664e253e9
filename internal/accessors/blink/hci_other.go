//go:build !linux

package blink

import "context"

// OpenHCI always fails off Linux.
func OpenHCI(context.Context) (Scanner, error) {
	return nil, ErrNoHardware
}
