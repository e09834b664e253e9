package blink

import "errors"

// ErrNoHardware is returned by OpenHCI on platforms without a supported
// BLE stack.
var ErrNoHardware = errors.New("blink: no BLE hardware support on this platform")
