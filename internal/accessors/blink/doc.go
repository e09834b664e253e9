// Package blink is the scan/cache accessor for a BLINK passive infrared
// sensor that reports motion in BLE advertisements.
//
// Init acquires the BLE adapter (a suspension point) and moves
// UNINITIALIZED → SCANNING. If no adapter can be opened it moves to
// HARDWARE_UNAVAILABLE, logs that once, and every output read fails with
// fault.ErrNoDataAvailable.
//
// Each advertisement must pass three independent checks before it is
// decoded:
//
//   - its address is in the mac_address allow-list (empty list allows all)
//   - its local name starts with name_prefix ("squall+PIR" by default)
//   - its manufacturer data starts with company ID 0x02E0 (little-endian)
//     and service byte 0x13, and is exactly 6 bytes long
//
// Anything else is radio noise and is dropped silently. A matching frame
// carries three motion counters in bytes 3, 4 and 5, which are written to
// the session cache together and pushed out of their ports at once.
package blink
