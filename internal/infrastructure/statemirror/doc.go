// Package statemirror mirrors the last value of every output port into
// Redis so other processes can read device state without going through the
// host.
//
// Keys are "<prefix>:<accessor>:<port>" and hold a JSON Value. Each write
// refreshes the key's TTL, so values from a silent device eventually
// expire. The mirror is a host sink: Deliver never blocks and values are
// dropped while the write queue is full.
package statemirror
