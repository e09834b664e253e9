// Package hue is the request/response accessor for a single Philips Hue
// bulb behind a Hue bridge.
//
// On init the accessor fetches the bridge's light layout once and moves
// UNINITIALIZED → LAYOUT_FETCHED → READY. If the fetch times out or the
// body does not parse, it stays unavailable and every port operation
// fails fast with fault.ErrDeviceUnavailable; retrying is up to the host.
//
// Each port operation resolves the configured bulb name against that
// layout and issues exactly one HTTP call with a fixed timeout (3000 ms by
// default):
//
//	GET <bridge_url>/api/<username>/lights/<id>/state
//	PUT <bridge_url>/api/<username>/lights/<id>/state   {"on":true,"hue":43690,"sat":255,"bri":120}
//
// Ports:
//
//	Power       bool, in/out
//	Color       hex string, in/out
//	Brightness  numeric 0-255, in/out
//	PCB         object input {Power, Color, Brightness}, sent as one PUT
//
// Known limitations:
//   - Reading Color always returns ColorPlaceholder. The bridge state is
//     not converted back to hex.
//   - The layout is never re-fetched. A bulb renamed on the bridge after
//     startup is unreachable until the accessor restarts.
package hue
