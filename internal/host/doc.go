// Package host runs accessor instances.
//
// Each instance gets its own port registry, last-known-value cache and
// session. The host drives the accessor through setup, seal and init, then
// routes port reads and writes onto the instance's scheduler so handlers
// never run concurrently for one device. Values pushed out of output ports
// are fanned out to every registered Sink tagged with the instance ID.
//
// A failed init does not remove the instance: it is marked degraded and
// port operations still reach the accessor, which decides how to fail.
package host
