// Package session models the live relationship between the host and one
// physical device.
//
// A Session owns:
//   - the connection handle, attached once and closed on Release, Fail or Close
//   - the connection state (disconnected, connecting, connected, failed)
//   - a sequence counter for protocols that number outbound messages
//   - the last-known-value cache of the device's output ports
//   - the cooperative scheduler all of the accessor's tasks run on
//   - an inbox that background readers (socket reader, radio scanner) post
//     decoded frames to, consumed by a task on the scheduler
//
// Inbound data goes through Observe, which writes the cache and pushes one
// output event per port. Exactly one Session exists per accessor instance
// and sessions never share state.
package session
