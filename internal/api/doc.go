// Package api implements the HTTP REST API and WebSocket event stream of
// the accessor host.
//
// This package provides:
//   - REST endpoints to list accessors, describe one, and read or write a
//     port or bundle
//   - CRUD over persisted accessor instances, starting and stopping them
//     on the host
//   - a WebSocket hub that streams output port events
//   - Prometheus metrics at /metrics and a JSON system summary
//   - the middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Error bodies
//
// Every failure is {"status", "code", "message"}. Accessor failures carry
// the fault code (CONFIGURATION_ERROR, DEVICE_UNAVAILABLE,
// NO_DATA_AVAILABLE, TRANSPORT_FAILURE) so HTTP and MQTT clients branch on
// the same strings.
//
// # Graceful Degradation
//
// The server operates without MQTT or a database: port reads and writes go
// straight to the host, and instance endpoints answer 503 when no instance
// store is configured.
package api
