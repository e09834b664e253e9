// Package gateway exposes accessor ports over MQTT.
//
// Inbound, it subscribes to the set and get topics of every port:
//
//	<prefix>/accessor/<id>/port/<port>/set   {"id":"cmd-1","value":true}
//	<prefix>/accessor/<id>/port/<port>/get   {"request_id":"req-1"}
//
// A set is written through the host and acknowledged on
// <prefix>/accessor/<id>/ack. A get is read through the host and answered
// on <prefix>/accessor/<id>/response/<request_id>.
//
// Outbound, the gateway is a host.Sink: every value pushed out of an output
// port is published retained on <prefix>/accessor/<id>/port/<port>/state.
// A HealthReporter publishes a heartbeat on <prefix>/health/host.
package gateway
