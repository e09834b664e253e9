// Package mqtt wraps paho.mqtt.golang for the accessor host.
//
// The client tracks subscriptions and restores them after a reconnect,
// recovers panics in handlers, and publishes a retained online/offline
// status on <prefix>/host/status with a matching Last Will.
//
// Topic layout (prefix defaults to "accessorhost"):
//
//	<prefix>/accessor/<id>/port/<port>/set       write command (inbound)
//	<prefix>/accessor/<id>/port/<port>/get       read request (inbound)
//	<prefix>/accessor/<id>/port/<port>/state     output value (retained)
//	<prefix>/accessor/<id>/ack                   command acknowledgement
//	<prefix>/accessor/<id>/response/<request_id> read response
//	<prefix>/health/host                         host heartbeat
//	<prefix>/host/status                         online/offline (LWT)
package mqtt
