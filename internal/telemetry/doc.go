// Package telemetry periodically records the state and counters of every
// accessor session as InfluxDB points.
//
// One accessor_session point is written per instance per interval, tagged
// by accessor id and kind. Sensor values are not recorded.
package telemetry
