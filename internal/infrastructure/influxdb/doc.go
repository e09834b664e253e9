// Package influxdb provides InfluxDB connectivity for the accessor host.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched point writes and health checks. The
// host writes operational telemetry here (session state and counters per
// accessor), never sensor history.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePoint("accessor_session",
//	    map[string]string{"accessor": "hall-bulb", "kind": "hue"},
//	    map[string]any{"events": 12})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched according to
// batch_size and flush_interval; asynchronous write errors are delivered to
// the SetOnError callback.
package influxdb
