// Package influxdb provides time-series telemetry for KnobGrid Core.
//
// This package manages:
//   - Connection to an InfluxDB v2 server with token authentication
//   - Non-blocking, batched writes of knob values and mutation events
//   - Connection health monitoring
//
// # Architecture
//
// Every committed knob mutation is written as a point, so the full tuning
// history of a device can be graphed and correlated after a bench session.
// Writes go through the non-blocking API: they are batched in memory and
// flushed on an interval, so a slow or absent InfluxDB never stalls the
// command path.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteMutation("wdrc-bench-01", event)
package influxdb
