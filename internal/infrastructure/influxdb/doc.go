// Package influxdb provides an optional time-series telemetry sink.
//
// Sensor readings committed by the bridge are mirrored here for dashboarding
// and long-term retention. SQLite remains the store of record; a failed or
// disabled InfluxDB connection never affects ingestion.
//
// Writes are batched and non-blocking. Async write failures are surfaced
// through the SetOnError callback.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSensorReading("esp32-1", "temperature", 21.5, "C", time.Now())
package influxdb
