// Package influxdb records sensor readings as InfluxDB time series.
//
// It wraps the official influxdb-client-go v2 library: a non-blocking,
// batched write API. Failed batches are counted per source in the
// bthome_telemetry_write_errors_total metric and retried by the library.
//
// # Schema
//
// Every published reading becomes one point in the sensor_readings
// measurement, tagged with device_id, node, property and source. Numeric
// readings are stored in the "value" field and boolean readings in the
// "state" field so the two never collide on type. Link quality goes to the
// link measurement.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, influxdb.Options{Metrics: m, Logger: log})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("bthome-a4c138000001", "sensors", "temperature", "bthome", 21.5, time.Now())
//	client.Flush()
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
