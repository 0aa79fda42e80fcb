package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementReadings = "sensor_readings"
	MeasurementLink     = "link"
)

// WriteReading records one sensor reading. Only float64, float32, int,
// int64 and bool values are written; anything else is dropped.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteReading("bthome-a4c138000001", "sensors", "temperature", "bthome", 21.5, ts)
func (c *Client) WriteReading(deviceID, nodeID, propertyID, source string, value any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	if point := readingPoint(deviceID, nodeID, propertyID, source, value, ts); point != nil {
		c.writeAPI.WritePoint(point)
	}
}

// WriteLink records the signal strength or link quality of a device.
func (c *Client) WriteLink(deviceID, source string, rssi int, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(linkPoint(deviceID, source, rssi, ts))
}

func readingPoint(deviceID, nodeID, propertyID, source string, value any, ts time.Time) *write.Point {
	fields := make(map[string]interface{}, 1)
	switch v := value.(type) {
	case float64:
		fields["value"] = v
	case float32:
		fields["value"] = float64(v)
	case int:
		fields["value"] = float64(v)
	case int64:
		fields["value"] = float64(v)
	case bool:
		fields["state"] = v
	default:
		return nil
	}

	return write.NewPoint(
		MeasurementReadings,
		map[string]string{
			"device_id": deviceID,
			"node":      nodeID,
			"property":  propertyID,
			"source":    source,
		},
		fields,
		ts,
	)
}

func linkPoint(deviceID, source string, rssi int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementLink,
		map[string]string{
			"device_id": deviceID,
			"source":    source,
		},
		map[string]interface{}{
			"rssi": rssi,
		},
		ts,
	)
}
