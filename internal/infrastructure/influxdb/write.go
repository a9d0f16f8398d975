package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading writes a single sensor reading to InfluxDB.
//
// This is the primary method for recording device telemetry. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "esp32-1")
//   - sensorType: The sensor path (e.g., "temperature", "data/humidity")
//   - value: The numeric reading
//   - unit: The unit of measurement (may be empty)
//   - timestamp: When the reading was taken
//
// Example:
//
//	client.WriteSensorReading("esp32-1", "temperature", 21.5, "C", time.Now())
func (c *Client) WriteSensorReading(deviceID, sensorType string, value float64, unit string, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id":   deviceID,
		"sensor_type": sensorType,
	}
	if unit != "" {
		tags["unit"] = unit
	}

	point := write.NewPoint(
		"sensor_readings",
		tags,
		map[string]interface{}{
			"value": value,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceStatus records a device status transition as telemetry.
//
// Status is stored as a tag with a constant field so dashboards can count
// online/offline transitions over time.
func (c *Client) WriteDeviceStatus(deviceID, status string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"device_id": deviceID,
			"status":    status,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
