package bridge

import (
	"strconv"
	"strings"
	"time"

	"github.com/hearthlab/hearth-core/internal/device"
)

// Result is the state mutation derived from one inbound message. Device is
// non-nil when the device record changed; Readings holds zero or more new
// sensor facts. Both empty means the message carried nothing to persist.
type Result struct {
	Device   *device.Device
	Readings []device.SensorReading
}

// Reconcile computes the mutation for one decoded message against the
// current device record (nil when the device is unknown). It is a pure
// function: it never touches the store and never fails, malformed input
// degrades to an empty Result.
func Reconcile(existing *device.Device, addr Address, payload map[string]any, now time.Time) Result {
	switch addr.Kind {
	case KindStatus:
		return Result{Device: reconcileStatus(existing, addr.DeviceID, payload, now)}
	case KindSensor:
		return Result{Readings: reconcileSensor(addr.DeviceID, addr.SensorPath, payload, now)}
	}
	return Result{}
}

// reconcileStatus creates the device on first contact or updates it in
// place. Name and type are only set at creation; status, firmware and the
// metadata bag track every status message. Metadata keys are merged, never
// deleted.
func reconcileStatus(existing *device.Device, deviceID string, payload map[string]any, now time.Time) *device.Device {
	d := existing.Clone()
	if d == nil {
		d = &device.Device{
			DeviceID: deviceID,
			Name:     stringField(payload, "name", deviceID),
			Type:     deviceTypeField(payload),
		}
	}

	d.Status = stringField(payload, "status", "online")
	if fw, ok := payload["firmware_version"].(string); ok && fw != "" {
		d.FirmwareVersion = &fw
	}

	updates := device.Metadata{}
	if ip, ok := payload["ip"]; ok {
		updates["ip"] = ip
	}
	if rssi, ok := payload["rssi"]; ok {
		updates["rssi"] = rssi
	}
	d.MergeMetadata(updates)

	seen := now
	d.LastSeen = &seen
	return d
}

// reconcileSensor derives readings from a sensor message. A payload with a
// "value" field yields one reading; otherwise every numeric top-level field
// becomes its own reading, qualified by the sensor path unless the path is
// the bare "data" default. Non-numeric values are dropped silently so one
// bad field never fails its siblings.
func reconcileSensor(deviceID string, sensorPath []string, payload map[string]any, now time.Time) []device.SensorReading {
	sensorType := "data"
	if len(sensorPath) > 0 {
		sensorType = strings.Join(sensorPath, "/")
	}

	if raw, ok := payload["value"]; ok {
		value, ok := toFloat(raw)
		if !ok {
			return nil
		}
		unit, _ := payload["unit"].(string)
		return []device.SensorReading{{
			DeviceID:   deviceID,
			SensorType: sensorType,
			Value:      value,
			Unit:       unit,
			Timestamp:  now,
		}}
	}

	var readings []device.SensorReading
	for field, raw := range payload {
		if field == "device_id" || field == "timestamp" {
			continue
		}
		value, ok := toFloat(raw)
		if !ok {
			continue
		}
		name := field
		if sensorType != "data" {
			name = sensorType + "/" + field
		}
		readings = append(readings, device.SensorReading{
			DeviceID:   deviceID,
			SensorType: name,
			Value:      value,
			Timestamp:  now,
		})
	}
	return readings
}

// deviceTypeField resolves the device type, accepting the modern
// "deviceType", the snake_case variant, and the legacy "type" key.
// Heterogeneous firmware versions report either.
func deviceTypeField(payload map[string]any) string {
	for _, key := range []string{"deviceType", "device_type", "type"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}

func stringField(payload map[string]any, key, fallback string) string {
	if s, ok := payload[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// toFloat coerces JSON-decoded values to float64. Strings are parsed so
// firmware that quotes its numbers still produces readings.
func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
