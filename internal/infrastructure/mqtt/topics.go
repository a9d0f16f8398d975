package mqtt

import "fmt"

// Topics builds Hearth MQTT topic strings under a configured prefix.
//
// The device namespace is fixed by the firmware wire protocol:
//
//	<prefix>/devices/<deviceId>/status
//	<prefix>/devices/<deviceId>/sensor/<...path>
//	<prefix>/devices/<deviceId>/response
//	<prefix>/devices/<deviceId>/command   (outbound)
//
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct {
	prefix string
}

// NewTopics creates a topic builder for the given prefix (e.g. "smart_home").
func NewTopics(prefix string) Topics {
	return Topics{prefix: prefix}
}

// Prefix returns the configured topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// DeviceStatus returns the status topic for a specific device.
//
// Example: smart_home/devices/esp32-1/status
func (t Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/status", t.prefix, deviceID)
}

// DeviceSensor returns the sensor topic for a device and sensor path.
//
// Example: smart_home/devices/esp32-1/sensor/data
func (t Topics) DeviceSensor(deviceID, sensorPath string) string {
	return fmt.Sprintf("%s/devices/%s/sensor/%s", t.prefix, deviceID, sensorPath)
}

// DeviceResponse returns the command-response topic for a specific device.
//
// Example: smart_home/devices/esp32-1/response
func (t Topics) DeviceResponse(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/response", t.prefix, deviceID)
}

// DeviceCommand returns the outbound command topic for a specific device.
//
// Example: smart_home/devices/esp32-1/command
func (t Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/command", t.prefix, deviceID)
}

// ServerStatus returns the server status topic used for LWT and
// online/offline announcements.
//
// Example: smart_home/server/status
func (t Topics) ServerStatus() string {
	return fmt.Sprintf("%s/server/status", t.prefix)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceStatus returns a pattern matching status updates from every device.
//
// Pattern: smart_home/devices/+/status
func (t Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/devices/+/status", t.prefix)
}

// AllDeviceSensors returns a pattern matching every sensor sub-path of every device.
//
// Pattern: smart_home/devices/+/sensor/#
func (t Topics) AllDeviceSensors() string {
	return fmt.Sprintf("%s/devices/+/sensor/#", t.prefix)
}

// AllDeviceResponses returns a pattern matching command responses from every device.
//
// Pattern: smart_home/devices/+/response
func (t Topics) AllDeviceResponses() string {
	return fmt.Sprintf("%s/devices/+/response", t.prefix)
}
