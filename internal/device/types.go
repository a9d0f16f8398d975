package device

import "time"

// Device represents an IoT device known to the hub.
// Devices are created on their first status message and updated in place
// thereafter; the bridge never deletes them.
type Device struct {
	// DeviceID is the identity reported by the firmware over MQTT. Unique.
	DeviceID string `json:"device_id"`

	Name string `json:"name"`

	// Type is the device category (e.g. "light", "sensor"). Firmware reports
	// it as either "deviceType" or the legacy "type" key; unknown firmware
	// falls back to "unknown".
	Type string `json:"device_type"`

	// Status is a free-form state string, e.g. "online"/"offline".
	Status string `json:"status"`

	FirmwareVersion *string `json:"firmware_version,omitempty"`

	// Metadata is an open bag of network/firmware details (ip, rssi, ...).
	// Keys are merged on each status update, never deleted.
	Metadata Metadata `json:"metadata,omitempty"`

	LastSeen  *time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Metadata holds open device metadata as a JSON map.
type Metadata map[string]any

// Clone returns an independent copy of the Device.
// The metadata map is copied so modifications do not leak between callers.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	if d.Metadata != nil {
		cpy.Metadata = make(Metadata, len(d.Metadata))
		for k, v := range d.Metadata {
			cpy.Metadata[k] = v
		}
	}
	if d.FirmwareVersion != nil {
		fw := *d.FirmwareVersion
		cpy.FirmwareVersion = &fw
	}
	if d.LastSeen != nil {
		ls := *d.LastSeen
		cpy.LastSeen = &ls
	}
	return &cpy
}

// MergeMetadata merges the given keys into the device's metadata bag.
// Existing keys are overwritten; absent keys are never deleted.
func (d *Device) MergeMetadata(updates Metadata) {
	if len(updates) == 0 {
		return
	}
	if d.Metadata == nil {
		d.Metadata = make(Metadata, len(updates))
	}
	for k, v := range updates {
		d.Metadata[k] = v
	}
}

// SensorReading is an append-only telemetry fact derived from a sensor message.
// Readings are immutable once created.
type SensorReading struct {
	ID         int64     `json:"id"`
	DeviceID   string    `json:"device_id"`
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Command statuses.
const (
	CommandStatusPending   = "pending"
	CommandStatusSent      = "sent"
	CommandStatusCompleted = "completed"
	CommandStatusFailed    = "failed"
)

// Command records an outbound device command issued through the API.
type Command struct {
	ID         string     `json:"id"`
	DeviceID   string     `json:"device_id"`
	Command    string     `json:"command"`
	Payload    string     `json:"payload,omitempty"`
	Status     string     `json:"status"`
	Response   *string    `json:"response,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}
