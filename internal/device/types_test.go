package device

import (
	"testing"
	"time"
)

func TestDeviceClone(t *testing.T) {
	now := time.Now().UTC()
	fw := "1.0.0"
	original := &Device{
		DeviceID:        "esp32-abc123",
		Name:            "Sensor",
		Type:            "sensor",
		Status:          "online",
		FirmwareVersion: &fw,
		Metadata:        Metadata{"ip": "192.168.1.50", "rssi": -40.0},
		LastSeen:        &now,
	}

	clone := original.Clone()

	clone.Name = "Changed"
	clone.Metadata["ip"] = "10.0.0.1"
	*clone.FirmwareVersion = "2.0.0"

	if original.Name != "Sensor" {
		t.Errorf("original.Name = %q, mutated through clone", original.Name)
	}
	if original.Metadata["ip"] != "192.168.1.50" {
		t.Errorf("original.Metadata[ip] = %v, mutated through clone", original.Metadata["ip"])
	}
	if fw != "1.0.0" {
		t.Errorf("original firmware version = %q, mutated through clone", fw)
	}
}

func TestDeviceCloneNil(t *testing.T) {
	var d *Device
	if d.Clone() != nil {
		t.Error("Clone() on nil device should return nil")
	}
}

func TestMergeMetadata(t *testing.T) {
	d := &Device{Metadata: Metadata{"ip": "192.168.1.50", "zone": "upstairs"}}

	d.MergeMetadata(Metadata{"ip": "10.0.0.1", "rssi": -55.0})

	if d.Metadata["ip"] != "10.0.0.1" {
		t.Errorf("Metadata[ip] = %v, want 10.0.0.1", d.Metadata["ip"])
	}
	if d.Metadata["rssi"] != -55.0 {
		t.Errorf("Metadata[rssi] = %v, want -55.0", d.Metadata["rssi"])
	}
	// Keys not present in the update survive.
	if d.Metadata["zone"] != "upstairs" {
		t.Errorf("Metadata[zone] = %v, want upstairs", d.Metadata["zone"])
	}
}

func TestMergeMetadataIntoNil(t *testing.T) {
	d := &Device{}
	d.MergeMetadata(Metadata{"ip": "10.0.0.1"})
	if d.Metadata["ip"] != "10.0.0.1" {
		t.Errorf("Metadata[ip] = %v, want 10.0.0.1", d.Metadata["ip"])
	}

	// Empty updates leave nil metadata untouched.
	e := &Device{}
	e.MergeMetadata(nil)
	if e.Metadata != nil {
		t.Errorf("Metadata = %v, want nil", e.Metadata)
	}
}
