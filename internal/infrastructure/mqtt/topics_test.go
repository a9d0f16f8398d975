package mqtt

import "testing"

func TestTopics(t *testing.T) {
	topics := NewTopics("smart_home")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceStatus", topics.DeviceStatus("esp32-1"), "smart_home/devices/esp32-1/status"},
		{"DeviceSensor", topics.DeviceSensor("esp32-1", "data/temperature"), "smart_home/devices/esp32-1/sensor/data/temperature"},
		{"DeviceResponse", topics.DeviceResponse("esp32-1"), "smart_home/devices/esp32-1/response"},
		{"DeviceCommand", topics.DeviceCommand("esp32-1"), "smart_home/devices/esp32-1/command"},
		{"ServerStatus", topics.ServerStatus(), "smart_home/server/status"},
		{"AllDeviceStatus", topics.AllDeviceStatus(), "smart_home/devices/+/status"},
		{"AllDeviceSensors", topics.AllDeviceSensors(), "smart_home/devices/+/sensor/#"},
		{"AllDeviceResponses", topics.AllDeviceResponses(), "smart_home/devices/+/response"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestTopicsCustomPrefix(t *testing.T) {
	topics := NewTopics("test_home")

	if got, want := topics.DeviceCommand("d1"), "test_home/devices/d1/command"; got != want {
		t.Errorf("DeviceCommand = %q, want %q", got, want)
	}
	if got, want := topics.Prefix(), "test_home"; got != want {
		t.Errorf("Prefix = %q, want %q", got, want)
	}
}
