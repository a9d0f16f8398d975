package bridge

import (
	"reflect"
	"testing"
)

func TestParseTopic(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  Address
		ok    bool
	}{
		{
			name:  "status topic",
			topic: "smart_home/devices/esp32-1/status",
			want:  Address{DeviceID: "esp32-1", Kind: KindStatus},
			ok:    true,
		},
		{
			name:  "sensor topic with path",
			topic: "smart_home/devices/esp32-1/sensor/temperature",
			want:  Address{DeviceID: "esp32-1", Kind: KindSensor, SensorPath: []string{"temperature"}},
			ok:    true,
		},
		{
			name:  "sensor topic with nested path",
			topic: "smart_home/devices/esp32-1/sensor/env/indoor",
			want:  Address{DeviceID: "esp32-1", Kind: KindSensor, SensorPath: []string{"env", "indoor"}},
			ok:    true,
		},
		{
			name:  "sensor topic without path",
			topic: "smart_home/devices/esp32-1/sensor",
			want:  Address{DeviceID: "esp32-1", Kind: KindSensor},
			ok:    true,
		},
		{
			name:  "response topic",
			topic: "smart_home/devices/esp32-1/response",
			want:  Address{DeviceID: "esp32-1", Kind: KindResponse},
			ok:    true,
		},
		{
			name:  "unknown kind still parses",
			topic: "smart_home/devices/esp32-1/diagnostics",
			want:  Address{DeviceID: "esp32-1", Kind: Kind("diagnostics")},
			ok:    true,
		},
		{name: "empty topic", topic: "", ok: false},
		{name: "too few segments", topic: "smart_home/devices/esp32-1", ok: false},
		{name: "wrong prefix", topic: "other_home/devices/esp32-1/status", ok: false},
		{name: "missing devices literal", topic: "smart_home/gateways/esp32-1/status", ok: false},
		{name: "empty device id", topic: "smart_home/devices//status", ok: false},
		{name: "empty kind", topic: "smart_home/devices/esp32-1/", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTopic("smart_home", tt.topic)
			if ok != tt.ok {
				t.Fatalf("ParseTopic(%q) ok = %v, want %v", tt.topic, ok, tt.ok)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseTopic(%q) = %+v, want %+v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestCommandTopic(t *testing.T) {
	got := CommandTopic("smart_home", "esp32-1")
	want := "smart_home/devices/esp32-1/command"
	if got != want {
		t.Errorf("CommandTopic() = %q, want %q", got, want)
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "json object",
			raw:  `{"status":"online","rssi":-40}`,
			want: map[string]any{"status": "online", "rssi": -40.0},
		},
		{
			name: "bare string wraps as value",
			raw:  "21.5",
			want: map[string]any{"value": "21.5"},
		},
		{
			name: "invalid json wraps as value",
			raw:  `{"broken`,
			want: map[string]any{"value": `{"broken`},
		},
		{
			name: "json array wraps as value",
			raw:  `[1,2]`,
			want: map[string]any{"value": "[1,2]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodePayload([]byte(tt.raw))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodePayload(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
