package bridge

import (
	"sort"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func statusAddr(id string) Address {
	return Address{DeviceID: id, Kind: KindStatus}
}

func sensorAddr(id string, path ...string) Address {
	return Address{DeviceID: id, Kind: KindSensor, SensorPath: path}
}

func TestReconcileStatusCreatesDevice(t *testing.T) {
	payload := map[string]any{
		"type":   "light",
		"status": "online",
		"ip":     "192.168.1.50",
		"rssi":   -40.0,
	}

	result := Reconcile(nil, statusAddr("d1"), payload, testNow)
	if result.Device == nil {
		t.Fatal("Reconcile() produced no device")
	}

	d := result.Device
	if d.DeviceID != "d1" {
		t.Errorf("DeviceID = %q, want %q", d.DeviceID, "d1")
	}
	if d.Type != "light" {
		t.Errorf("Type = %q, want %q", d.Type, "light")
	}
	if d.Name != "d1" {
		t.Errorf("Name = %q, want device id fallback %q", d.Name, "d1")
	}
	if d.Status != "online" {
		t.Errorf("Status = %q, want %q", d.Status, "online")
	}
	if d.Metadata["ip"] != "192.168.1.50" || d.Metadata["rssi"] != -40.0 {
		t.Errorf("Metadata = %v, want ip and rssi captured", d.Metadata)
	}
	if d.LastSeen == nil || !d.LastSeen.Equal(testNow) {
		t.Errorf("LastSeen = %v, want %v", d.LastSeen, testNow)
	}
}

func TestReconcileStatusTypeFallback(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{"deviceType preferred", map[string]any{"deviceType": "sensor", "type": "light"}, "sensor"},
		{"snake case accepted", map[string]any{"device_type": "relay"}, "relay"},
		{"legacy type", map[string]any{"type": "light"}, "light"},
		{"no type", map[string]any{"status": "online"}, "unknown"},
		{"empty deviceType falls through", map[string]any{"deviceType": "", "type": "light"}, "light"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Reconcile(nil, statusAddr("d1"), tt.payload, testNow)
			if result.Device.Type != tt.want {
				t.Errorf("Type = %q, want %q", result.Device.Type, tt.want)
			}
		})
	}
}

func TestReconcileStatusUpdatePreservesIdentity(t *testing.T) {
	created := Reconcile(nil, statusAddr("d1"), map[string]any{
		"type": "light", "name": "Hall Light", "status": "online", "ip": "192.168.1.50",
	}, testNow)

	later := testNow.Add(time.Minute)
	updated := Reconcile(created.Device, statusAddr("d1"), map[string]any{
		"status": "offline", "rssi": -60.0,
	}, later)

	d := updated.Device
	if d.Status != "offline" {
		t.Errorf("Status = %q, want %q", d.Status, "offline")
	}
	if d.Type != "light" {
		t.Errorf("Type = %q, want preserved %q", d.Type, "light")
	}
	if d.Name != "Hall Light" {
		t.Errorf("Name = %q, want preserved %q", d.Name, "Hall Light")
	}
	// Metadata merges without deleting earlier keys.
	if d.Metadata["ip"] != "192.168.1.50" {
		t.Errorf("Metadata[ip] = %v, want preserved", d.Metadata["ip"])
	}
	if d.Metadata["rssi"] != -60.0 {
		t.Errorf("Metadata[rssi] = %v, want -60.0", d.Metadata["rssi"])
	}
	if !d.LastSeen.Equal(later) {
		t.Errorf("LastSeen = %v, want %v", d.LastSeen, later)
	}
	// The input record is not mutated.
	if created.Device.Status != "online" {
		t.Errorf("input device status = %q, mutated in place", created.Device.Status)
	}
}

func TestReconcileStatusDefaultsToOnline(t *testing.T) {
	result := Reconcile(nil, statusAddr("d1"), map[string]any{"firmware_version": "1.2.0"}, testNow)
	if result.Device.Status != "online" {
		t.Errorf("Status = %q, want %q", result.Device.Status, "online")
	}
	if result.Device.FirmwareVersion == nil || *result.Device.FirmwareVersion != "1.2.0" {
		t.Errorf("FirmwareVersion = %v, want 1.2.0", result.Device.FirmwareVersion)
	}
}

func TestReconcileSensorSingleValue(t *testing.T) {
	result := Reconcile(nil, sensorAddr("esp32-1", "temperature"), map[string]any{
		"value": 21.5, "unit": "C",
	}, testNow)

	if len(result.Readings) != 1 {
		t.Fatalf("got %d readings, want 1", len(result.Readings))
	}
	r := result.Readings[0]
	if r.SensorType != "temperature" {
		t.Errorf("SensorType = %q, want %q", r.SensorType, "temperature")
	}
	if r.Value != 21.5 {
		t.Errorf("Value = %v, want 21.5", r.Value)
	}
	if r.Unit != "C" {
		t.Errorf("Unit = %q, want %q", r.Unit, "C")
	}
}

func TestReconcileSensorStringValueCoerced(t *testing.T) {
	result := Reconcile(nil, sensorAddr("esp32-1", "temperature"), map[string]any{"value": "21.5"}, testNow)
	if len(result.Readings) != 1 || result.Readings[0].Value != 21.5 {
		t.Errorf("readings = %+v, want one reading of 21.5", result.Readings)
	}
}

func TestReconcileSensorBadValueDropped(t *testing.T) {
	result := Reconcile(nil, sensorAddr("esp32-1", "data"), map[string]any{"value": "not-a-number"}, testNow)
	if len(result.Readings) != 0 {
		t.Errorf("got %d readings, want 0", len(result.Readings))
	}
}

func TestReconcileSensorMultiField(t *testing.T) {
	result := Reconcile(nil, sensorAddr("esp32-1", "data"), map[string]any{
		"temperature": 21.5,
		"humidity":    44.0,
		"device_id":   "esp32-1",
		"timestamp":   "2026-03-15T12:00:00Z",
		"note":        "calibrated",
	}, testNow)

	if len(result.Readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(result.Readings))
	}

	byName := map[string]float64{}
	for _, r := range result.Readings {
		byName[r.SensorType] = r.Value
	}
	// The "data" path qualifier is omitted so field names stay un-nested.
	if byName["temperature"] != 21.5 {
		t.Errorf("temperature = %v, want 21.5", byName["temperature"])
	}
	if byName["humidity"] != 44.0 {
		t.Errorf("humidity = %v, want 44.0", byName["humidity"])
	}
}

func TestReconcileSensorMultiFieldQualifiedPath(t *testing.T) {
	result := Reconcile(nil, sensorAddr("esp32-1", "env", "indoor"), map[string]any{
		"temperature": 21.5,
		"humidity":    44.0,
	}, testNow)

	if len(result.Readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(result.Readings))
	}

	var names []string
	for _, r := range result.Readings {
		names = append(names, r.SensorType)
	}
	sort.Strings(names)
	if names[0] != "env/indoor/humidity" || names[1] != "env/indoor/temperature" {
		t.Errorf("reading names = %v, want path-qualified", names)
	}
}

func TestReconcileSensorEmptyPathDefaultsToData(t *testing.T) {
	result := Reconcile(nil, sensorAddr("esp32-1"), map[string]any{"value": 5.0}, testNow)
	if len(result.Readings) != 1 {
		t.Fatalf("got %d readings, want 1", len(result.Readings))
	}
	if result.Readings[0].SensorType != "data" {
		t.Errorf("SensorType = %q, want %q", result.Readings[0].SensorType, "data")
	}
}

func TestReconcileResponseProducesNoMutation(t *testing.T) {
	result := Reconcile(nil, Address{DeviceID: "d1", Kind: KindResponse}, map[string]any{"result": "ok"}, testNow)
	if result.Device != nil || len(result.Readings) != 0 {
		t.Errorf("Reconcile(response) = %+v, want empty result", result)
	}
}

func TestReconcileUnknownKindIgnored(t *testing.T) {
	result := Reconcile(nil, Address{DeviceID: "d1", Kind: Kind("diagnostics")}, map[string]any{"value": 1.0}, testNow)
	if result.Device != nil || len(result.Readings) != 0 {
		t.Errorf("Reconcile(unknown kind) = %+v, want empty result", result)
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"float64", 21.5, 21.5, true},
		{"int", 7, 7.0, true},
		{"numeric string", "3.14", 3.14, true},
		{"padded string", " 42 ", 42.0, true},
		{"text", "warm", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
		{"nested map", map[string]any{"v": 1.0}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toFloat(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("toFloat(%v) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}
