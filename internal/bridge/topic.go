package bridge

import "strings"

// Kind identifies the message category carried by a device topic.
type Kind string

// Message kinds understood by the bridge. Topics carrying any other kind
// are ignored rather than rejected, so future firmware can add kinds
// without corrupting state here.
const (
	KindStatus   Kind = "status"
	KindSensor   Kind = "sensor"
	KindResponse Kind = "response"
)

// Address is the structured form of an inbound device topic:
// <prefix>/devices/<deviceID>/<kind>[/<sensorPath...>].
type Address struct {
	DeviceID   string
	Kind       Kind
	SensorPath []string
}

// ParseTopic splits an inbound topic and validates its shape against the
// configured prefix. It returns false for anything that does not address a
// device under the prefix; it never errors, malformed topics are simply
// not routable.
func ParseTopic(prefix, topic string) (Address, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return Address{}, false
	}
	if parts[0] != prefix || parts[1] != "devices" {
		return Address{}, false
	}
	if parts[2] == "" || parts[3] == "" {
		return Address{}, false
	}

	addr := Address{
		DeviceID: parts[2],
		Kind:     Kind(parts[3]),
	}
	if len(parts) > 4 {
		addr.SensorPath = parts[4:]
	}
	return addr, true
}

// CommandTopic formats the outbound command topic for a device. It is the
// inverse of ParseTopic for the command kind.
func CommandTopic(prefix, deviceID string) string {
	return prefix + "/devices/" + deviceID + "/command"
}
