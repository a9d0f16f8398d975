package bridge

import "encoding/json"

// DecodePayload turns raw wire bytes into a key/value mapping. Payloads that
// are not JSON objects degrade to a single scalar wrapped as {"value": raw},
// so decoding never fails and bare-string firmware payloads still produce a
// usable reading.
func DecodePayload(raw []byte) map[string]any {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err == nil && data != nil {
		return data
	}
	return map[string]any{"value": string(raw)}
}
