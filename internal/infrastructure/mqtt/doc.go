// Package mqtt provides MQTT client connectivity for Hearth Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Hearth uses MQTT as the transport between device firmware and the server.
// Devices publish status, sensor and command-response messages under the
// configured topic prefix; the server publishes commands back.
//
//	Device firmware ↔ MQTT Broker ↔ Hearth Core
//
// Inbound message handlers run on paho's network goroutines. The bridge
// package is responsible for marshalling that work onto its own serialized
// ingestion pipeline; handlers registered here must only capture and hand off.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllDeviceStatus(), 1,
//	    func(topic string, payload []byte) error {
//	        bridge.Submit(topic, payload)
//	        return nil
//	    })
//
//	// Publish a command
//	client.Publish(topics.DeviceCommand("esp32-1"), []byte(`{"command":"on"}`), 1, false)
package mqtt
