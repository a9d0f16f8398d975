// Package bridge is the device event bridge: it ingests telemetry from the
// MQTT broker, reconciles it into the device store, and fans committed
// changes out to live websocket subscribers.
//
// Inbound flow: the broker client invokes Submit from its own network
// goroutine; Submit hands the raw message to a bounded queue without
// blocking. A single consumer goroutine drains the queue, so parsing,
// reconciliation and the per-message store transaction never run
// concurrently with each other. Each message commits atomically: a status
// message is one device upsert, a sensor message is all of its derived
// readings or none. Failures are isolated per message, an unparseable
// topic or a store error is logged and the loop moves on.
//
// Outbound flow: PublishCommand formats {command, payload, command_id} and
// publishes to the device's command topic. Commands are fire-and-forget;
// when the broker is down the caller gets an error and nothing is queued.
package bridge
