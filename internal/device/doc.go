// Package device defines the device registry domain types and their SQLite
// persistence layer.
//
// A Device row is the current known state of one physical unit, keyed by the
// firmware-reported device ID. Sensor readings are append-only history rows,
// and commands record server-to-device requests together with their eventual
// status.
//
// The Store interface is the narrow surface the MQTT bridge's reconciler
// writes through; Repository extends it with the query operations the REST
// API needs and with ReconcileTx, which scopes a batch of Store calls to a
// single transaction so each inbound message commits atomically.
package device
