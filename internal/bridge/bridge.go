package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hearthlab/hearth-core/internal/device"
	"github.com/hearthlab/hearth-core/internal/infrastructure/logging"
	"github.com/hearthlab/hearth-core/internal/infrastructure/mqtt"
)

// defaultQueueSize bounds the handoff queue between the broker's network
// goroutine and the ingestion loop. When the queue is full, new messages
// are dropped with a warning rather than blocking the broker goroutine.
const defaultQueueSize = 256

// BusClient is the broker surface the bridge consumes.
type BusClient interface {
	Topics() mqtt.Topics
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Notifier fans committed state changes out to live observers.
type Notifier interface {
	BroadcastToTopic(topic string, message any)
}

// TelemetryWriter receives committed readings and status changes for
// time-series storage. Writes are best-effort.
type TelemetryWriter interface {
	WriteSensorReading(deviceID, sensorType string, value float64, unit string, timestamp time.Time)
	WriteDeviceStatus(deviceID, status string)
}

// Config holds bridge tuning parameters.
type Config struct {
	// QueueSize bounds the intake queue; zero uses the default.
	QueueSize int

	// QoS is used for the device subscriptions and outbound commands.
	QoS byte
}

// Bridge connects the message broker to the device store and the fan-out
// hub. All inbound messages funnel through a single consumer goroutine, so
// reconciliation is strictly one message at a time and needs no locking of
// its own.
type Bridge struct {
	repo      device.Repository
	bus       BusClient
	hub       Notifier
	telemetry TelemetryWriter
	logger    *logging.Logger
	qos       byte

	intake chan inbound
	done   chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

type inbound struct {
	topic   string
	payload []byte
}

// New creates a bridge. telemetry may be nil when time-series storage is
// disabled.
func New(repo device.Repository, bus BusClient, hub Notifier, telemetry TelemetryWriter, logger *logging.Logger, cfg Config) *Bridge {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Bridge{
		repo:      repo,
		bus:       bus,
		hub:       hub,
		telemetry: telemetry,
		logger:    logger,
		qos:       cfg.QoS,
		intake:    make(chan inbound, queueSize),
		done:      make(chan struct{}),
	}
}

// Start subscribes to the device topic wildcards and launches the ingestion
// loop. The context bounds store operations for messages processed by the
// loop.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true
	b.mu.Unlock()

	// The loop must be running before any subscription is live: once started,
	// Close waits on it, and a half-subscribed bridge still needs its queue
	// drained.
	go b.run(ctx)

	topics := b.bus.Topics()
	patterns := []string{
		topics.AllDeviceStatus(),
		topics.AllDeviceSensors(),
		topics.AllDeviceResponses(),
	}
	for _, pattern := range patterns {
		if err := b.bus.Subscribe(pattern, b.qos, b.handleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", pattern, err)
		}
	}

	b.logger.Info("bridge started", "patterns", len(patterns))
	return nil
}

// handleMessage runs on the broker's network goroutine. It only hands the
// message off; all business logic happens on the ingestion loop.
func (b *Bridge) handleMessage(topic string, payload []byte) error {
	b.Submit(topic, payload)
	return nil
}

// Submit enqueues a raw message for processing. Safe to call from any
// goroutine; never blocks. Messages arriving while the queue is full or
// after Close are dropped.
func (b *Bridge) Submit(topic string, payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.intake <- inbound{topic: topic, payload: payload}:
	default:
		b.logger.Warn("ingestion queue full, dropping message", "topic", topic)
	}
}

// Close stops intake and waits for the in-flight message to finish.
// Idempotent; safe to call before Start.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	started := b.started
	close(b.intake)
	b.mu.Unlock()

	if started {
		<-b.done
	}
	b.logger.Info("bridge stopped")
	return nil
}

// run is the single serialized processing path for all inbound messages.
func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)
	for msg := range b.intake {
		if err := b.process(ctx, msg); err != nil {
			b.logger.Error("message processing failed", "topic", msg.topic, "error", err)
		}
	}
}

func (b *Bridge) process(ctx context.Context, msg inbound) error {
	addr, ok := ParseTopic(b.bus.Topics().Prefix(), msg.topic)
	if !ok {
		b.logger.Debug("discarding unroutable topic", "topic", msg.topic)
		return nil
	}

	payload := DecodePayload(msg.payload)

	switch addr.Kind {
	case KindStatus:
		return b.processStatus(ctx, addr, payload)
	case KindSensor:
		return b.processSensor(ctx, addr, payload)
	case KindResponse:
		return b.processResponse(ctx, addr, payload)
	default:
		b.logger.Debug("ignoring message kind", "kind", string(addr.Kind), "topic", msg.topic)
		return nil
	}
}

// processStatus applies a status message inside one transaction, then
// notifies observers of the committed state.
func (b *Bridge) processStatus(ctx context.Context, addr Address, payload map[string]any) error {
	now := time.Now().UTC()

	var updated *device.Device
	err := b.repo.ReconcileTx(ctx, func(store device.Store) error {
		existing, err := store.FindDevice(ctx, addr.DeviceID)
		if err != nil && !errors.Is(err, device.ErrDeviceNotFound) {
			return err
		}

		result := Reconcile(existing, addr, payload, now)
		if result.Device == nil {
			return nil
		}
		if err := store.UpsertDevice(ctx, result.Device); err != nil {
			return err
		}
		updated = result.Device
		return nil
	})
	if err != nil {
		return fmt.Errorf("reconciling status for %s: %w", addr.DeviceID, err)
	}
	if updated == nil {
		return nil
	}

	b.logger.Info("device status updated", "device_id", addr.DeviceID, "status", updated.Status)

	b.hub.BroadcastToTopic("device:"+addr.DeviceID, map[string]any{
		"type":      "device_update",
		"device_id": addr.DeviceID,
		"status":    updated.Status,
	})
	if b.telemetry != nil {
		b.telemetry.WriteDeviceStatus(addr.DeviceID, updated.Status)
	}
	return nil
}

// processSensor commits all readings derived from one message atomically,
// then notifies observers per reading.
func (b *Bridge) processSensor(ctx context.Context, addr Address, payload map[string]any) error {
	now := time.Now().UTC()

	result := Reconcile(nil, addr, payload, now)
	if len(result.Readings) == 0 {
		b.logger.Warn("sensor message produced no readings", "device_id", addr.DeviceID)
		return nil
	}

	err := b.repo.ReconcileTx(ctx, func(store device.Store) error {
		for i := range result.Readings {
			if err := store.AppendSensorReading(ctx, &result.Readings[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing readings for %s: %w", addr.DeviceID, err)
	}

	for _, reading := range result.Readings {
		b.hub.BroadcastToTopic("sensor:"+addr.DeviceID, map[string]any{
			"type":        "sensor_update",
			"device_id":   addr.DeviceID,
			"sensor_type": reading.SensorType,
			"data": map[string]any{
				"value":     reading.Value,
				"unit":      reading.Unit,
				"timestamp": reading.Timestamp.Format(time.RFC3339),
			},
		})
		if b.telemetry != nil {
			b.telemetry.WriteSensorReading(addr.DeviceID, reading.SensorType, reading.Value, reading.Unit, reading.Timestamp)
		}
	}
	return nil
}

// processResponse records a command outcome. Responses carrying a
// command_id close out the matching command record; everything else is
// logged only.
func (b *Bridge) processResponse(ctx context.Context, addr Address, payload map[string]any) error {
	b.logger.Info("device response", "device_id", addr.DeviceID, "payload", payload)

	commandID := responseCommandID(payload)
	if commandID == "" {
		return nil
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	response := string(encoded)

	err = b.repo.UpdateCommandStatus(ctx, commandID, device.CommandStatusCompleted, &response)
	if err != nil && !errors.Is(err, device.ErrCommandNotFound) {
		return fmt.Errorf("recording response for command %s: %w", commandID, err)
	}
	return nil
}

// responseCommandID extracts a command identifier from a response payload,
// tolerating both string and numeric encodings.
func responseCommandID(payload map[string]any) string {
	switch id := payload["command_id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}

// PublishCommand sends a command to a device. Fire-and-forget: when the
// broker is unreachable the caller gets mqtt.ErrNotConnected and nothing is
// queued.
func (b *Bridge) PublishCommand(deviceID, command string, payload any, commandID string) error {
	msg := map[string]any{
		"command": command,
		"payload": payload,
	}
	if commandID != "" {
		msg["command_id"] = commandID
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	topic := b.bus.Topics().DeviceCommand(deviceID)
	if err := b.bus.Publish(topic, data, b.qos, false); err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			b.logger.Warn("cannot publish command, broker not connected", "device_id", deviceID, "command", command)
		}
		return err
	}

	b.logger.Debug("command published", "device_id", deviceID, "command", command)
	return nil
}
