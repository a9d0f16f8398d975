package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store is the minimal persistence surface the bridge's reconciler commits
// against. One inbound message maps to exactly one unit of work: within
// ReconcileTx all Store calls share a single transaction.
type Store interface {
	// FindDevice retrieves a device by its firmware-reported ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	FindDevice(ctx context.Context, deviceID string) (*Device, error)

	// UpsertDevice inserts the device or replaces the existing row with the
	// same DeviceID.
	UpsertDevice(ctx context.Context, device *Device) error

	// AppendSensorReading inserts an immutable sensor reading.
	AppendSensorReading(ctx context.Context, reading *SensorReading) error
}

// Repository defines the full persistence interface for devices, readings
// and commands. It extends Store with query operations used by the REST API
// and with transactional reconciliation for the bridge.
type Repository interface {
	Store

	// ListDevices retrieves all devices ordered by name.
	ListDevices(ctx context.Context) ([]Device, error)

	// ListSensorReadings retrieves readings for a device, newest first.
	ListSensorReadings(ctx context.Context, deviceID string, opts ReadingQuery) ([]SensorReading, error)

	// CreateCommand inserts a new outbound command record.
	CreateCommand(ctx context.Context, cmd *Command) error

	// UpdateCommandStatus updates the status (and optionally response) of a command.
	UpdateCommandStatus(ctx context.Context, id, status string, response *string) error

	// ListCommands retrieves recent commands for a device, newest first.
	ListCommands(ctx context.Context, deviceID string, limit int) ([]Command, error)

	// ReconcileTx runs fn inside a single transaction. All Store operations
	// performed through the passed Store either commit together or not at all.
	ReconcileTx(ctx context.Context, fn func(Store) error) error
}

// querier is the subset of sql.DB / sql.Tx used by the store implementation,
// allowing the same code to run inside and outside transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
	sqliteStore
}

// sqliteStore implements Store against any querier (DB or transaction).
type sqliteStore struct {
	q querier
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, sqliteStore: sqliteStore{q: db}}
}

// ReconcileTx runs fn inside a single transaction.
func (r *SQLiteRepository) ReconcileTx(ctx context.Context, fn func(Store) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(sqliteStore{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// FindDevice retrieves a device by its firmware-reported ID.
func (s sqliteStore) FindDevice(ctx context.Context, deviceID string) (*Device, error) {
	query := `
		SELECT device_id, name, device_type, status, firmware_version,
			metadata, last_seen, created_at, updated_at
		FROM devices
		WHERE device_id = ?`

	device, err := scanDevice(s.q.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// UpsertDevice inserts or replaces a device row.
func (s sqliteStore) UpsertDevice(ctx context.Context, device *Device) error {
	if device.DeviceID == "" {
		return ErrInvalidDevice
	}

	var metadataJSON []byte
	if device.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(device.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata: %w", err)
		}
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	query := `
		INSERT INTO devices (
			device_id, name, device_type, status, firmware_version,
			metadata, last_seen, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			name = excluded.name,
			device_type = excluded.device_type,
			status = excluded.status,
			firmware_version = excluded.firmware_version,
			metadata = excluded.metadata,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at`

	_, err := s.q.ExecContext(ctx, query,
		device.DeviceID,
		device.Name,
		device.Type,
		device.Status,
		nullableString(device.FirmwareVersion),
		nullableBytes(metadataJSON),
		nullableTime(device.LastSeen),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// AppendSensorReading inserts an immutable sensor reading.
func (s sqliteStore) AppendSensorReading(ctx context.Context, reading *SensorReading) error {
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO sensor_readings (device_id, sensor_type, value, unit, timestamp)
		VALUES (?, ?, ?, ?, ?)`

	result, err := s.q.ExecContext(ctx, query,
		reading.DeviceID,
		reading.SensorType,
		reading.Value,
		reading.Unit,
		reading.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting sensor reading: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		reading.ID = id
	}
	return nil
}

// ListDevices retrieves all devices ordered by name.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]Device, error) {
	query := `
		SELECT device_id, name, device_type, status, firmware_version,
			metadata, last_seen, created_at, updated_at
		FROM devices
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}
	return devices, rows.Err()
}

// ReadingQuery contains filters for ListSensorReadings.
type ReadingQuery struct {
	// SensorType filters by sensor path; empty matches all.
	SensorType string

	// Limit caps the number of rows returned; <= 0 uses a default of 100.
	Limit int
}

// defaultReadingLimit caps reading queries that don't specify a limit.
const defaultReadingLimit = 100

// ListSensorReadings retrieves readings for a device, newest first.
func (r *SQLiteRepository) ListSensorReadings(ctx context.Context, deviceID string, opts ReadingQuery) ([]SensorReading, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultReadingLimit
	}

	query := `
		SELECT id, device_id, sensor_type, value, unit, timestamp
		FROM sensor_readings
		WHERE device_id = ?`
	args := []any{deviceID}

	if opts.SensorType != "" {
		query += " AND sensor_type = ?"
		args = append(args, opts.SensorType)
	}

	query += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sensor readings: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var readings []SensorReading
	for rows.Next() {
		var reading SensorReading
		var unit sql.NullString
		var timestamp string

		if err := rows.Scan(
			&reading.ID,
			&reading.DeviceID,
			&reading.SensorType,
			&reading.Value,
			&unit,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("scanning sensor reading: %w", err)
		}

		reading.Unit = unit.String
		reading.Timestamp = parseTime(timestamp)
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

// CreateCommand inserts a new outbound command record.
func (r *SQLiteRepository) CreateCommand(ctx context.Context, cmd *Command) error {
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = time.Now().UTC()
	}
	if cmd.Status == "" {
		cmd.Status = CommandStatusPending
	}

	query := `
		INSERT INTO commands (id, device_id, command, payload, status, response, created_at, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		cmd.ID,
		cmd.DeviceID,
		cmd.Command,
		cmd.Payload,
		cmd.Status,
		nullableString(cmd.Response),
		cmd.CreatedAt.Format(time.RFC3339),
		nullableTime(cmd.ExecutedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting command: %w", err)
	}
	return nil
}

// UpdateCommandStatus updates the status (and optionally response) of a command.
func (r *SQLiteRepository) UpdateCommandStatus(ctx context.Context, id, status string, response *string) error {
	query := `
		UPDATE commands SET status = ?, response = ?, executed_at = ?
		WHERE id = ?`

	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		status,
		nullableString(response),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating command: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return ErrCommandNotFound
	}
	return nil
}

// ListCommands retrieves recent commands for a device, newest first.
func (r *SQLiteRepository) ListCommands(ctx context.Context, deviceID string, limit int) ([]Command, error) {
	if limit <= 0 {
		limit = defaultReadingLimit
	}

	query := `
		SELECT id, device_id, command, payload, status, response, created_at, executed_at
		FROM commands
		WHERE device_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying commands: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows

	var commands []Command
	for rows.Next() {
		var cmd Command
		var payload, response, executedAt sql.NullString
		var createdAt string

		if err := rows.Scan(
			&cmd.ID,
			&cmd.DeviceID,
			&cmd.Command,
			&payload,
			&cmd.Status,
			&response,
			&createdAt,
			&executedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning command: %w", err)
		}

		cmd.Payload = payload.String
		if response.Valid {
			cmd.Response = &response.String
		}
		cmd.CreatedAt = parseTime(createdAt)
		if executedAt.Valid {
			t := parseTime(executedAt.String)
			cmd.ExecutedAt = &t
		}
		commands = append(commands, cmd)
	}
	return commands, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning code.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a row or rows result into a Device.
func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var firmwareVersion, metadataJSON, lastSeen sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.DeviceID,
		&d.Name,
		&d.Type,
		&d.Status,
		&firmwareVersion,
		&metadataJSON,
		&lastSeen,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if firmwareVersion.Valid {
		d.FirmwareVersion = &firmwareVersion.String
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}
	if lastSeen.Valid {
		t := parseTime(lastSeen.String)
		d.LastSeen = &t
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)

	return &d, nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// nullableBytes returns a sql.NullString for optional byte slices.
func nullableBytes(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// parseTime parses an RFC3339 timestamp, returning the zero time on failure.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
