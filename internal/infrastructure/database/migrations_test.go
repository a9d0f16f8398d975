package database

import (
	"context"
	"embed"
	"testing"
	"time"
)

// testMigrationsDir is the directory containing test migration files.
const testMigrationsDir = "testdata"

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useTestMigrations swaps in the testdata migrations for the duration of a test.
func useTestMigrations(t *testing.T) {
	t.Helper()

	origFS := MigrationsFS
	origDir := MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})

	MigrationsFS = testMigrationsFS
	MigrationsDir = testMigrationsDir
}

func TestMigrate(t *testing.T) {
	useTestMigrations(t)

	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Verify table was created
	var tableName string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='test_devices'",
	).Scan(&tableName)
	if err != nil {
		t.Fatalf("table test_devices not created: %v", err)
	}

	// Verify migration was recorded
	applied, err := db.appliedVersions(ctx)
	if err != nil {
		t.Fatalf("appliedVersions() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("expected 1 applied migration, got %d", len(applied))
	}

	// Running again should be idempotent
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		base        string
		wantVersion string
		wantName    string
		wantErr     bool
	}{
		{"20260315_120000_initial_schema", "20260315_120000", "initial_schema", false},
		{"20260315_120000_add_index", "20260315_120000", "add_index", false},
		{"bad", "", "", true},
		{"20260315_120000", "", "", true},
	}

	for _, tt := range tests {
		version, name, err := parseMigrationName(tt.base)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMigrationName(%q) error = %v, wantErr %v", tt.base, err, tt.wantErr)
			continue
		}
		if version != tt.wantVersion || name != tt.wantName {
			t.Errorf("parseMigrationName(%q) = (%q, %q), want (%q, %q)",
				tt.base, version, name, tt.wantVersion, tt.wantName)
		}
	}
}
