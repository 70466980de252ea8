package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/johnayoung/go-delta-candles/internal/logger"
)

// Migration represents a single schema migration with version and implementation
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, tx *sql.Tx) error
}

// execAll returns a migration body that runs each statement in order
func execAll(statements ...string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
			}
		}
		return nil
	}
}

// MigrationManager applies schema migrations to a mirror database. The
// statements are dialect specific; the bookkeeping table is portable across
// DuckDB and SQLite.
type MigrationManager struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations []Migration
}

// NewMigrationManager creates a new migration manager instance
func NewMigrationManager(db *sql.DB, migrations []Migration, log *slog.Logger) *MigrationManager {
	if log == nil {
		log = logger.Discard()
	}
	return &MigrationManager{
		db:         db,
		logger:     log,
		migrations: migrations,
	}
}

// Initialize creates the migrations table if it doesn't exist
func (m *MigrationManager) Initialize(ctx context.Context) error {
	createMigrationsTable := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description VARCHAR NOT NULL,
			applied_at BIGINT NOT NULL,
			execution_time BIGINT NOT NULL DEFAULT 0
		)`

	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// MigrateToLatest runs every migration newer than the current version
func (m *MigrationManager) MigrateToLatest(ctx context.Context) error {
	if err := m.Initialize(ctx); err != nil {
		return err
	}

	currentVersion, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	applied := 0
	for _, migration := range m.migrations {
		if migration.Version <= currentVersion {
			continue
		}
		if err := m.runMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", migration.Version, err)
		}
		applied++
	}

	if applied > 0 {
		m.logger.Info("migrations applied",
			"from_version", currentVersion,
			"migrations_run", applied,
		)
	}
	return nil
}

// CurrentVersion returns the highest applied migration version
func (m *MigrationManager) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// runMigration executes a single migration inside a transaction
func (m *MigrationManager) runMigration(ctx context.Context, migration Migration) error {
	start := time.Now()

	m.logger.Debug("applying migration",
		"version", migration.Version,
		"description", migration.Description)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := migration.Up(ctx, tx); err != nil {
		return fmt.Errorf("migration execution failed: %w", err)
	}

	insertQuery := `INSERT INTO schema_migrations (version, description, applied_at, execution_time) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertQuery,
		migration.Version,
		migration.Description,
		start.Unix(),
		time.Since(start).Nanoseconds()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 60 {
		return s[:60]
	}
	return s
}
