// Package storage persists normalized candle series and indicator tables.
//
// The primary output is always a CSV file per series, written atomically so an
// interrupted run never leaves a truncated file behind. A series can also be
// mirrored into an embedded analytical database (DuckDB or SQLite) for ad-hoc
// querying; the mirror is optional and never replaces the CSV.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/johnayoung/go-delta-candles/internal/models"
)

// SeriesWriter persists a series and returns the path it was written to.
type SeriesWriter interface {
	WriteSeries(series *models.Series) (string, error)
}

// Mirror copies a series and its gap report into a database.
type Mirror interface {
	// Initialize opens the database and applies pending migrations
	Initialize(ctx context.Context) error

	// StoreSeries replaces the rows of series.Symbol/series.Resolution inside
	// the series' epoch range with the given rows, tagged with runID.
	StoreSeries(ctx context.Context, runID string, series *models.Series, gaps []models.Gap) error

	// CountRows returns the number of stored rows for symbol and resolution
	CountRows(ctx context.Context, symbol string, resolution models.Resolution) (int, error)

	// Close releases the database handle
	Close() error
}

// Mirror kinds accepted by NewMirror
const (
	MirrorNone   = "none"
	MirrorDuckDB = "duckdb"
	MirrorSQLite = "sqlite"
)

// NewMirror creates the mirror named by kind. It returns nil for "none" or an
// empty kind.
func NewMirror(kind, path string, logger *slog.Logger) (Mirror, error) {
	switch strings.ToLower(kind) {
	case "", MirrorNone:
		return nil, nil
	case MirrorDuckDB:
		mirror, err := NewDuckDBMirror(path, logger)
		if err != nil {
			return nil, err
		}
		return mirror, nil
	case MirrorSQLite:
		mirror, err := NewSQLiteMirror(path, logger)
		if err != nil {
			return nil, err
		}
		return mirror, nil
	default:
		return nil, NewStorageError("open", "", "", fmt.Errorf("unknown mirror type %q", kind))
	}
}

// StorageError represents errors that occur during storage operations.
type StorageError struct {
	// Operation is the storage operation that failed (e.g., "insert", "write")
	Operation string

	// Table is the database table involved in the operation
	Table string

	// Path is the file involved in the operation (may be empty)
	Path string

	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for StorageError.
func (e *StorageError) Error() string {
	switch {
	case e.Table != "":
		return fmt.Sprintf("storage operation %s on table %s failed: %v", e.Operation, e.Table, e.Err)
	case e.Path != "":
		return fmt.Sprintf("storage operation %s on %s failed: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("storage operation %s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new StorageError with the provided details.
func NewStorageError(operation, table, path string, err error) *StorageError {
	return &StorageError{
		Operation: operation,
		Table:     table,
		Path:      path,
		Err:       err,
	}
}

// NewInsertError creates a StorageError specifically for insert operations.
func NewInsertError(table string, err error) *StorageError {
	return &StorageError{
		Operation: "insert",
		Table:     table,
		Err:       err,
	}
}

// NewWriteError creates a StorageError for file writes.
func NewWriteError(path string, err error) *StorageError {
	return &StorageError{
		Operation: "write",
		Path:      path,
		Err:       err,
	}
}
