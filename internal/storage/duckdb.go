package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcboeker/go-duckdb/v2"
	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-delta-candles/internal/logger"
	"github.com/johnayoung/go-delta-candles/internal/models"
)

// DuckDBMirror stores series in a DuckDB file using the Appender API for
// bulk inserts.
type DuckDBMirror struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewDuckDBMirror opens a DuckDB database. The path can be ":memory:" for an
// in-memory database.
func NewDuckDBMirror(dbPath string, log *slog.Logger) (*DuckDBMirror, error) {
	if log == nil {
		log = logger.Discard()
	}
	if dbPath == "" {
		return nil, NewStorageError("open", "", "", fmt.Errorf("duckdb path is required"))
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, NewStorageError("open", "", dbPath, fmt.Errorf("failed to open DuckDB database: %w", err))
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &DuckDBMirror{db: db, dbPath: dbPath, logger: log}, nil
}

// duckdbMigrations is the DuckDB schema history
func duckdbMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "candles table",
			Up: execAll(`
				CREATE TABLE IF NOT EXISTS candles (
					symbol VARCHAR NOT NULL,
					resolution VARCHAR NOT NULL,
					candle_time TIMESTAMP NOT NULL,
					epoch BIGINT NOT NULL,
					open DOUBLE,
					high DOUBLE,
					low DOUBLE,
					close DOUBLE,
					volume DOUBLE,
					price_change DOUBLE,
					price_change_pct DOUBLE,
					run_id VARCHAR NOT NULL,
					stored_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_candles_symbol_epoch ON candles (symbol, resolution, epoch)`,
			),
		},
		{
			Version:     2,
			Description: "gap report table",
			Up: execAll(`
				CREATE TABLE IF NOT EXISTS gaps (
					symbol VARCHAR NOT NULL,
					resolution VARCHAR NOT NULL,
					start_epoch BIGINT NOT NULL,
					end_epoch BIGINT NOT NULL,
					missing INTEGER NOT NULL,
					run_id VARCHAR NOT NULL
				)`,
			),
		},
	}
}

// Initialize implements Mirror
func (d *DuckDBMirror) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.ExecContext(ctx, "SET enable_progress_bar = false"); err != nil {
		d.logger.Warn("failed to set configuration", "error", err)
	}

	if err := NewMigrationManager(d.db, duckdbMigrations(), d.logger).MigrateToLatest(ctx); err != nil {
		return NewStorageError("initialize", "", d.dbPath, err)
	}

	d.logger.Info("duckdb mirror ready", "db_path", d.dbPath)
	return nil
}

// StoreSeries implements Mirror
func (d *DuckDBMirror) StoreSeries(ctx context.Context, runID string, series *models.Series, gaps []models.Gap) error {
	if series.Empty() {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	first, last := series.Rows[0].Epoch, series.Rows[len(series.Rows)-1].Epoch

	conn, err := d.db.Conn(ctx)
	if err != nil {
		return NewInsertError("candles", fmt.Errorf("failed to get connection: %w", err))
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx,
		"DELETE FROM candles WHERE symbol = ? AND resolution = ? AND epoch BETWEEN ? AND ?",
		series.Symbol, string(series.Resolution), first, last); err != nil {
		return NewStorageError("delete", "candles", "", err)
	}
	if _, err := conn.ExecContext(ctx,
		"DELETE FROM gaps WHERE symbol = ? AND resolution = ? AND start_epoch BETWEEN ? AND ?",
		series.Symbol, string(series.Resolution), first, last); err != nil {
		return NewStorageError("delete", "gaps", "", err)
	}

	// Get the underlying driver connection
	var driverConn *duckdb.Conn
	err = conn.Raw(func(dc any) error {
		var ok bool
		driverConn, ok = dc.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("underlying connection is not a DuckDB connection")
		}
		return nil
	})
	if err != nil {
		return NewInsertError("candles", fmt.Errorf("failed to get DuckDB connection: %w", err))
	}

	if err := d.appendCandles(driverConn, runID, series); err != nil {
		return err
	}

	for _, gap := range gaps {
		if _, err := conn.ExecContext(ctx,
			"INSERT INTO gaps (symbol, resolution, start_epoch, end_epoch, missing, run_id) VALUES (?, ?, ?, ?, ?, ?)",
			gap.Symbol, string(gap.Resolution), gap.StartTime.Unix(), gap.EndTime.Unix(), gap.Missing, runID); err != nil {
			return NewInsertError("gaps", err)
		}
	}

	d.logger.Debug("mirrored series",
		"symbol", series.Symbol,
		"rows", series.Len(),
		"gaps", len(gaps),
		"duration", time.Since(start),
	)
	return nil
}

func (d *DuckDBMirror) appendCandles(conn *duckdb.Conn, runID string, series *models.Series) error {
	appender, err := duckdb.NewAppenderFromConn(conn, "", "candles")
	if err != nil {
		return NewInsertError("candles", fmt.Errorf("failed to create appender: %w", err))
	}
	defer appender.Close()

	storedAt := time.Now().UTC()
	for _, row := range series.Rows {
		if err := appender.AppendRow(
			row.Symbol,
			string(series.Resolution),
			row.Time,
			row.Epoch,
			nullableFloat(row.Open),
			nullableFloat(row.High),
			nullableFloat(row.Low),
			nullableFloat(row.Close),
			nullableFloat(row.Volume),
			nullableDecimal(row.PriceChange),
			nullableDecimal(row.PriceChangePct),
			runID,
			storedAt,
		); err != nil {
			return NewInsertError("candles", fmt.Errorf("failed to append row %d: %w", row.Epoch, err))
		}
	}

	if err := appender.Flush(); err != nil {
		return NewInsertError("candles", fmt.Errorf("failed to flush appender: %w", err))
	}
	return nil
}

// CountRows implements Mirror
func (d *DuckDBMirror) CountRows(ctx context.Context, symbol string, resolution models.Resolution) (int, error) {
	return countRows(ctx, d.db, symbol, resolution)
}

// Close implements Mirror
func (d *DuckDBMirror) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

func countRows(ctx context.Context, db *sql.DB, symbol string, resolution models.Resolution) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM candles WHERE symbol = ? AND resolution = ?",
		symbol, string(resolution)).Scan(&count)
	if err != nil {
		return 0, NewStorageError("query", "candles", "", err)
	}
	return count, nil
}

// nullableFloat maps an absent value to SQL NULL
func nullableFloat(v models.Value) any {
	if f, ok := v.Get(); ok {
		return f
	}
	return nil
}

func nullableDecimal(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}
