package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/johnayoung/go-delta-candles/internal/logger"
	"github.com/johnayoung/go-delta-candles/internal/models"
)

// SQLiteMirror stores series in a SQLite database file.
type SQLiteMirror struct {
	db     *sql.DB
	dbPath string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewSQLiteMirror opens (or creates) the SQLite database.
func NewSQLiteMirror(dbPath string, log *slog.Logger) (*SQLiteMirror, error) {
	if log == nil {
		log = logger.Discard()
	}
	if dbPath == "" {
		return nil, NewStorageError("open", "", "", fmt.Errorf("sqlite path is required"))
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, NewStorageError("open", "", dbPath, fmt.Errorf("open sqlite: %w", err))
	}
	db.SetMaxOpenConns(1)

	return &SQLiteMirror{db: db, dbPath: dbPath, logger: log}, nil
}

// sqliteMigrations is the SQLite schema history
func sqliteMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "candles table",
			Up: execAll(`
				CREATE TABLE IF NOT EXISTS candles (
					id               INTEGER PRIMARY KEY AUTOINCREMENT,
					symbol           TEXT NOT NULL,
					resolution       TEXT NOT NULL,
					candle_time      TEXT NOT NULL,
					epoch            INTEGER NOT NULL,
					open             REAL,
					high             REAL,
					low              REAL,
					close            REAL,
					volume           REAL,
					price_change     REAL,
					price_change_pct REAL,
					run_id           TEXT NOT NULL,
					stored_at        INTEGER NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_candles_symbol_epoch ON candles(symbol, resolution, epoch)`,
			),
		},
		{
			Version:     2,
			Description: "gap report table",
			Up: execAll(`
				CREATE TABLE IF NOT EXISTS gaps (
					id          INTEGER PRIMARY KEY AUTOINCREMENT,
					symbol      TEXT NOT NULL,
					resolution  TEXT NOT NULL,
					start_epoch INTEGER NOT NULL,
					end_epoch   INTEGER NOT NULL,
					missing     INTEGER NOT NULL,
					run_id      TEXT NOT NULL
				)`,
			),
		},
	}
}

// Initialize implements Mirror
func (s *SQLiteMirror) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// WAL lets readers query the file while a run is writing
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return NewStorageError("initialize", "", s.dbPath, fmt.Errorf("set WAL mode: %w", err))
	}

	if err := NewMigrationManager(s.db, sqliteMigrations(), s.logger).MigrateToLatest(ctx); err != nil {
		return NewStorageError("initialize", "", s.dbPath, err)
	}

	s.logger.Info("sqlite mirror ready", "db_path", s.dbPath)
	return nil
}

// StoreSeries implements Mirror
func (s *SQLiteMirror) StoreSeries(ctx context.Context, runID string, series *models.Series, gaps []models.Gap) error {
	if series.Empty() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	first, last := series.Rows[0].Epoch, series.Rows[len(series.Rows)-1].Epoch
	res := string(series.Resolution)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewInsertError("candles", fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM candles WHERE symbol = ? AND resolution = ? AND epoch BETWEEN ? AND ?`,
		series.Symbol, res, first, last); err != nil {
		return NewStorageError("delete", "candles", "", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM gaps WHERE symbol = ? AND resolution = ? AND start_epoch BETWEEN ? AND ?`,
		series.Symbol, res, first, last); err != nil {
		return NewStorageError("delete", "gaps", "", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, resolution, candle_time, epoch, open, high, low, close, volume,
			price_change, price_change_pct, run_id, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return NewInsertError("candles", fmt.Errorf("prepare: %w", err))
	}
	defer stmt.Close()

	storedAt := time.Now().Unix()
	for _, row := range series.Rows {
		if _, err := stmt.ExecContext(ctx,
			row.Symbol,
			res,
			row.Time.Format(DateTimeLayout),
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
			return NewInsertError("candles", fmt.Errorf("insert row %d: %w", row.Epoch, err))
		}
	}

	for _, gap := range gaps {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gaps (symbol, resolution, start_epoch, end_epoch, missing, run_id) VALUES (?, ?, ?, ?, ?, ?)`,
			gap.Symbol, string(gap.Resolution), gap.StartTime.Unix(), gap.EndTime.Unix(), gap.Missing, runID); err != nil {
			return NewInsertError("gaps", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewInsertError("candles", fmt.Errorf("commit: %w", err))
	}

	s.logger.Debug("mirrored series", "symbol", series.Symbol, "rows", series.Len(), "gaps", len(gaps))
	return nil
}

// CountRows implements Mirror
func (s *SQLiteMirror) CountRows(ctx context.Context, symbol string, resolution models.Resolution) (int, error) {
	return countRows(ctx, s.db, symbol, resolution)
}

// Close implements Mirror
func (s *SQLiteMirror) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
