// Package store keeps a history of extraction runs in an embedded SQLite
// database. The pipeline core never touches it; the daemon records outcomes
// here so results survive the process and can be exported.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/dealdocs/contractocr/constants"
	"github.com/dealdocs/contractocr/internal/extract"
)

const schema = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id               TEXT PRIMARY KEY,
	document_path    TEXT NOT NULL,
	status           TEXT NOT NULL,
	failed_stage     TEXT NOT NULL DEFAULT '',
	error            TEXT NOT NULL DEFAULT '',
	buyer_name       TEXT NOT NULL DEFAULT '',
	seller_name      TEXT NOT NULL DEFAULT '',
	property_address TEXT NOT NULL DEFAULT '',
	offer_price      TEXT NOT NULL DEFAULT '',
	key_dates        TEXT NOT NULL DEFAULT '',
	duration_ms      INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON extraction_runs (created_at);
`

// Run is one recorded pipeline outcome.
type Run struct {
	ID           uuid.UUID
	DocumentPath string
	Status       constants.RunStatus
	FailedStage  string
	Error        string
	Record       extract.Record
	Duration     time.Duration
	CreatedAt    time.Time
}

// RunStore persists extraction runs.
type RunStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the SQLite database at path and ensures the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*RunStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer at a time; a single connection serializes the
	// queue workers instead of surfacing SQLITE_BUSY to them.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &RunStore{db: db, logger: logger}, nil
}

func (s *RunStore) Close() error { return s.db.Close() }

// RecordSuccess stores a completed run with its extracted fields.
func (s *RunStore) RecordSuccess(ctx context.Context, id uuid.UUID, docPath string, rec extract.Record, dur time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_runs
			(id, document_path, status, buyer_name, seller_name, property_address, offer_price, key_dates, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), docPath, string(constants.RunStatusDone),
		rec.BuyerName, rec.SellerName, rec.PropertyAddress, rec.OfferPrice, rec.KeyDates,
		dur.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	return nil
}

// RecordFailure stores a failed run with the stage it failed in.
func (s *RunStore) RecordFailure(ctx context.Context, id uuid.UUID, docPath, stage, cause string, dur time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extraction_runs
			(id, document_path, status, failed_stage, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), docPath, string(constants.RunStatusFailed), stage, cause, dur.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `
		SELECT id, document_path, status, failed_stage, error,
		       buyer_name, seller_name, property_address, offer_price, key_dates,
		       duration_ms, created_at
		FROM extraction_runs ORDER BY created_at DESC, rowid DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, q+" LIMIT ?", limit)
	} else {
		rows, err = s.db.QueryContext(ctx, q)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("close rows", "error", err)
		}
	}()

	var out []Run
	for rows.Next() {
		var r Run
		var id string
		var durMs int64
		if err := rows.Scan(&id, &r.DocumentPath, &r.Status, &r.FailedStage, &r.Error,
			&r.Record.BuyerName, &r.Record.SellerName, &r.Record.PropertyAddress,
			&r.Record.OfferPrice, &r.Record.KeyDates,
			&durMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ID, _ = uuid.Parse(id)
		r.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
