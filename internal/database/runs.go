package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertIngestRun records a finished ingestion.
func (db *DB) InsertIngestRun(ctx context.Context, run IngestRun) error {
	_, err := db.conn.ExecContext(ctx, db.dialect.rebind(
		`INSERT INTO ingest_runs (id, source, encoding, row_count, dropped, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.Source, run.Encoding, run.RowCount, run.Dropped,
		run.StartedAt.UTC().Format(time.RFC3339), run.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording ingest run: %w", err)
	}
	return nil
}

// GetLastIngestRun returns the most recent ingestion, or nil if none ran yet.
func (db *DB) GetLastIngestRun(ctx context.Context) (*IngestRun, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, source, encoding, row_count, dropped, started_at, finished_at
		FROM ingest_runs ORDER BY finished_at DESC LIMIT 1`)

	var r IngestRun
	var started, finished string
	err := row.Scan(&r.ID, &r.Source, &r.Encoding, &r.RowCount, &r.Dropped, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last ingest run: %w", err)
	}

	r.StartedAt, _ = time.Parse(time.RFC3339, started)
	r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
	return &r, nil
}
