package report

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger is the sqlite table of finished runs
type Ledger struct {
	db *sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		finished_at TEXT NOT NULL,
		input_path TEXT,
		output_path TEXT,
		frames_processed INTEGER,
		total_frames INTEGER,
		frame_errors INTEGER,
		duration_secs REAL,
		average_fps REAL,
		device TEXT,
		codec TEXT,
		status TEXT NOT NULL
	);
`

// OpenLedger opens or creates the ledger at path
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record stores r, replacing an earlier entry with the same run id
func (l *Ledger) Record(ctx context.Context, r *Report) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_id, finished_at, input_path, output_path, frames_processed, total_frames, frame_errors, duration_secs, average_fps, device, codec, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID,
		r.Timestamp.UTC().Format(time.RFC3339),
		r.InputPath,
		r.OutputPath,
		r.FramesProcessed,
		r.TotalFrames,
		r.FrameErrors,
		r.Duration.Seconds(),
		r.AverageFPS(),
		r.Device,
		r.Codec,
		string(r.Status),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT run_id, finished_at, input_path, output_path, frames_processed, total_frames, frame_errors, duration_secs, device, codec, status
		FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []*Report
	for rows.Next() {
		var (
			r        Report
			finished string
			secs     float64
			status   string
		)
		if err := rows.Scan(&r.RunID, &finished, &r.InputPath, &r.OutputPath, &r.FramesProcessed,
			&r.TotalFrames, &r.FrameErrors, &secs, &r.Device, &r.Codec, &status); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Timestamp, err = time.Parse(time.RFC3339, finished)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at %q: %w", finished, err)
		}
		r.Timestamp = r.Timestamp.Local()
		r.Duration = time.Duration(secs * float64(time.Second))
		r.Status = Status(status)
		out = append(out, &r)
	}
	return out, rows.Err()
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}
