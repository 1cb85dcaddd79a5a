// Package storage persists window-store entries in SQLite so a restart
// keeps the rolling window. The on-disk layout is keyed by fingerprint; it
// is an implementation detail, not a compatibility contract.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"Web3Scanner/internal/domain"
	"Web3Scanner/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
    fingerprint   TEXT PRIMARY KEY,
    source_id     TEXT NOT NULL,
    observed_at   TEXT NOT NULL,
    fetched_at    TEXT NOT NULL,
    score         REAL NOT NULL DEFAULT 0,
    payload_json  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_observed_at ON signals(observed_at);
`

// SQLiteRepository implements ports.SignalRepository on a local SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

var _ ports.SignalRepository = (*SQLiteRepository)(nil)

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent admits.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// LoadWindow returns all persisted signals observed at or after since.
func (r *SQLiteRepository) LoadWindow(ctx context.Context, since time.Time) ([]domain.Signal, error) {
	query, args, err := sq.Select("fingerprint", "source_id", "observed_at", "fetched_at", "score", "payload_json").
		From("signals").
		Where(sq.GtOrEq{"observed_at": since.UTC().Format(time.RFC3339Nano)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query window: %w", err)
	}
	defer rows.Close()

	var out []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var observedAt, fetchedAt, payloadJSON string
		if err := rows.Scan(&sig.Fingerprint, &sig.SourceID, &observedAt, &fetchedAt, &sig.Score, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sig.ObservedAt, err = time.Parse(time.RFC3339Nano, observedAt); err != nil {
			return nil, fmt.Errorf("parse observed_at for %s: %w", sig.Fingerprint, err)
		}
		if sig.FetchedAt, err = time.Parse(time.RFC3339Nano, fetchedAt); err != nil {
			return nil, fmt.Errorf("parse fetched_at for %s: %w", sig.Fingerprint, err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &sig.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for %s: %w", sig.Fingerprint, err)
		}
		sig.Scored = sig.Score > 0
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// Save inserts a newly admitted signal; on conflict the fetch time is
// refreshed but observed_at keeps its first-seen value.
func (r *SQLiteRepository) Save(ctx context.Context, signal domain.Signal) error {
	payloadJSON, err := json.Marshal(signal.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	query, args, err := sq.Insert("signals").
		Columns("fingerprint", "source_id", "observed_at", "fetched_at", "score", "payload_json").
		Values(
			signal.Fingerprint,
			signal.SourceID,
			signal.ObservedAt.UTC().Format(time.RFC3339Nano),
			signal.FetchedAt.UTC().Format(time.RFC3339Nano),
			signal.Score,
			string(payloadJSON),
		).
		Suffix("ON CONFLICT(fingerprint) DO UPDATE SET fetched_at = excluded.fetched_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// Touch refreshes last_seen_fetch_at for a re-sighted fingerprint.
func (r *SQLiteRepository) Touch(ctx context.Context, fingerprint string, fetchedAt time.Time) error {
	query, args, err := sq.Update("signals").
		Set("fetched_at", fetchedAt.UTC().Format(time.RFC3339Nano)).
		Where(sq.Eq{"fingerprint": fingerprint}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch signal: %w", err)
	}
	return nil
}

// DeleteOlderThan removes entries observed strictly before the cutoff.
func (r *SQLiteRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query, args, err := sq.Delete("signals").
		Where(sq.Lt{"observed_at": cutoff.UTC().Format(time.RFC3339Nano)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
