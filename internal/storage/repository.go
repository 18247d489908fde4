// Package storage keeps the fetch audit log in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"ipvops/internal/audit"
	"ipvops/internal/log"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// AuditRepository stores audit events. It implements audit.Recorder and
// audit.Reader.
type AuditRepository struct {
	db *sql.DB
}

var (
	_ audit.Recorder = (*AuditRepository)(nil)
	_ audit.Reader   = (*AuditRepository)(nil)
)

func NewAuditRepository(dbPath string) (*AuditRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Audit store ready", log.FieldComponent, log.ComponentStorage, "path", dbPath)
	return &AuditRepository{db: db}, nil
}

func (r *AuditRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *AuditRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const insertEvent = `INSERT INTO fetch_events
	(id, occurred_at, request_id, source, operation, params, records, outcome, error_kind, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Record implements audit.Recorder.
func (r *AuditRepository) Record(ctx context.Context, e audit.Event) error {
	params := []byte("{}")
	if len(e.Params) > 0 {
		var err error
		if params, err = json.Marshal(e.Params); err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, insertEvent,
		e.ID,
		e.OccurredAt.UnixMilli(),
		e.RequestID,
		e.Source,
		e.Operation,
		string(params),
		e.Records,
		e.Outcome,
		e.ErrorKind,
		e.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert audit event %s: %w", e.ID, err)
	}
	return nil
}

const selectRecent = `SELECT id, occurred_at, request_id, source, operation, params, records, outcome, error_kind, duration_ms
	FROM fetch_events ORDER BY seq DESC LIMIT ?`

// Recent implements audit.Reader. limit is clamped to 1..MaxRecentLimit,
// zero meaning DefaultRecentLimit.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := []audit.Event{}
	for rows.Next() {
		var (
			e          audit.Event
			occurredAt int64
			params     string
		)
		if err := rows.Scan(&e.ID, &occurredAt, &e.RequestID, &e.Source, &e.Operation,
			&params, &e.Records, &e.Outcome, &e.ErrorKind, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.OccurredAt = time.UnixMilli(occurredAt).UTC()
		if params != "" && params != "{}" {
			if err := json.Unmarshal([]byte(params), &e.Params); err != nil {
				return nil, fmt.Errorf("decode params of %s: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
