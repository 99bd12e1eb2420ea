// Package audit records the outcome of every submitted upsert batch.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/nucleus/ucl-salesforce/internal/connector/salesforce"
)

// Sink stores upsert results.
type Sink interface {
	Record(ctx context.Context, object string, results []salesforce.BulkResult) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(context.Context, string, []salesforce.BulkResult) error { return nil }

// Log writes one event per failed record and a batch summary.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Record(_ context.Context, object string, results []salesforce.BulkResult) error {
	failed := 0
	for _, r := range results {
		if r.Success {
			continue
		}
		failed++
		l.Logger.Warn().Str("object", object).Str("errors", ErrorText(r.Errors)).Msg("record rejected")
	}
	l.Logger.Info().Str("object", object).Int("records", len(results)).Int("failed", failed).Msg("batch audited")
	return nil
}

// Row is one audit table row.
type Row struct {
	Object      string
	RecordID    string
	Success     bool
	Created     bool
	Errors      string
	SubmittedAt time.Time
}

// Rows converts results to audit rows.
func Rows(object string, results []salesforce.BulkResult) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, Row{
			Object:      object,
			RecordID:    r.ID,
			Success:     r.Success,
			Created:     r.Created,
			Errors:      ErrorText(r.Errors),
			SubmittedAt: time.UnixMilli(r.SubmittedAt).UTC(),
		})
	}
	return rows
}

// ErrorText joins record errors as "CODE: message" pairs.
func ErrorText(errs []salesforce.BulkError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := e.Message
		if e.StatusCode != "" {
			msg = e.StatusCode + ": " + msg
		}
		if len(e.Fields) > 0 {
			msg += " [" + strings.Join(e.Fields, ", ") + "]"
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

const createAuditTable = `CREATE TABLE IF NOT EXISTS salesforce_upsert_audit (
	object       TEXT        NOT NULL,
	record_id    TEXT,
	success      BOOLEAN     NOT NULL,
	created      BOOLEAN     NOT NULL,
	errors       TEXT,
	submitted_at TIMESTAMPTZ NOT NULL
)`

var auditColumns = []string{"object", "record_id", "success", "created", "errors", "submitted_at"}

// Postgres bulk-copies audit rows into salesforce_upsert_audit.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres opens dsn and ensures the audit table exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	if _, err := db.ExecContext(ctx, createAuditTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Record(ctx context.Context, object string, results []salesforce.BulkResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("salesforce_upsert_audit", auditColumns...))
	if err != nil {
		return fmt.Errorf("prepare audit copy: %w", err)
	}
	for _, r := range Rows(object, results) {
		if _, err := stmt.ExecContext(ctx, r.Object, nullString(r.RecordID), r.Success, r.Created, nullString(r.Errors), r.SubmittedAt); err != nil {
			stmt.Close()
			return fmt.Errorf("copy audit row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush audit copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	return tx.Commit()
}

// Count returns the number of audit rows of object.
func (p *Postgres) Count(ctx context.Context, object string) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM salesforce_upsert_audit WHERE object = $1`, object).Scan(&n)
	return n, err
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// Open returns a Postgres sink when dsn is set and a Log sink otherwise.
// The returned func releases the sink.
func Open(ctx context.Context, dsn string, logger zerolog.Logger) (Sink, func(), error) {
	if dsn == "" {
		return Log{Logger: logger}, func() {}, nil
	}
	pg, err := OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return pg, func() { pg.Close() }, nil
}
