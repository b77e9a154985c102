package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pHo9UBenaA/majestic-million-feed/internal/records"
)

// Fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded operation invocation.
type Run struct {
	ID           string
	Operation    string
	StartedAt    time.Time
	Duration     time.Duration
	Status       string
	ErrorKind    string
	ErrorMessage string
	Summary      string
}

// Store persists operation history and the last saved domain snapshot.
type Store struct {
	db *sql.DB
}

func toNullString(value string) interface{} {
	if value != "" {
		return value
	}
	return nil
}

// NewStore opens (or creates) the database at dbPath and initializes the schema.
func NewStore(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS operation_run (
			id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT,
			error_message TEXT,
			summary TEXT
		);

		CREATE TABLE IF NOT EXISTS domain_snapshot (
			position INTEGER PRIMARY KEY,
			fields TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_operation_run_started_at ON operation_run(started_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// SaveRun records a run. An empty ID is replaced by a new UUID.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	query := `
		INSERT INTO operation_run (id, operation, started_at, duration_ms, status, error_kind, error_message, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			duration_ms = excluded.duration_ms,
			status = excluded.status,
			error_kind = excluded.error_kind,
			error_message = excluded.error_message,
			summary = excluded.summary
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Operation, r.StartedAt.UTC().Format(timeFormat), r.Duration.Milliseconds(), r.Status,
		toNullString(r.ErrorKind), toNullString(r.ErrorMessage), toNullString(r.Summary))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// ListRuns returns up to limit runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, operation, started_at, duration_ms, status,
			COALESCE(error_kind, ''), COALESCE(error_message, ''), COALESCE(summary, '')
		FROM operation_run
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(&r.ID, &r.Operation, &startedAt, &durationMS, &r.Status, &r.ErrorKind, &r.ErrorMessage, &r.Summary); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.StartedAt, err = time.Parse(timeFormat, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return runs, nil
}

// DeleteRunsOlderThan removes runs started before cutoff.
func (s *Store) DeleteRunsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM operation_run WHERE started_at < ?`, cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("delete old runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// SaveDomainSnapshot replaces the stored snapshot with recs, keeping row order.
func (s *Store) SaveDomainSnapshot(ctx context.Context, recs []records.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM domain_snapshot"); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO domain_snapshot (position, fields, saved_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	savedAt := time.Now().UTC().Format(timeFormat)
	for i, rec := range recs {
		fields, err := encodeFields(rec)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, fields, savedAt); err != nil {
			return fmt.Errorf("insert snapshot row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// LoadDomainSnapshot returns the stored snapshot in saved order.
func (s *Store) LoadDomainSnapshot(ctx context.Context) ([]records.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fields FROM domain_snapshot ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	recs := []records.Record{}
	for rows.Next() {
		var fields string
		if err := rows.Scan(&fields); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec, err := decodeFields(fields)
		if err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return recs, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Rows are stored as [[name, type, value], ...] so column order and cell types
// survive the round trip.
func encodeFields(rec records.Record) (string, error) {
	triples := make([][3]any, len(rec))
	for i, f := range rec {
		triples[i] = [3]any{f.Name, valueType(f.Value), f.Value}
	}
	data, err := json.Marshal(triples)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func valueType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case int64:
		return "int"
	case float64:
		return "float"
	default:
		return "string"
	}
}

func decodeFields(data string) (records.Record, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var triples [][3]any
	if err := dec.Decode(&triples); err != nil {
		return nil, err
	}

	rec := make(records.Record, len(triples))
	for i, t := range triples {
		name, ok := t[0].(string)
		if !ok {
			return nil, fmt.Errorf("column name %v is not a string", t[0])
		}
		typ, _ := t[1].(string)
		val, err := fromJSON(typ, t[2])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		rec[i] = records.Field{Name: name, Value: val}
	}
	return rec, nil
}

func fromJSON(typ string, v any) (any, error) {
	n, isNumber := v.(json.Number)
	switch {
	case typ == "int" && isNumber:
		return n.Int64()
	case typ == "float" && isNumber:
		return n.Float64()
	case isNumber:
		return n.String(), nil
	default:
		return v, nil
	}
}
