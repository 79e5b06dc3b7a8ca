package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashita-ai/policymesh/internal/service/audit"
)

// SQLiteStore is the embedded backend.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens the SQLite database at path (":memory:" for a private
// in-memory database).
func NewSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	// SQLite serialises writers, and each :memory: connection is a
	// separate database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: configure sqlite: %w", err)
	}
	return NewSQLiteFromDB(db, logger), nil
}

// NewSQLiteFromDB wraps an already-open *sql.DB.
func NewSQLiteFromDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, logger: logger}
}

// Backend reports BackendSQLite.
func (s *SQLiteStore) Backend() Backend {
	return BackendSQLite
}

// Ping checks that the database file is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLiteStore) Close(_ context.Context) {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("storage: close sqlite", "error", err)
	}
}

// RunMigrations applies unapplied files from migrationsFS in name order.
func (s *SQLiteStore) RunMigrations(ctx context.Context, migrationsFS fs.FS) error {
	return runMigrations(ctx, s, sqliteDialect, migrationsFS, s.logger)
}

func (s *SQLiteStore) execMigration(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteStore) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// InsertAuditEvent appends e and returns its generated id.
func (s *SQLiteStore) InsertAuditEvent(ctx context.Context, e audit.Event) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_events (
		     request_id, decision, status, latency_ms,
		     failure_category, prompt_hash, prompt_length, prompt_flags, created_at
		 )
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Decision, string(e.Status), e.LatencyMs,
		nullString(e.FailureCategory), nullString(e.PromptHash), nullInt(e.PromptLength), nullString(e.PromptFlags),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("storage: insert audit event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: insert audit event: last insert id: %w", err)
	}
	return id, nil
}

// GetAuditEventByRequestID returns the earliest event recorded for
// requestID, or ErrNotFound.
func (s *SQLiteStore) GetAuditEventByRequestID(ctx context.Context, requestID string) (audit.Event, error) {
	var (
		e               audit.Event
		status          string
		failureCategory sql.NullString
		promptHash      sql.NullString
		promptLength    sql.NullInt64
		promptFlags     sql.NullString
		createdAt       string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+auditEventColumns+`
		 FROM audit_events
		 WHERE request_id = ?
		 ORDER BY id ASC
		 LIMIT 1`,
		requestID,
	).Scan(
		&e.ID, &e.RequestID, &e.Decision, &status, &e.LatencyMs,
		&failureCategory, &promptHash, &promptLength, &promptFlags, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return audit.Event{}, fmt.Errorf("storage: audit event %s: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return audit.Event{}, fmt.Errorf("storage: get audit event: %w", err)
	}

	e.Status = audit.Status(status)
	e.FailureCategory = stringPtr(failureCategory)
	e.PromptHash = stringPtr(promptHash)
	e.PromptFlags = stringPtr(promptFlags)
	if promptLength.Valid {
		n := int(promptLength.Int64)
		e.PromptLength = &n
	}
	e.CreatedAt, err = parseSQLiteTime(createdAt)
	if err != nil {
		return audit.Event{}, fmt.Errorf("storage: get audit event: created_at: %w", err)
	}
	return e, nil
}

// parseSQLiteTime accepts RFC 3339 (what this package writes) and SQLite's
// CURRENT_TIMESTAMP format (rows written by other tools).
func parseSQLiteTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
