package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/policymesh/internal/service/audit"
)

const auditEventColumns = `id, request_id, decision, status, latency_ms,
	failure_category, prompt_hash, prompt_length, prompt_flags, created_at`

// InsertAuditEvent appends e and returns its generated id. The table is
// append-only; nothing in this package updates or deletes rows.
func (db *DB) InsertAuditEvent(ctx context.Context, e audit.Event) (int64, error) {
	var id int64
	err := db.pool.QueryRow(ctx,
		`INSERT INTO audit_events (
		     request_id, decision, status, latency_ms,
		     failure_category, prompt_hash, prompt_length, prompt_flags, created_at
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		e.RequestID, e.Decision, string(e.Status), e.LatencyMs,
		e.FailureCategory, e.PromptHash, e.PromptLength, e.PromptFlags, e.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("storage: insert audit event: %w", err)
	}
	return id, nil
}

// GetAuditEventByRequestID returns the earliest event recorded for
// requestID, or ErrNotFound.
func (db *DB) GetAuditEventByRequestID(ctx context.Context, requestID string) (audit.Event, error) {
	var (
		e      audit.Event
		status string
	)
	err := db.pool.QueryRow(ctx,
		`SELECT `+auditEventColumns+`
		 FROM audit_events
		 WHERE request_id = $1
		 ORDER BY id ASC
		 LIMIT 1`,
		requestID,
	).Scan(
		&e.ID, &e.RequestID, &e.Decision, &status, &e.LatencyMs,
		&e.FailureCategory, &e.PromptHash, &e.PromptLength, &e.PromptFlags, &e.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.Event{}, fmt.Errorf("storage: audit event %s: %w", requestID, ErrNotFound)
	}
	if err != nil {
		return audit.Event{}, fmt.Errorf("storage: get audit event: %w", err)
	}
	e.Status = audit.Status(status)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
