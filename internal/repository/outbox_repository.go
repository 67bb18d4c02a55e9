package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campuskit/helpdesk-service/internal/domain"
)

// OutboxRepository provides the append/claim queue backing at-least-once
// event delivery. Append is called inside command transactions; the claim and
// mark methods are exclusively used by the dispatcher.
type OutboxRepository interface {
	Append(ctx context.Context, entry *domain.OutboxEntry) error
	// ClaimDue atomically claims up to limit pending rows whose retry time has
	// come. A claim is a lease: the claimed row's next_retry_at is pushed past
	// the claim window so a competing dispatcher instance cannot re-select it
	// between the claim and the MarkProcessed/MarkFailed that follows. A row
	// claimed by a consumer that dies resurfaces after the lease without
	// consuming an attempt.
	ClaimDue(ctx context.Context, limit, maxAttempts int, now time.Time) ([]domain.OutboxEntry, error)
	MarkProcessed(ctx context.Context, id string, now time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, nextRetryAt time.Time, cause string) error
	// ListDeadLettered returns rows that exhausted their retry budget, for
	// operator inspection.
	ListDeadLettered(ctx context.Context, maxAttempts, limit int) ([]domain.OutboxEntry, error)
}

type outboxRepository struct {
	q Querier
}

func (r *outboxRepository) Append(ctx context.Context, entry *domain.OutboxEntry) error {
	const query = `
        INSERT INTO outbox_entries (event_type, payload)
        VALUES ($1,$2)
        RETURNING id, attempts, created_at`
	return r.q.QueryRow(ctx, query, entry.EventType, entry.Payload).
		Scan(&entry.ID, &entry.Attempts, &entry.CreatedAt)
}

// claimLease is how long a claimed outbox row stays invisible to other
// dispatcher instances. Must exceed the dispatcher's handler timeout.
const claimLease = time.Minute

func (r *outboxRepository) ClaimDue(ctx context.Context, limit, maxAttempts int, now time.Time) ([]domain.OutboxEntry, error) {
	const query = `
        UPDATE outbox_entries SET claimed_at=$1, next_retry_at=$4
        WHERE id IN (
            SELECT id FROM outbox_entries
            WHERE processed_at IS NULL
              AND attempts < $2
              AND (next_retry_at IS NULL OR next_retry_at <= $1)
            ORDER BY created_at
            LIMIT $3
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, event_type, payload, attempts, next_retry_at, processed_at, last_error, created_at`
	rows, err := r.q.Query(ctx, query, now, maxAttempts, limit, now.Add(claimLease))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOutboxEntries(rows)
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id string, now time.Time) error {
	const query = `UPDATE outbox_entries SET processed_at=$1 WHERE id=$2`
	cmd, err := r.q.Exec(ctx, query, now, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, attempts int, nextRetryAt time.Time, cause string) error {
	const query = `
        UPDATE outbox_entries SET attempts=$1, next_retry_at=$2, last_error=$3
        WHERE id=$4`
	cmd, err := r.q.Exec(ctx, query, attempts, nextRetryAt, cause, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *outboxRepository) ListDeadLettered(ctx context.Context, maxAttempts, limit int) ([]domain.OutboxEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, event_type, payload, attempts, next_retry_at, processed_at, last_error, created_at
        FROM outbox_entries
        WHERE processed_at IS NULL AND attempts >= $1
        ORDER BY created_at LIMIT $2`
	rows, err := r.q.Query(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOutboxEntries(rows)
}

func scanOutboxEntries(rows pgx.Rows) ([]domain.OutboxEntry, error) {
	var result []domain.OutboxEntry
	for rows.Next() {
		var e domain.OutboxEntry
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.Attempts, &e.NextRetryAt, &e.ProcessedAt, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
