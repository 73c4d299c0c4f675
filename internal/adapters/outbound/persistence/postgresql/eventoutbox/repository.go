package eventoutbox

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"depositgate/internal/application/dto"
	portsout "depositgate/internal/application/ports/out"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type Repository struct {
	db          *sql.DB
	maxAttempts int
}

var _ portsout.EventOutboxRepository = (*Repository)(nil)

func NewRepository(db *sql.DB, maxAttempts int) *Repository {
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	return &Repository{db: db, maxAttempts: maxAttempts}
}

// Enqueue is the exactly-once guard: the (deposit_id, event_type) unique
// constraint absorbs a monitor re-run after a crash.
func (r *Repository) Enqueue(ctx context.Context, command dto.EnqueueEventCommand) (bool, *apperrors.AppError) {
	const query = `
INSERT INTO app.deposit_events (
  event_id, event_type, deposit_id, payload,
  delivery_status, attempts, max_attempts,
  next_attempt_at, created_at, updated_at
) VALUES ($1, $2, $3, $4, 'pending', 0, $5, $6, $6, $6)
ON CONFLICT (deposit_id, event_type) DO NOTHING
`
	result, err := r.db.ExecContext(
		ctx,
		query,
		command.EventID,
		command.EventType,
		command.DepositID,
		command.Payload,
		r.maxAttempts,
		command.Now.UTC(),
	)
	if err != nil {
		return false, apperrors.NewInternal(
			"event_enqueue_failed",
			"failed to enqueue deposit event",
			map[string]any{"error": err.Error()},
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternal(
			"event_enqueue_failed",
			"failed to read enqueued row count",
			map[string]any{"error": err.Error()},
		)
	}
	return affected > 0, nil
}

func (r *Repository) ClaimPending(
	ctx context.Context,
	now time.Time,
	limit int,
	leaseOwner string,
	leaseUntil time.Time,
) ([]dto.PendingOutboxEvent, *apperrors.AppError) {
	const query = `
WITH candidates AS (
  SELECT id
  FROM app.deposit_events
  WHERE delivery_status = 'pending'
    AND next_attempt_at <= $1
    AND (lease_until IS NULL OR lease_until <= $1)
  ORDER BY created_at ASC, id ASC
  LIMIT $2
  FOR UPDATE SKIP LOCKED
)
UPDATE app.deposit_events AS e
SET
  lease_owner = $3,
  lease_until = $4,
  updated_at = $1
FROM candidates
WHERE e.id = candidates.id
RETURNING
  e.id,
  e.event_id,
  e.event_type,
  e.deposit_id,
  e.payload,
  e.attempts,
  e.max_attempts
`
	rows, err := r.db.QueryContext(
		ctx,
		query,
		now.UTC(),
		limit,
		strings.TrimSpace(leaseOwner),
		leaseUntil.UTC(),
	)
	if err != nil {
		return nil, apperrors.NewInternal(
			"event_claim_failed",
			"failed to claim pending events",
			map[string]any{"error": err.Error()},
		)
	}
	defer rows.Close()

	items := make([]dto.PendingOutboxEvent, 0, limit)
	for rows.Next() {
		item := dto.PendingOutboxEvent{}
		if err := rows.Scan(
			&item.ID,
			&item.EventID,
			&item.EventType,
			&item.DepositID,
			&item.Payload,
			&item.Attempts,
			&item.MaxAttempts,
		); err != nil {
			return nil, apperrors.NewInternal(
				"event_claim_failed",
				"failed to parse claimed event",
				map[string]any{"error": err.Error()},
			)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternal(
			"event_claim_failed",
			"failed while iterating claimed events",
			map[string]any{"error": err.Error()},
		)
	}

	return items, nil
}

func (r *Repository) MarkDelivered(
	ctx context.Context,
	id int64,
	leaseOwner string,
	deliveredAt time.Time,
) (bool, *apperrors.AppError) {
	const query = `
UPDATE app.deposit_events
SET
  delivery_status = 'delivered',
  delivered_at = $3,
  last_error = NULL,
  lease_owner = NULL,
  lease_until = NULL,
  updated_at = $3
WHERE id = $1
  AND delivery_status = 'pending'
  AND (lease_owner IS NULL OR lease_owner = $2)
`
	return r.execRowsAffected(ctx, query, id, strings.TrimSpace(leaseOwner), deliveredAt.UTC())
}

func (r *Repository) MarkRetry(
	ctx context.Context,
	id int64,
	leaseOwner string,
	nextAttemptAt time.Time,
	lastError string,
) (bool, *apperrors.AppError) {
	const query = `
UPDATE app.deposit_events
SET
  attempts = attempts + 1,
  next_attempt_at = $3,
  last_error = $4,
  lease_owner = NULL,
  lease_until = NULL,
  updated_at = now()
WHERE id = $1
  AND delivery_status = 'pending'
  AND (lease_owner IS NULL OR lease_owner = $2)
`
	return r.execRowsAffected(ctx, query, id, strings.TrimSpace(leaseOwner), nextAttemptAt.UTC(), strings.TrimSpace(lastError))
}

func (r *Repository) MarkFailed(
	ctx context.Context,
	id int64,
	leaseOwner string,
	failedAt time.Time,
	lastError string,
) (bool, *apperrors.AppError) {
	const query = `
UPDATE app.deposit_events
SET
  delivery_status = 'failed',
  attempts = attempts + 1,
  last_error = $4,
  lease_owner = NULL,
  lease_until = NULL,
  updated_at = $3
WHERE id = $1
  AND delivery_status = 'pending'
  AND (lease_owner IS NULL OR lease_owner = $2)
`
	return r.execRowsAffected(ctx, query, id, strings.TrimSpace(leaseOwner), failedAt.UTC(), strings.TrimSpace(lastError))
}

func (r *Repository) execRowsAffected(ctx context.Context, query string, args ...any) (bool, *apperrors.AppError) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternal(
			"event_update_failed",
			"failed to update deposit event",
			map[string]any{"error": err.Error()},
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternal(
			"event_update_failed",
			"failed to read updated event count",
			map[string]any{"error": err.Error()},
		)
	}
	return affected > 0, nil
}
