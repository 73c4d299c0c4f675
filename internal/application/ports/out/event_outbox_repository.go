package out

import (
	"context"
	"time"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

// EventOutboxRepository is the durable transition-event queue. Enqueue
// deduplicates on (deposit_id, event_type) so a monitor re-run after a crash
// never records the same transition twice; delivery downstream is
// at-least-once.
type EventOutboxRepository interface {
	// Enqueue inserts the event, returning false when the transition was
	// already recorded.
	Enqueue(ctx context.Context, command dto.EnqueueEventCommand) (bool, *apperrors.AppError)

	ClaimPending(
		ctx context.Context,
		now time.Time,
		limit int,
		leaseOwner string,
		leaseUntil time.Time,
	) ([]dto.PendingOutboxEvent, *apperrors.AppError)

	MarkDelivered(ctx context.Context, id int64, leaseOwner string, deliveredAt time.Time) (bool, *apperrors.AppError)

	MarkRetry(
		ctx context.Context,
		id int64,
		leaseOwner string,
		nextAttemptAt time.Time,
		lastError string,
	) (bool, *apperrors.AppError)

	MarkFailed(ctx context.Context, id int64, leaseOwner string, failedAt time.Time, lastError string) (bool, *apperrors.AppError)
}
