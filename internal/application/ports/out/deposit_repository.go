package out

import (
	"context"
	"time"

	"depositgate/internal/application/dto"
	"depositgate/internal/domain/entities"
	apperrors "depositgate/internal/shared_kernel/errors"
)

// DepositRepository persists deposit requests. State and confirmation
// mutation is reserved to the deposit monitor use case.
type DepositRepository interface {
	Create(ctx context.Context, deposit entities.DepositRequest) *apperrors.AppError

	GetByID(ctx context.Context, id string) (dto.DepositResource, bool, *apperrors.AppError)

	// ClaimMonitorable leases a batch of non-terminal deposits due for a poll
	// (next_poll_at <= now, lease free), oldest first. Claimed rows are
	// invisible to other workers until the lease lapses.
	ClaimMonitorable(
		ctx context.Context,
		now time.Time,
		limit int,
		leaseOwner string,
		leaseUntil time.Time,
	) ([]dto.MonitorableDeposit, *apperrors.AppError)

	// ApplyObservation records a chain observation idempotently keyed by
	// transaction hash and raises confirmations_observed with max semantics.
	// Re-applying the same hash refreshes the confirmation count but reports
	// Applied=false. When advanceHeight is set the deposit's
	// last_checked_block_height moves up to the observation's block height
	// (monotonically); callers set it once an observation has reached the
	// confirmation threshold so still-maturing transfers stay in the fetch
	// window.
	ApplyObservation(
		ctx context.Context,
		depositID string,
		observation entities.ChainObservation,
		advanceHeight bool,
	) (dto.ApplyObservationResult, *apperrors.AppError)

	// TransitionStateIfCurrent applies an optimistic state transition guarded
	// by the caller's view of the current state. Returns false when another
	// writer got there first.
	TransitionStateIfCurrent(
		ctx context.Context,
		id string,
		currentState string,
		nextState string,
		now time.Time,
		leaseOwner string,
	) (bool, *apperrors.AppError)

	// SchedulePoll stores the next poll instant and backoff for the deposit
	// and releases the worker's lease.
	SchedulePoll(
		ctx context.Context,
		id string,
		schedule dto.PollSchedule,
		leaseOwner string,
	) *apperrors.AppError
}
