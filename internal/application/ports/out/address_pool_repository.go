package out

import (
	"context"
	"time"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

// AddressPoolRepository is the durable pool store. All status mutation goes
// through the pool use cases; no other component writes these rows.
type AddressPoolRepository interface {
	// AllocateOldestAvailable atomically claims the longest-idle available
	// address (oldest last_released_at, never-used first, ties by insertion
	// order) whose cooldown has lapsed, transitions it to assigned and binds
	// it to the deposit. Returns a pool_exhausted error when no candidate
	// exists. Concurrent callers never receive the same address.
	AllocateOldestAvailable(ctx context.Context, depositID string, now time.Time) (dto.AllocatedAddress, *apperrors.AppError)

	// MarkMonitoring advances assigned -> monitoring. Returns false when the
	// address was not in the expected status.
	MarkMonitoring(ctx context.Context, address string) (bool, *apperrors.AppError)

	// BeginCooldown ends the active assignment: parks the address in cooldown
	// until the given instant. The deposit binding is kept for event
	// attribution and is cleared on release.
	BeginCooldown(ctx context.Context, address string, until time.Time) (bool, *apperrors.AppError)

	// Release transitions cooldown -> available and stamps last_released_at.
	// Returns a not_assigned conflict error when the address is not in
	// cooldown.
	Release(ctx context.Context, address string, now time.Time) *apperrors.AppError

	// ReleaseCooldownLapsed releases every address whose cooldown has lapsed,
	// clearing the deposit binding and stamping last_released_at.
	ReleaseCooldownLapsed(ctx context.Context, now time.Time) ([]dto.ReleasedAddress, *apperrors.AppError)

	// RecoverStuckAssignments parks into cooldown any address still bound to
	// a deposit that has already reached a terminal state.
	RecoverStuckAssignments(ctx context.Context, now time.Time, cooldown time.Duration) (int, *apperrors.AppError)

	// InsertAvailable adds new addresses as available, skipping duplicates.
	InsertAvailable(ctx context.Context, addresses []string, now time.Time) (added int, skipped int, appErr *apperrors.AppError)

	Counts(ctx context.Context, now time.Time) (dto.PoolCounts, *apperrors.AppError)

	// ReserveDerivationIndexes atomically advances the HD generation cursor
	// by count and returns the first reserved index. Reserved indexes are
	// never handed out twice, even across restarts.
	ReserveDerivationIndexes(ctx context.Context, count int) (uint32, *apperrors.AppError)
}
