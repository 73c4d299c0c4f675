package addresspool

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"depositgate/internal/application/dto"
	portsout "depositgate/internal/application/ports/out"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type Repository struct {
	db *sql.DB
}

var _ portsout.AddressPoolRepository = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AllocateOldestAvailable claims exactly one row under SKIP LOCKED so
// concurrent allocators never collide. Never-released addresses sort first,
// then the longest-idle ones.
func (r *Repository) AllocateOldestAvailable(
	ctx context.Context,
	depositID string,
	now time.Time,
) (dto.AllocatedAddress, *apperrors.AppError) {
	const query = `
WITH candidate AS (
  SELECT address
  FROM app.pool_addresses
  WHERE status = 'available'
    AND (cooldown_until IS NULL OR cooldown_until <= $2)
  ORDER BY last_released_at ASC NULLS FIRST, created_at ASC, address ASC
  LIMIT 1
  FOR UPDATE SKIP LOCKED
)
UPDATE app.pool_addresses AS p
SET
  status = 'assigned',
  assigned_deposit_id = $1,
  assigned_at = $2,
  cooldown_until = NULL,
  usage_count = usage_count + 1,
  updated_at = $2
FROM candidate
WHERE p.address = candidate.address
RETURNING p.address, p.assigned_at, p.usage_count
`

	allocation := dto.AllocatedAddress{}
	err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(depositID), now.UTC()).Scan(
		&allocation.Address,
		&allocation.AssignedAt,
		&allocation.UsageCount,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return dto.AllocatedAddress{}, apperrors.NewExhausted(
			"pool_exhausted",
			"no deposit address is currently available",
			nil,
		)
	}
	if err != nil {
		return dto.AllocatedAddress{}, apperrors.NewInternal(
			"pool_allocate_failed",
			"failed to allocate a deposit address",
			map[string]any{"error": err.Error()},
		)
	}

	return allocation, nil
}

func (r *Repository) MarkMonitoring(ctx context.Context, address string) (bool, *apperrors.AppError) {
	const query = `
UPDATE app.pool_addresses
SET status = 'monitoring', updated_at = now()
WHERE address = $1
  AND status = 'assigned'
`
	return r.execRowsAffected(ctx, query, strings.TrimSpace(address))
}

func (r *Repository) BeginCooldown(ctx context.Context, address string, until time.Time) (bool, *apperrors.AppError) {
	const query = `
UPDATE app.pool_addresses
SET
  status = 'cooldown',
  cooldown_until = $2,
  assigned_at = NULL,
  updated_at = now()
WHERE address = $1
  AND status IN ('assigned', 'monitoring')
`
	return r.execRowsAffected(ctx, query, strings.TrimSpace(address), until.UTC())
}

func (r *Repository) Release(ctx context.Context, address string, now time.Time) *apperrors.AppError {
	const query = `
UPDATE app.pool_addresses
SET
  status = 'available',
  assigned_deposit_id = NULL,
  cooldown_until = NULL,
  last_released_at = $2,
  updated_at = $2
WHERE address = $1
  AND status = 'cooldown'
`
	updated, appErr := r.execRowsAffected(ctx, query, strings.TrimSpace(address), now.UTC())
	if appErr != nil {
		return appErr
	}
	if !updated {
		return apperrors.NewConflict(
			"not_assigned",
			"address is not in cooldown",
			map[string]any{"address": address},
		)
	}
	return nil
}

func (r *Repository) ReleaseCooldownLapsed(ctx context.Context, now time.Time) ([]dto.ReleasedAddress, *apperrors.AppError) {
	const query = `
WITH lapsed AS (
  SELECT address, assigned_deposit_id
  FROM app.pool_addresses
  WHERE status = 'cooldown'
    AND cooldown_until <= $1
  FOR UPDATE SKIP LOCKED
)
UPDATE app.pool_addresses AS p
SET
  status = 'available',
  assigned_deposit_id = NULL,
  cooldown_until = NULL,
  last_released_at = $1,
  updated_at = $1
FROM lapsed
WHERE p.address = lapsed.address
RETURNING p.address, COALESCE(lapsed.assigned_deposit_id, '')
`
	rows, err := r.db.QueryContext(ctx, query, now.UTC())
	if err != nil {
		return nil, apperrors.NewInternal(
			"pool_release_failed",
			"failed to release cooldown addresses",
			map[string]any{"error": err.Error()},
		)
	}
	defer rows.Close()

	released := []dto.ReleasedAddress{}
	for rows.Next() {
		entry := dto.ReleasedAddress{}
		if err := rows.Scan(&entry.Address, &entry.DepositID); err != nil {
			return nil, apperrors.NewInternal(
				"pool_release_failed",
				"failed to parse released address row",
				map[string]any{"error": err.Error()},
			)
		}
		released = append(released, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternal(
			"pool_release_failed",
			"failed while iterating released addresses",
			map[string]any{"error": err.Error()},
		)
	}

	return released, nil
}

// RecoverStuckAssignments parks any address still holding a terminal deposit.
// Crash between the deposit transition and the pool update leaves this shape
// behind; the keeper heals it.
func (r *Repository) RecoverStuckAssignments(
	ctx context.Context,
	now time.Time,
	cooldown time.Duration,
) (int, *apperrors.AppError) {
	const query = `
UPDATE app.pool_addresses AS p
SET
  status = 'cooldown',
  cooldown_until = $2,
  assigned_at = NULL,
  updated_at = $1
FROM app.deposit_requests AS d
WHERE p.assigned_deposit_id = d.id
  AND p.status IN ('assigned', 'monitoring')
  AND d.state IN ('confirmed', 'expired', 'failed')
`
	result, err := r.db.ExecContext(ctx, query, now.UTC(), now.UTC().Add(cooldown))
	if err != nil {
		return 0, apperrors.NewInternal(
			"pool_recover_failed",
			"failed to recover stuck assignments",
			map[string]any{"error": err.Error()},
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternal(
			"pool_recover_failed",
			"failed to read recovered row count",
			map[string]any{"error": err.Error()},
		)
	}
	return int(affected), nil
}

func (r *Repository) InsertAvailable(
	ctx context.Context,
	addresses []string,
	now time.Time,
) (int, int, *apperrors.AppError) {
	const query = `
INSERT INTO app.pool_addresses (address, status, created_at, updated_at)
SELECT unnest($1::text[]), 'available', $2, $2
ON CONFLICT (address) DO NOTHING
`
	result, err := r.db.ExecContext(ctx, query, addresses, now.UTC())
	if err != nil {
		return 0, 0, apperrors.NewInternal(
			"pool_insert_failed",
			"failed to insert pool addresses",
			map[string]any{"error": err.Error()},
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, 0, apperrors.NewInternal(
			"pool_insert_failed",
			"failed to read inserted row count",
			map[string]any{"error": err.Error()},
		)
	}
	added := int(affected)
	return added, len(addresses) - added, nil
}

func (r *Repository) Counts(ctx context.Context, _ time.Time) (dto.PoolCounts, *apperrors.AppError) {
	const query = `
SELECT
  count(*),
  count(*) FILTER (WHERE status = 'available'),
  count(*) FILTER (WHERE status = 'assigned'),
  count(*) FILTER (WHERE status = 'monitoring'),
  count(*) FILTER (WHERE status = 'cooldown')
FROM app.pool_addresses
`
	counts := dto.PoolCounts{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&counts.Total,
		&counts.Available,
		&counts.Assigned,
		&counts.Monitoring,
		&counts.Cooldown,
	)
	if err != nil {
		return dto.PoolCounts{}, apperrors.NewInternal(
			"pool_counts_failed",
			"failed to read pool counts",
			map[string]any{"error": err.Error()},
		)
	}
	return counts, nil
}

func (r *Repository) ReserveDerivationIndexes(ctx context.Context, count int) (uint32, *apperrors.AppError) {
	const query = `
UPDATE app.derivation_cursor
SET next_index = next_index + $1
WHERE id = TRUE
RETURNING next_index - $1
`
	var first int64
	if err := r.db.QueryRowContext(ctx, query, count).Scan(&first); err != nil {
		return 0, apperrors.NewInternal(
			"derivation_cursor_failed",
			"failed to reserve derivation indexes",
			map[string]any{"error": err.Error()},
		)
	}
	return uint32(first), nil
}

func (r *Repository) execRowsAffected(ctx context.Context, query string, args ...any) (bool, *apperrors.AppError) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternal(
			"pool_update_failed",
			"failed to update pool address",
			map[string]any{"error": err.Error()},
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternal(
			"pool_update_failed",
			"failed to read updated row count",
			map[string]any{"error": err.Error()},
		)
	}
	return affected > 0, nil
}
