package deposit

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"depositgate/internal/application/dto"
	portsout "depositgate/internal/application/ports/out"
	"depositgate/internal/domain/entities"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type Repository struct {
	db *sql.DB
}

var _ portsout.DepositRepository = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, deposit entities.DepositRequest) *apperrors.AppError {
	const query = `
INSERT INTO app.deposit_requests (
  id, amount_minor, asset, address, state,
  confirmations_observed, last_checked_block_height,
  next_poll_at, poll_backoff_seconds,
  created_at, expires_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $10)
`
	_, err := r.db.ExecContext(
		ctx,
		query,
		deposit.ID,
		deposit.AmountMinor,
		deposit.Asset,
		deposit.Address,
		deposit.State.String(),
		deposit.ConfirmationsObserved,
		deposit.LastCheckedBlockHeight,
		deposit.CreatedAt.UTC(),
		0,
		deposit.CreatedAt.UTC(),
		deposit.ExpiresAt.UTC(),
	)
	if err != nil {
		return apperrors.NewInternal(
			"deposit_insert_failed",
			"failed to insert deposit request",
			map[string]any{"error": err.Error()},
		)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (dto.DepositResource, bool, *apperrors.AppError) {
	const query = `
SELECT
  id, address, amount_minor::text, asset, state,
  confirmations_observed, created_at, expires_at
FROM app.deposit_requests
WHERE id = $1
`
	resource := dto.DepositResource{}
	err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(id)).Scan(
		&resource.ID,
		&resource.Address,
		&resource.AmountMinor,
		&resource.Asset,
		&resource.State,
		&resource.ConfirmationsObserved,
		&resource.CreatedAt,
		&resource.ExpiresAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return dto.DepositResource{}, false, nil
	}
	if err != nil {
		return dto.DepositResource{}, false, apperrors.NewInternal(
			"deposit_query_failed",
			"failed to read deposit request",
			map[string]any{"error": err.Error()},
		)
	}
	return resource, true, nil
}

func (r *Repository) ClaimMonitorable(
	ctx context.Context,
	now time.Time,
	limit int,
	leaseOwner string,
	leaseUntil time.Time,
) ([]dto.MonitorableDeposit, *apperrors.AppError) {
	const query = `
WITH candidates AS (
  SELECT id
  FROM app.deposit_requests
  WHERE state IN ('pending', 'partially_confirmed')
    AND next_poll_at <= $1
    AND (lease_until IS NULL OR lease_until <= $1)
  ORDER BY next_poll_at ASC, id ASC
  LIMIT $2
  FOR UPDATE SKIP LOCKED
)
UPDATE app.deposit_requests AS d
SET
  lease_owner = $3,
  lease_until = $4,
  updated_at = $1
FROM candidates
WHERE d.id = candidates.id
RETURNING
  d.id,
  d.address,
  d.amount_minor::text,
  d.asset,
  d.state,
  d.confirmations_observed,
  d.last_checked_block_height,
  d.poll_backoff_seconds,
  d.expires_at
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
			"deposit_claim_failed",
			"failed to claim monitorable deposits",
			map[string]any{"error": err.Error()},
		)
	}
	defer rows.Close()

	items := make([]dto.MonitorableDeposit, 0, limit)
	for rows.Next() {
		item := dto.MonitorableDeposit{}
		if err := rows.Scan(
			&item.ID,
			&item.Address,
			&item.AmountMinor,
			&item.Asset,
			&item.State,
			&item.ConfirmationsObserved,
			&item.LastCheckedBlockHeight,
			&item.PollBackoffSeconds,
			&item.ExpiresAt,
		); err != nil {
			return nil, apperrors.NewInternal(
				"deposit_claim_failed",
				"failed to parse claimed deposit",
				map[string]any{"error": err.Error()},
			)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternal(
			"deposit_claim_failed",
			"failed while iterating claimed deposits",
			map[string]any{"error": err.Error()},
		)
	}

	return items, nil
}

// ApplyObservation records the transfer idempotently on (deposit_id, tx_hash)
// and raises the deposit's confirmation count, never lowering it. The xmax
// trick distinguishes a fresh insert from a conflict update.
func (r *Repository) ApplyObservation(
	ctx context.Context,
	depositID string,
	observation entities.ChainObservation,
	advanceHeight bool,
) (dto.ApplyObservationResult, *apperrors.AppError) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dto.ApplyObservationResult{}, apperrors.NewInternal(
			"deposit_observation_failed",
			"failed to begin observation transaction",
			map[string]any{"error": err.Error()},
		)
	}
	defer func() { _ = tx.Rollback() }()

	const insertQuery = `
INSERT INTO app.deposit_observations (
  deposit_id, tx_hash, amount_minor, block_height, confirmations, observed_at
) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (deposit_id, tx_hash) DO UPDATE
SET
  confirmations = GREATEST(app.deposit_observations.confirmations, EXCLUDED.confirmations),
  observed_at = EXCLUDED.observed_at
RETURNING (xmax = 0)
`
	var inserted bool
	if err := tx.QueryRowContext(
		ctx,
		insertQuery,
		strings.TrimSpace(depositID),
		observation.TxHash,
		observation.AmountMinor,
		observation.BlockHeight,
		observation.Confirmations,
		observation.ObservedAt.UTC(),
	).Scan(&inserted); err != nil {
		return dto.ApplyObservationResult{}, apperrors.NewInternal(
			"deposit_observation_failed",
			"failed to record chain observation",
			map[string]any{"error": err.Error()},
		)
	}

	updateQuery := `
UPDATE app.deposit_requests
SET
  confirmations_observed = GREATEST(confirmations_observed, $2),
  updated_at = now()
WHERE id = $1
RETURNING confirmations_observed
`
	if advanceHeight {
		updateQuery = `
UPDATE app.deposit_requests
SET
  confirmations_observed = GREATEST(confirmations_observed, $2),
  last_checked_block_height = GREATEST(last_checked_block_height, $3),
  updated_at = now()
WHERE id = $1
RETURNING confirmations_observed
`
	}

	var confirmations int
	args := []any{strings.TrimSpace(depositID), observation.Confirmations}
	if advanceHeight {
		args = append(args, observation.BlockHeight)
	}
	if err := tx.QueryRowContext(ctx, updateQuery, args...).Scan(&confirmations); err != nil {
		return dto.ApplyObservationResult{}, apperrors.NewInternal(
			"deposit_observation_failed",
			"failed to raise deposit confirmations",
			map[string]any{"error": err.Error()},
		)
	}

	if err := tx.Commit(); err != nil {
		return dto.ApplyObservationResult{}, apperrors.NewInternal(
			"deposit_observation_failed",
			"failed to commit observation transaction",
			map[string]any{"error": err.Error()},
		)
	}

	return dto.ApplyObservationResult{Applied: inserted, ConfirmationsObserved: confirmations}, nil
}

func (r *Repository) TransitionStateIfCurrent(
	ctx context.Context,
	id string,
	currentState string,
	nextState string,
	now time.Time,
	leaseOwner string,
) (bool, *apperrors.AppError) {
	const query = `
UPDATE app.deposit_requests
SET
  state = $3,
  state_changed_at = $4,
  updated_at = $4
WHERE id = $1
  AND state = $2
  AND (lease_owner IS NULL OR lease_owner = $5)
`
	result, err := r.db.ExecContext(
		ctx,
		query,
		strings.TrimSpace(id),
		currentState,
		nextState,
		now.UTC(),
		strings.TrimSpace(leaseOwner),
	)
	if err != nil {
		return false, apperrors.NewInternal(
			"deposit_transition_failed",
			"failed to transition deposit state",
			map[string]any{"error": err.Error()},
		)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternal(
			"deposit_transition_failed",
			"failed to read transitioned row count",
			map[string]any{"error": err.Error()},
		)
	}
	return affected > 0, nil
}

func (r *Repository) SchedulePoll(
	ctx context.Context,
	id string,
	schedule dto.PollSchedule,
	leaseOwner string,
) *apperrors.AppError {
	const query = `
UPDATE app.deposit_requests
SET
  next_poll_at = $2,
  poll_backoff_seconds = $3,
  lease_owner = NULL,
  lease_until = NULL,
  updated_at = now()
WHERE id = $1
  AND (lease_owner IS NULL OR lease_owner = $4)
`
	_, err := r.db.ExecContext(
		ctx,
		query,
		strings.TrimSpace(id),
		schedule.NextPollAt.UTC(),
		schedule.PollBackoffSeconds,
		strings.TrimSpace(leaseOwner),
	)
	if err != nil {
		return apperrors.NewInternal(
			"deposit_schedule_failed",
			"failed to schedule next poll",
			map[string]any{"error": err.Error()},
		)
	}
	return nil
}
