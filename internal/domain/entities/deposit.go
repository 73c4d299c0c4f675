package entities

import (
	"time"

	valueobjects "depositgate/internal/domain/value_objects"
	apperrors "depositgate/internal/shared_kernel/errors"
)

// DepositRequest is a payment request bound to exactly one pool address for
// its lifetime. State and confirmations are mutated only by the deposit
// monitor; both are monotonic.
type DepositRequest struct {
	ID                     string
	AmountMinor            string
	Asset                  string
	Address                string
	State                  valueobjects.DepositState
	ConfirmationsObserved  int
	LastCheckedBlockHeight int64
	CreatedAt              time.Time
	ExpiresAt              time.Time
}

type NewDepositRequestInput struct {
	ID          string
	AmountMinor string
	Asset       string
	Address     string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

func NewPendingDepositRequest(input NewDepositRequestInput) (DepositRequest, *apperrors.AppError) {
	if input.ID == "" {
		return DepositRequest{}, apperrors.NewInternal(
			"deposit_id_missing",
			"deposit request id is required",
			nil,
		)
	}
	if input.Address == "" {
		return DepositRequest{}, apperrors.NewInternal(
			"deposit_address_missing",
			"deposit request address is required",
			nil,
		)
	}

	amountMinor, appErr := valueobjects.NormalizeAmountMinor(input.AmountMinor)
	if appErr != nil {
		return DepositRequest{}, appErr
	}

	if !input.ExpiresAt.After(input.CreatedAt) {
		return DepositRequest{}, apperrors.NewValidation(
			"invalid_request",
			"expires_at must be greater than created_at",
			map[string]any{"field": "expires_at"},
		)
	}

	return DepositRequest{
		ID:          input.ID,
		AmountMinor: amountMinor,
		Asset:       input.Asset,
		Address:     input.Address,
		State:       valueobjects.NewPendingDepositState(),
		CreatedAt:   input.CreatedAt.UTC(),
		ExpiresAt:   input.ExpiresAt.UTC(),
	}, nil
}

// ApplyConfirmations raises the observed confirmation count, never lowers it.
func (d *DepositRequest) ApplyConfirmations(observed int) {
	if observed > d.ConfirmationsObserved {
		d.ConfirmationsObserved = observed
	}
}

// Expired reports whether the request's window has lapsed without a terminal
// transition.
func (d DepositRequest) Expired(now time.Time) bool {
	return !d.State.IsTerminal() && now.After(d.ExpiresAt)
}
