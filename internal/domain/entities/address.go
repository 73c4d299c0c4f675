package entities

import (
	"time"

	valueobjects "depositgate/internal/domain/value_objects"
	apperrors "depositgate/internal/shared_kernel/errors"
)

// PoolAddress is one blockchain address in the deposit pool. The address
// string is its identity and never changes; everything else tracks the
// current assignment cycle.
type PoolAddress struct {
	Address           string
	Status            valueobjects.AddressStatus
	AssignedDepositID *string
	AssignedAt        *time.Time
	LastReleasedAt    *time.Time
	CooldownUntil     *time.Time
	UsageCount        int64
	CreatedAt         time.Time
}

func NewAvailableAddress(address string, createdAt time.Time) (PoolAddress, *apperrors.AppError) {
	normalized, appErr := valueobjects.NormalizeChainAddress(address)
	if appErr != nil {
		return PoolAddress{}, appErr
	}

	return PoolAddress{
		Address:   normalized,
		Status:    valueobjects.AddressStatusAvailable,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// Assignable reports whether the address may be handed out at the given
// instant. Cooldown guards against late-arriving chain data for the previous
// assignment.
func (a PoolAddress) Assignable(now time.Time) bool {
	if a.Status != valueobjects.AddressStatusAvailable {
		return false
	}
	if a.AssignedDepositID != nil {
		return false
	}
	if a.CooldownUntil != nil && a.CooldownUntil.After(now) {
		return false
	}
	return true
}
