package use_cases

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
	portsout "depositgate/internal/application/ports/out"
	"depositgate/internal/domain/entities"
	valueobjects "depositgate/internal/domain/value_objects"
	apperrors "depositgate/internal/shared_kernel/errors"
)

// RequestDepositPolicy carries the operator-facing knobs for deposit
// creation. None of them have hidden defaults; the config layer validates
// them before wiring.
type RequestDepositPolicy struct {
	ExpiryDuration        time.Duration
	ConfirmationThreshold int
	MinAmountMinor        string
	MaxAmountMinor        string
	Asset                 string
}

type requestDepositUseCase struct {
	pool     portsout.AddressPoolRepository
	deposits portsout.DepositRepository
	outbox   portsout.EventOutboxRepository
	clock    Clock
	ids      IDGenerator
	policy   RequestDepositPolicy
}

func NewRequestDepositUseCase(
	pool portsout.AddressPoolRepository,
	deposits portsout.DepositRepository,
	outbox portsout.EventOutboxRepository,
	clock Clock,
	ids IDGenerator,
	policy RequestDepositPolicy,
) portsin.RequestDepositUseCase {
	return &requestDepositUseCase{
		pool:     pool,
		deposits: deposits,
		outbox:   outbox,
		clock:    clock,
		ids:      ids,
		policy:   policy,
	}
}

func (u *requestDepositUseCase) Execute(ctx context.Context, command dto.RequestDepositCommand) (dto.RequestDepositOutput, *apperrors.AppError) {
	if u.pool == nil || u.deposits == nil || u.outbox == nil {
		return dto.RequestDepositOutput{}, apperrors.NewInternal(
			"request_deposit_dependencies_missing",
			"address pool, deposit repository and event outbox are required",
			nil,
		)
	}

	amountMinor, appErr := valueobjects.NormalizeAmountMinor(command.AmountMinor)
	if appErr != nil {
		return dto.RequestDepositOutput{}, appErr
	}
	if appErr := u.checkAmountBounds(amountMinor); appErr != nil {
		return dto.RequestDepositOutput{}, appErr
	}

	asset := strings.ToUpper(strings.TrimSpace(command.Asset))
	if asset == "" || asset != strings.ToUpper(u.policy.Asset) {
		return dto.RequestDepositOutput{}, apperrors.NewValidation(
			"asset_unsupported",
			"requested asset is not supported",
			map[string]any{"asset": command.Asset, "supported": u.policy.Asset},
		)
	}

	now := u.clock.NowUTC()
	depositID := u.ids.NewID()

	allocation, appErr := u.pool.AllocateOldestAvailable(ctx, depositID, now)
	if appErr != nil {
		return dto.RequestDepositOutput{}, appErr
	}

	deposit, appErr := entities.NewPendingDepositRequest(entities.NewDepositRequestInput{
		ID:          depositID,
		AmountMinor: amountMinor,
		Asset:       asset,
		Address:     allocation.Address,
		CreatedAt:   now,
		ExpiresAt:   now.Add(u.policy.ExpiryDuration),
	})
	if appErr != nil {
		u.unwindAllocation(ctx, allocation.Address, now)
		return dto.RequestDepositOutput{}, appErr
	}

	if appErr := u.deposits.Create(ctx, deposit); appErr != nil {
		u.unwindAllocation(ctx, allocation.Address, now)
		return dto.RequestDepositOutput{}, appErr
	}

	payload, marshalErr := json.Marshal(map[string]any{
		"deposit_id":   deposit.ID,
		"address":      deposit.Address,
		"amount_minor": deposit.AmountMinor,
		"asset":        deposit.Asset,
		"expires_at":   deposit.ExpiresAt,
	})
	if marshalErr != nil {
		return dto.RequestDepositOutput{}, apperrors.NewInternal(
			"event_payload_marshal_failed",
			"failed to marshal address assigned event payload",
			map[string]any{"error": marshalErr.Error()},
		)
	}
	if _, appErr := u.outbox.Enqueue(ctx, dto.EnqueueEventCommand{
		EventID:   u.ids.NewID(),
		EventType: dto.EventTypeAddressAssigned,
		DepositID: deposit.ID,
		Payload:   payload,
		Now:       now,
	}); appErr != nil {
		return dto.RequestDepositOutput{}, appErr
	}

	return dto.RequestDepositOutput{
		Resource: dto.DepositResource{
			ID:                    deposit.ID,
			Address:               deposit.Address,
			AmountMinor:           deposit.AmountMinor,
			Asset:                 deposit.Asset,
			State:                 deposit.State.String(),
			ConfirmationsObserved: deposit.ConfirmationsObserved,
			ConfirmationThreshold: u.policy.ConfirmationThreshold,
			CreatedAt:             deposit.CreatedAt,
			ExpiresAt:             deposit.ExpiresAt,
		},
	}, nil
}

func (u *requestDepositUseCase) checkAmountBounds(amountMinor string) *apperrors.AppError {
	if u.policy.MinAmountMinor != "" {
		cmp, appErr := valueobjects.CompareAmountMinor(amountMinor, u.policy.MinAmountMinor)
		if appErr != nil {
			return appErr
		}
		if cmp < 0 {
			return apperrors.NewValidation(
				"amount_below_minimum",
				"requested amount is below the deposit minimum",
				map[string]any{"amount_minor": amountMinor, "minimum_minor": u.policy.MinAmountMinor},
			)
		}
	}
	if u.policy.MaxAmountMinor != "" {
		cmp, appErr := valueobjects.CompareAmountMinor(amountMinor, u.policy.MaxAmountMinor)
		if appErr != nil {
			return appErr
		}
		if cmp > 0 {
			return apperrors.NewValidation(
				"amount_above_maximum",
				"requested amount is above the deposit maximum",
				map[string]any{"amount_minor": amountMinor, "maximum_minor": u.policy.MaxAmountMinor},
			)
		}
	}
	return nil
}

// unwindAllocation returns a just-allocated address to the pool when deposit
// creation fails after the atomic claim. The address was never handed to a
// client, so it skips the cooldown wait: cooldown clears the assignment,
// release makes it available again.
func (u *requestDepositUseCase) unwindAllocation(ctx context.Context, address string, now time.Time) {
	if _, appErr := u.pool.BeginCooldown(ctx, address, now); appErr != nil {
		return
	}
	_ = u.pool.Release(ctx, address, now)
}
