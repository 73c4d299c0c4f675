package use_cases

import (
	"context"
	"encoding/json"
	"time"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
	portsout "depositgate/internal/application/ports/out"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type sweepPoolUseCase struct {
	pool     portsout.AddressPoolRepository
	outbox   portsout.EventOutboxRepository
	ids      IDGenerator
	cooldown time.Duration
}

// NewSweepPoolUseCase builds the pool keeper's tick: recover addresses stuck
// on terminal deposits, then release addresses whose cooldown lapsed.
func NewSweepPoolUseCase(
	pool portsout.AddressPoolRepository,
	outbox portsout.EventOutboxRepository,
	ids IDGenerator,
	cooldown time.Duration,
) portsin.SweepPoolUseCase {
	return &sweepPoolUseCase{pool: pool, outbox: outbox, ids: ids, cooldown: cooldown}
}

func (u *sweepPoolUseCase) Execute(ctx context.Context, command dto.SweepPoolCommand) (dto.SweepPoolOutput, *apperrors.AppError) {
	if u.pool == nil || u.outbox == nil {
		return dto.SweepPoolOutput{}, apperrors.NewInternal(
			"sweep_pool_dependencies_missing",
			"address pool repository and event outbox are required",
			nil,
		)
	}

	now := command.Now.UTC()
	if command.Now.IsZero() {
		now = time.Now().UTC()
	}

	recovered, appErr := u.pool.RecoverStuckAssignments(ctx, now, u.cooldown)
	if appErr != nil {
		return dto.SweepPoolOutput{}, appErr
	}

	released, appErr := u.pool.ReleaseCooldownLapsed(ctx, now)
	if appErr != nil {
		return dto.SweepPoolOutput{Recovered: recovered}, appErr
	}

	for _, entry := range released {
		if appErr := u.emitReleased(ctx, entry, now); appErr != nil {
			return dto.SweepPoolOutput{Released: len(released), Recovered: recovered}, appErr
		}
	}

	return dto.SweepPoolOutput{Released: len(released), Recovered: recovered}, nil
}

func (u *sweepPoolUseCase) emitReleased(ctx context.Context, entry dto.ReleasedAddress, now time.Time) *apperrors.AppError {
	payload, marshalErr := json.Marshal(map[string]any{
		"deposit_id":  entry.DepositID,
		"address":     entry.Address,
		"released_at": now,
	})
	if marshalErr != nil {
		return apperrors.NewInternal(
			"event_payload_marshal_failed",
			"failed to marshal address released event payload",
			map[string]any{"error": marshalErr.Error()},
		)
	}
	_, appErr := u.outbox.Enqueue(ctx, dto.EnqueueEventCommand{
		EventID:   u.ids.NewID(),
		EventType: dto.EventTypeAddressReleased,
		DepositID: entry.DepositID,
		Payload:   payload,
		Now:       now,
	})
	return appErr
}
