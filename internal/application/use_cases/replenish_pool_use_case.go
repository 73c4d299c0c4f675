package use_cases

import (
	"context"
	"time"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
	portsout "depositgate/internal/application/ports/out"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type replenishPoolUseCase struct {
	pool      portsout.AddressPoolRepository
	generator portsout.AddressGenerator
}

func NewReplenishPoolUseCase(
	pool portsout.AddressPoolRepository,
	generator portsout.AddressGenerator,
) portsin.ReplenishPoolUseCase {
	return &replenishPoolUseCase{pool: pool, generator: generator}
}

func (u *replenishPoolUseCase) Execute(
	ctx context.Context,
	command dto.ReplenishPoolCommand,
) (dto.ReplenishPoolOutput, *apperrors.AppError) {
	if u.pool == nil || u.generator == nil {
		return dto.ReplenishPoolOutput{}, apperrors.NewInternal(
			"replenish_dependencies_missing",
			"address pool repository and address generator are required",
			nil,
		)
	}
	if command.MinimumSize <= 0 {
		return dto.ReplenishPoolOutput{}, apperrors.NewValidation(
			"pool_minimum_size_invalid",
			"pool minimum size must be greater than zero",
			map[string]any{"minimum_size": command.MinimumSize},
		)
	}

	now := command.Now.UTC()
	if command.Now.IsZero() {
		now = time.Now().UTC()
	}

	counts, appErr := u.pool.Counts(ctx, now)
	if appErr != nil {
		return dto.ReplenishPoolOutput{}, appErr
	}

	output := dto.ReplenishPoolOutput{AvailableBefore: counts.Available}

	// Cooldown addresses return on their own; only a genuine shortfall
	// triggers generation.
	deficit := command.MinimumSize - (counts.Available + counts.Cooldown)
	if deficit <= 0 {
		return output, nil
	}
	if command.MaxBatchSize > 0 && deficit > command.MaxBatchSize {
		deficit = command.MaxBatchSize
	}

	fromIndex, appErr := u.pool.ReserveDerivationIndexes(ctx, deficit)
	if appErr != nil {
		return output, appErr
	}

	addresses, appErr := u.generator.GenerateBatch(ctx, fromIndex, deficit)
	if appErr != nil {
		return output, appErr
	}
	output.Generated = len(addresses)

	added, skipped, appErr := u.pool.InsertAvailable(ctx, addresses, now)
	if appErr != nil {
		return output, appErr
	}
	output.Inserted = added
	output.Skipped = skipped

	return output, nil
}
