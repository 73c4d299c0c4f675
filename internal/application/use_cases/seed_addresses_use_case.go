package use_cases

import (
	"context"
	"fmt"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
	portsout "depositgate/internal/application/ports/out"
	valueobjects "depositgate/internal/domain/value_objects"
	apperrors "depositgate/internal/shared_kernel/errors"
)

const maxSeedBatch = 1000

type seedAddressesUseCase struct {
	pool  portsout.AddressPoolRepository
	clock Clock
}

// NewSeedAddressesUseCase builds the bulk import path for externally
// generated addresses. Malformed entries are reported per address; the valid
// remainder is still inserted.
func NewSeedAddressesUseCase(pool portsout.AddressPoolRepository, clock Clock) portsin.SeedAddressesUseCase {
	return &seedAddressesUseCase{pool: pool, clock: clock}
}

func (u *seedAddressesUseCase) Execute(ctx context.Context, command dto.SeedAddressesCommand) (dto.SeedAddressesOutput, *apperrors.AppError) {
	if u.pool == nil {
		return dto.SeedAddressesOutput{}, apperrors.NewInternal(
			"address_pool_repository_missing",
			"address pool repository is required",
			nil,
		)
	}
	if len(command.Addresses) == 0 {
		return dto.SeedAddressesOutput{}, apperrors.NewValidation(
			"addresses_required",
			"at least one address is required",
			nil,
		)
	}
	if len(command.Addresses) > maxSeedBatch {
		return dto.SeedAddressesOutput{}, apperrors.NewValidation(
			"seed_batch_too_large",
			"seed batch exceeds the maximum size",
			map[string]any{"size": len(command.Addresses), "maximum": maxSeedBatch},
		)
	}

	now := command.Now.UTC()
	if command.Now.IsZero() {
		now = u.clock.NowUTC()
	}

	valid := make([]string, 0, len(command.Addresses))
	seen := make(map[string]struct{}, len(command.Addresses))
	var errors []string
	for i, raw := range command.Addresses {
		address, appErr := valueobjects.NormalizeChainAddress(raw)
		if appErr != nil {
			errors = append(errors, fmt.Sprintf("addresses[%d]: %s", i, appErr.Message))
			continue
		}
		if _, dup := seen[address]; dup {
			errors = append(errors, fmt.Sprintf("addresses[%d]: duplicate in batch", i))
			continue
		}
		seen[address] = struct{}{}
		valid = append(valid, address)
	}

	if len(valid) == 0 {
		return dto.SeedAddressesOutput{Errors: errors}, apperrors.NewValidation(
			"no_valid_addresses",
			"no address in the batch passed validation",
			map[string]any{"errors": errors},
		)
	}

	added, skipped, appErr := u.pool.InsertAvailable(ctx, valid, now)
	if appErr != nil {
		return dto.SeedAddressesOutput{}, appErr
	}

	return dto.SeedAddressesOutput{Added: added, Skipped: skipped, Errors: errors}, nil
}
