package in

import (
	"context"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type SeedAddressesUseCase interface {
	Execute(ctx context.Context, command dto.SeedAddressesCommand) (dto.SeedAddressesOutput, *apperrors.AppError)
}
