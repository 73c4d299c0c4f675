package in

import (
	"context"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type ReplenishPoolUseCase interface {
	Execute(ctx context.Context, command dto.ReplenishPoolCommand) (dto.ReplenishPoolOutput, *apperrors.AppError)
}
