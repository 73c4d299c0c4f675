package in

import (
	"context"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type SweepPoolUseCase interface {
	Execute(ctx context.Context, command dto.SweepPoolCommand) (dto.SweepPoolOutput, *apperrors.AppError)
}
