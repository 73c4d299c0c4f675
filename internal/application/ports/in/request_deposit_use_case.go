package in

import (
	"context"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type RequestDepositUseCase interface {
	Execute(ctx context.Context, command dto.RequestDepositCommand) (dto.RequestDepositOutput, *apperrors.AppError)
}
