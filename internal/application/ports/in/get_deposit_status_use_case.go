package in

import (
	"context"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type GetDepositStatusUseCase interface {
	Execute(ctx context.Context, query dto.GetDepositStatusQuery) (dto.DepositResource, *apperrors.AppError)
}
