package in

import (
	"context"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type GetPoolStatusUseCase interface {
	Execute(ctx context.Context, query dto.GetPoolStatusQuery) (dto.PoolStatusResource, *apperrors.AppError)
}
