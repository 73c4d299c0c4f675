package in

import (
	"context"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type GetHealthUseCase interface {
	Execute(ctx context.Context, query dto.GetHealthQuery) (dto.HealthResource, *apperrors.AppError)
}
