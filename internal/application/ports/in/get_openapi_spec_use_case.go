package in

import (
	"context"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type GetOpenAPISpecUseCase interface {
	Execute(ctx context.Context, query dto.GetOpenAPISpecQuery) (dto.GetOpenAPISpecOutput, *apperrors.AppError)
}
