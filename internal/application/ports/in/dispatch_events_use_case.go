package in

import (
	"context"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type DispatchEventsUseCase interface {
	Execute(ctx context.Context, command dto.DispatchEventsCommand) (dto.DispatchEventsOutput, *apperrors.AppError)
}
