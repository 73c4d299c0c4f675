package in

import (
	"context"

	"depositgate/internal/application/dto"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type MonitorDepositsUseCase interface {
	Execute(ctx context.Context, command dto.MonitorDepositsCommand) (dto.MonitorDepositsOutput, *apperrors.AppError)
}
