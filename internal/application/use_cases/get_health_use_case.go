package use_cases

import (
	"context"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type getHealthUseCase struct{}

func NewGetHealthUseCase() portsin.GetHealthUseCase {
	return &getHealthUseCase{}
}

func (u *getHealthUseCase) Execute(_ context.Context, _ dto.GetHealthQuery) (dto.HealthResource, *apperrors.AppError) {
	return dto.HealthResource{Status: "healthy"}, nil
}
