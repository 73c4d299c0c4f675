package use_cases

import (
	"context"
	"strings"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
	portsout "depositgate/internal/application/ports/out"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type getDepositStatusUseCase struct {
	deposits  portsout.DepositRepository
	threshold int
}

func NewGetDepositStatusUseCase(deposits portsout.DepositRepository, confirmationThreshold int) portsin.GetDepositStatusUseCase {
	return &getDepositStatusUseCase{deposits: deposits, threshold: confirmationThreshold}
}

func (u *getDepositStatusUseCase) Execute(ctx context.Context, query dto.GetDepositStatusQuery) (dto.DepositResource, *apperrors.AppError) {
	if u.deposits == nil {
		return dto.DepositResource{}, apperrors.NewInternal(
			"deposit_repository_missing",
			"deposit repository is required",
			nil,
		)
	}

	id := strings.TrimSpace(query.ID)
	if id == "" {
		return dto.DepositResource{}, apperrors.NewValidation(
			"invalid_request",
			"deposit id is required",
			map[string]any{"field": "id"},
		)
	}

	resource, found, appErr := u.deposits.GetByID(ctx, id)
	if appErr != nil {
		return dto.DepositResource{}, appErr
	}
	if !found {
		return dto.DepositResource{}, apperrors.NewNotFound(
			"deposit_not_found",
			"deposit request was not found",
			map[string]any{"id": id},
		)
	}

	resource.ConfirmationThreshold = u.threshold
	return resource, nil
}
