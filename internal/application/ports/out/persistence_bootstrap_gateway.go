package out

import (
	"context"

	apperrors "depositgate/internal/shared_kernel/errors"
)

// PersistenceBootstrapGateway prepares the durable store at process start.
type PersistenceBootstrapGateway interface {
	// CheckReadiness pings the store once.
	CheckReadiness(ctx context.Context) *apperrors.AppError

	// RunMigrations applies pending schema migrations.
	RunMigrations(ctx context.Context) *apperrors.AppError
}
