package out

import (
	"context"

	apperrors "depositgate/internal/shared_kernel/errors"
)

// AddressGenerator derives fresh pool addresses. The derivation cursor is
// owned by the pool store so restarts never reuse an index.
type AddressGenerator interface {
	GenerateBatch(ctx context.Context, fromIndex uint32, count int) ([]string, *apperrors.AppError)
}
