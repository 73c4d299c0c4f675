package out

import (
	"context"

	"depositgate/internal/domain/entities"
	apperrors "depositgate/internal/shared_kernel/errors"
)

// ChainClient abstracts the blockchain data provider. Implementations perform
// no retries; transient provider failures (including rate limits) surface as
// unavailable errors and the caller owns the backoff.
type ChainClient interface {
	FetchTransactions(
		ctx context.Context,
		address string,
		sinceBlockHeight int64,
	) ([]entities.ChainObservation, *apperrors.AppError)
}
