package use_cases

import (
	"context"
	"math"

	"depositgate/internal/application/dto"
	portsin "depositgate/internal/application/ports/in"
	portsout "depositgate/internal/application/ports/out"
	apperrors "depositgate/internal/shared_kernel/errors"
)

type getPoolStatusUseCase struct {
	pool         portsout.AddressPoolRepository
	clock        Clock
	lowWatermark int
}

// NewGetPoolStatusUseCase builds the operator-facing pool inventory query.
func NewGetPoolStatusUseCase(
	pool portsout.AddressPoolRepository,
	clock Clock,
	lowWatermark int,
) portsin.GetPoolStatusUseCase {
	return &getPoolStatusUseCase{pool: pool, clock: clock, lowWatermark: lowWatermark}
}

func (u *getPoolStatusUseCase) Execute(ctx context.Context, _ dto.GetPoolStatusQuery) (dto.PoolStatusResource, *apperrors.AppError) {
	if u.pool == nil {
		return dto.PoolStatusResource{}, apperrors.NewInternal(
			"address_pool_repository_missing",
			"address pool repository is required",
			nil,
		)
	}

	counts, appErr := u.pool.Counts(ctx, u.clock.NowUTC())
	if appErr != nil {
		return dto.PoolStatusResource{}, appErr
	}

	utilization := 0.0
	if counts.Total > 0 {
		inUse := counts.Assigned + counts.Monitoring
		utilization = math.Round(float64(inUse)/float64(counts.Total)*10000) / 100
	}

	return dto.PoolStatusResource{
		TotalAddresses:     counts.Total,
		Available:          counts.Available,
		Assigned:           counts.Assigned,
		Monitoring:         counts.Monitoring,
		Cooldown:           counts.Cooldown,
		UtilizationPercent: utilization,
		Health:             poolHealth(counts, u.lowWatermark),
		LowWatermark:       u.lowWatermark,
	}, nil
}

// poolHealth grades the inventory for dashboards. critical means the next
// allocation can fail; warning means the keeper should be replenishing.
func poolHealth(counts dto.PoolCounts, lowWatermark int) string {
	switch {
	case counts.Available == 0:
		return "critical"
	case counts.Available < lowWatermark:
		return "warning"
	case counts.Total > 0 && counts.Available*5 <= counts.Total:
		return "high_utilization"
	default:
		return "excellent"
	}
}
