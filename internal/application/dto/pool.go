package dto

import "time"

// AllocatedAddress is the result of an atomic pool allocation.
type AllocatedAddress struct {
	Address    string
	AssignedAt time.Time
	UsageCount int64
}

type PoolCounts struct {
	Total      int
	Available  int
	Assigned   int
	Monitoring int
	Cooldown   int
}

type PoolStatusResource struct {
	TotalAddresses     int     `json:"total_addresses"`
	Available          int     `json:"available"`
	Assigned           int     `json:"assigned"`
	Monitoring         int     `json:"monitoring"`
	Cooldown           int     `json:"cooldown"`
	UtilizationPercent float64 `json:"utilization_percent"`
	Health             string  `json:"health"`
	LowWatermark       int     `json:"low_watermark"`
}

type GetPoolStatusQuery struct{}

type SeedAddressesCommand struct {
	Addresses []string
	Now       time.Time
}

type SeedAddressesOutput struct {
	Added   int      `json:"added"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

type ReplenishPoolCommand struct {
	Now          time.Time
	MinimumSize  int
	MaxBatchSize int
}

type ReplenishPoolOutput struct {
	AvailableBefore int
	Generated       int
	Inserted        int
	Skipped         int
}

// ReleasedAddress reports one address returned to the pool, with the deposit
// that last held it.
type ReleasedAddress struct {
	Address   string
	DepositID string
}

type SweepPoolCommand struct {
	Now time.Time
}

type SweepPoolOutput struct {
	Released  int
	Recovered int
}
