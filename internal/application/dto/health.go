package dto

import "time"

type GetHealthQuery struct{}

type HealthResource struct {
	Status string `json:"status"`
}

type InitializePersistenceCommand struct {
	ReadinessTimeout       time.Duration
	ReadinessRetryInterval time.Duration
}
