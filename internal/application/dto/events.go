package dto

import "time"

const (
	EventTypeAddressAssigned           = "address.assigned"
	EventTypeDepositPartiallyConfirmed = "deposit.partially_confirmed"
	EventTypeDepositConfirmed          = "deposit.confirmed"
	EventTypeDepositExpired            = "deposit.expired"
	EventTypeAddressReleased           = "address.released"
)

type EnqueueEventCommand struct {
	EventID   string
	EventType string
	DepositID string
	Payload   []byte
	Now       time.Time
}

// PendingOutboxEvent is one claimed row of the dispatch batch.
type PendingOutboxEvent struct {
	ID          int64
	EventID     string
	EventType   string
	DepositID   string
	Payload     []byte
	Attempts    int
	MaxAttempts int
}

type DispatchEventsCommand struct {
	Now            time.Time
	BatchSize      int
	WorkerID       string
	LeaseDuration  time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RetryBudget    int
}

type DispatchEventsOutput struct {
	Claimed   int
	Delivered int
	Retried   int
	Failed    int
	Errors    int
}

type DeliverEventInput struct {
	EventID         string
	EventType       string
	DestinationURL  string
	Payload         []byte
	DeliveryAttempt int
}

type DeliverEventOutput struct {
	StatusCode int
}
