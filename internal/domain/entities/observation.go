package entities

import "time"

// ChainObservation is a transfer fetched from the chain provider. It is not
// persisted on its own; the transaction hash is the idempotency key when it is
// applied to a deposit.
type ChainObservation struct {
	TxHash        string
	ToAddress     string
	AmountMinor   string
	BlockHeight   int64
	Confirmations int
	ObservedAt    time.Time
}
