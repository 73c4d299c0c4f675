package dto

import "time"

type MonitorDepositsCommand struct {
	Now                   time.Time
	BatchSize             int
	WorkerID              string
	LeaseDuration         time.Duration
	ConfirmationThreshold int
	QueryTimeout          time.Duration
	PollInterval          time.Duration
	MaxPollBackoff        time.Duration
	CooldownDuration      time.Duration
}

type MonitorDepositsOutput struct {
	Claimed            int
	Scanned            int
	Confirmed          int
	PartiallyConfirmed int
	Expired            int
	Unavailable        int
	Skipped            int
	Errors             int
}

// MonitorableDeposit is one claimed row of the monitor batch.
type MonitorableDeposit struct {
	ID                     string
	Address                string
	AmountMinor            string
	Asset                  string
	State                  string
	ConfirmationsObserved  int
	LastCheckedBlockHeight int64
	PollBackoffSeconds     int
	ExpiresAt              time.Time
}

type ApplyObservationResult struct {
	// Applied is false when the transaction hash had already been recorded
	// for the deposit.
	Applied               bool
	ConfirmationsObserved int
}

type PollSchedule struct {
	NextPollAt         time.Time
	PollBackoffSeconds int
}
