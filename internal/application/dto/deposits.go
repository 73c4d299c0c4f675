package dto

import "time"

type RequestDepositCommand struct {
	AmountMinor string
	Asset       string
}

type DepositResource struct {
	ID                    string    `json:"id"`
	Address               string    `json:"address"`
	AmountMinor           string    `json:"amount_minor"`
	Asset                 string    `json:"asset"`
	State                 string    `json:"state"`
	ConfirmationsObserved int       `json:"confirmations_observed"`
	ConfirmationThreshold int       `json:"confirmation_threshold"`
	CreatedAt             time.Time `json:"created_at"`
	ExpiresAt             time.Time `json:"expires_at"`
}

type RequestDepositOutput struct {
	Resource DepositResource
}

type GetDepositStatusQuery struct {
	ID string
}
