package valueobjects

import apperrors "depositgate/internal/shared_kernel/errors"

type AddressStatus string

const (
	AddressStatusAvailable  AddressStatus = "available"
	AddressStatusAssigned   AddressStatus = "assigned"
	AddressStatusMonitoring AddressStatus = "monitoring"
	AddressStatusCooldown   AddressStatus = "cooldown"
)

func ParseAddressStatus(raw string) (AddressStatus, *apperrors.AppError) {
	switch raw {
	case string(AddressStatusAvailable):
		return AddressStatusAvailable, nil
	case string(AddressStatusAssigned):
		return AddressStatusAssigned, nil
	case string(AddressStatusMonitoring):
		return AddressStatusMonitoring, nil
	case string(AddressStatusCooldown):
		return AddressStatusCooldown, nil
	default:
		return "", apperrors.NewInternal(
			"address_status_invalid",
			"address status is invalid",
			map[string]any{"status": raw},
		)
	}
}

func (s AddressStatus) String() string {
	return string(s)
}

// CanTransitionTo enforces the assignment cycle
// available -> assigned -> monitoring -> cooldown -> available.
func (s AddressStatus) CanTransitionTo(next AddressStatus) bool {
	switch s {
	case AddressStatusAvailable:
		return next == AddressStatusAssigned
	case AddressStatusAssigned:
		return next == AddressStatusMonitoring || next == AddressStatusCooldown
	case AddressStatusMonitoring:
		return next == AddressStatusCooldown
	case AddressStatusCooldown:
		return next == AddressStatusAvailable
	default:
		return false
	}
}
