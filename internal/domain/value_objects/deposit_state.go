package valueobjects

import apperrors "depositgate/internal/shared_kernel/errors"

type DepositState string

const (
	DepositStatePending            DepositState = "pending"
	DepositStatePartiallyConfirmed DepositState = "partially_confirmed"
	DepositStateConfirmed          DepositState = "confirmed"
	DepositStateExpired            DepositState = "expired"
	DepositStateFailed             DepositState = "failed"
)

func NewPendingDepositState() DepositState {
	return DepositStatePending
}

func ParseDepositState(raw string) (DepositState, *apperrors.AppError) {
	switch raw {
	case string(DepositStatePending):
		return DepositStatePending, nil
	case string(DepositStatePartiallyConfirmed):
		return DepositStatePartiallyConfirmed, nil
	case string(DepositStateConfirmed):
		return DepositStateConfirmed, nil
	case string(DepositStateExpired):
		return DepositStateExpired, nil
	case string(DepositStateFailed):
		return DepositStateFailed, nil
	default:
		return "", apperrors.NewInternal(
			"deposit_state_invalid",
			"deposit state is invalid",
			map[string]any{"state": raw},
		)
	}
}

func (s DepositState) String() string {
	return string(s)
}

// IsTerminal reports whether the state is absorbing. Terminal deposits accept
// no further transitions.
func (s DepositState) IsTerminal() bool {
	switch s {
	case DepositStateConfirmed, DepositStateExpired, DepositStateFailed:
		return true
	default:
		return false
	}
}

// CanTransitionTo enforces the monotonic deposit state machine:
// pending -> partially_confirmed -> confirmed, with expired/failed reachable
// from any non-terminal state.
func (s DepositState) CanTransitionTo(next DepositState) bool {
	if s.IsTerminal() {
		return false
	}

	switch next {
	case DepositStatePartiallyConfirmed:
		return s == DepositStatePending
	case DepositStateConfirmed, DepositStateExpired, DepositStateFailed:
		return true
	default:
		return false
	}
}
