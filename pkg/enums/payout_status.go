package enums

import "fmt"

// PayoutStatus tracks the lifecycle of the stablecoin transfer attached to
// a payment. Transitions are validated in exactly one place (CanTransition)
// so handlers never re-implement the rules.
type PayoutStatus string

const (
	PayoutStatusUnset     PayoutStatus = "unset"
	PayoutStatusInitiated PayoutStatus = "initiated"
	PayoutStatusRetrying  PayoutStatus = "retrying"
	PayoutStatusCompleted PayoutStatus = "completed"
	PayoutStatusFailed    PayoutStatus = "failed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusUnset,
	PayoutStatusInitiated,
	PayoutStatusRetrying,
	PayoutStatusCompleted,
	PayoutStatusFailed,
}

// payoutTransitions is the single source of truth for the payout state
// machine. completed is terminal; retrying is re-entrant.
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusUnset:     {PayoutStatusInitiated},
	PayoutStatusInitiated: {PayoutStatusCompleted, PayoutStatusRetrying, PayoutStatusFailed},
	PayoutStatusRetrying:  {PayoutStatusCompleted, PayoutStatusRetrying, PayoutStatusFailed},
	PayoutStatusFailed:    {PayoutStatusRetrying},
	PayoutStatusCompleted: {},
}

// String implements fmt.Stringer.
func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the payout can no longer change state.
func (p PayoutStatus) IsTerminal() bool {
	return p == PayoutStatusCompleted
}

// CanTransition reports whether moving from p to target is allowed.
func (p PayoutStatus) CanTransition(target PayoutStatus) bool {
	for _, allowed := range payoutTransitions[p] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}
