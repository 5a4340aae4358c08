package enums

import "testing"

func TestPayoutStatusTransitions(t *testing.T) {
	cases := []struct {
		from    PayoutStatus
		to      PayoutStatus
		allowed bool
	}{
		{PayoutStatusUnset, PayoutStatusInitiated, true},
		{PayoutStatusUnset, PayoutStatusCompleted, false},
		{PayoutStatusInitiated, PayoutStatusCompleted, true},
		{PayoutStatusInitiated, PayoutStatusRetrying, true},
		{PayoutStatusInitiated, PayoutStatusFailed, true},
		{PayoutStatusRetrying, PayoutStatusRetrying, true},
		{PayoutStatusRetrying, PayoutStatusCompleted, true},
		{PayoutStatusFailed, PayoutStatusRetrying, true},
		{PayoutStatusFailed, PayoutStatusInitiated, false},
		{PayoutStatusCompleted, PayoutStatusRetrying, false},
		{PayoutStatusCompleted, PayoutStatusFailed, false},
		{PayoutStatusCompleted, PayoutStatusInitiated, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestPayoutStatusCompletedIsTerminal(t *testing.T) {
	if !PayoutStatusCompleted.IsTerminal() {
		t.Fatalf("completed must be terminal")
	}
	for _, status := range []PayoutStatus{PayoutStatusUnset, PayoutStatusInitiated, PayoutStatusRetrying, PayoutStatusFailed} {
		if status.IsTerminal() {
			t.Fatalf("%s must not be terminal", status)
		}
	}
}

func TestParsePayoutStatus(t *testing.T) {
	status, err := ParsePayoutStatus("retrying")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != PayoutStatusRetrying {
		t.Fatalf("expected retrying, got %s", status)
	}
	if _, err := ParsePayoutStatus("bogus"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}
