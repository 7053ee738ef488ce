package orders

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		to       Status
		expected bool
	}{
		{
			name:     "pending to active",
			from:     StatusPending,
			to:       StatusActive,
			expected: true,
		},
		{
			name:     "pending to provisioning",
			from:     StatusPending,
			to:       StatusProvisioning,
			expected: true,
		},
		{
			name:     "pending to failed",
			from:     StatusPending,
			to:       StatusFailed,
			expected: true,
		},
		{
			name:     "pending to suspended is not allowed",
			from:     StatusPending,
			to:       StatusSuspended,
			expected: false,
		},
		{
			name:     "active to suspended",
			from:     StatusActive,
			to:       StatusSuspended,
			expected: true,
		},
		{
			name:     "active to payment_failed",
			from:     StatusActive,
			to:       StatusPaymentFailed,
			expected: true,
		},
		{
			name:     "suspended to active",
			from:     StatusSuspended,
			to:       StatusActive,
			expected: true,
		},
		{
			name:     "payment_failed to active",
			from:     StatusPaymentFailed,
			to:       StatusActive,
			expected: true,
		},
		{
			name:     "payment_failed to suspended",
			from:     StatusPaymentFailed,
			to:       StatusSuspended,
			expected: true,
		},
		{
			name:     "failed to active",
			from:     StatusFailed,
			to:       StatusActive,
			expected: true,
		},
		{
			name:     "cancelled is terminal",
			from:     StatusCancelled,
			to:       StatusActive,
			expected: false,
		},
		{
			name:     "deleted is terminal",
			from:     StatusDeleted,
			to:       StatusActive,
			expected: false,
		},
		{
			name:     "archived is terminal",
			from:     StatusArchived,
			to:       StatusPending,
			expected: false,
		},
		{
			name:     "same status is not a transition",
			from:     StatusActive,
			to:       StatusActive,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []Status{StatusCancelled, StatusDeleted, StatusArchived}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}

	nonTerminal := []Status{StatusPending, StatusProvisioning, StatusActive, StatusSuspended, StatusPaymentFailed, StatusFailed}
	for _, s := range nonTerminal {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
}
