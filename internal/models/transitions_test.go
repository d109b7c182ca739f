package models

import "testing"

func TestIsValidSubmissionTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{SubmissionStatusPending, SubmissionStatusVerified, true},
		{SubmissionStatusPending, SubmissionStatusRejected, true},
		{SubmissionStatusVerified, SubmissionStatusPaid, true},

		{SubmissionStatusPending, SubmissionStatusPaid, false},
		{SubmissionStatusVerified, SubmissionStatusRejected, false},
		{SubmissionStatusVerified, SubmissionStatusPending, false},
		{SubmissionStatusRejected, SubmissionStatusVerified, false},
		{SubmissionStatusPaid, SubmissionStatusVerified, false},
		{"nonexistent", SubmissionStatusVerified, false},
		{SubmissionStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidSubmissionTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidSubmissionTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsValidPayoutTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{PayoutStatusPending, PayoutStatusProcessing, true},
		{PayoutStatusPending, PayoutStatusCompleted, true},
		{PayoutStatusPending, PayoutStatusFailed, true},
		{PayoutStatusProcessing, PayoutStatusCompleted, true},
		{PayoutStatusProcessing, PayoutStatusFailed, true},

		{PayoutStatusProcessing, PayoutStatusPending, false},
		{PayoutStatusCompleted, PayoutStatusFailed, false},
		{PayoutStatusFailed, PayoutStatusCompleted, false},
		{PayoutStatusFailed, PayoutStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidPayoutTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidPayoutTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsValidCampaignTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{CampaignStatusDraft, CampaignStatusActive, true},
		{CampaignStatusActive, CampaignStatusPaused, true},
		{CampaignStatusPaused, CampaignStatusActive, true},
		{CampaignStatusActive, CampaignStatusCompleted, true},
		{CampaignStatusDraft, CampaignStatusCancelled, true},

		{CampaignStatusDraft, CampaignStatusPaused, false},
		{CampaignStatusCompleted, CampaignStatusActive, false},
		{CampaignStatusCancelled, CampaignStatusDraft, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidCampaignTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidCampaignTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllStatusesHaveTransitionEntry(t *testing.T) {
	tables := map[string]struct {
		table    map[string][]string
		statuses []string
	}{
		"submission": {ValidSubmissionTransitions, []string{
			SubmissionStatusPending, SubmissionStatusVerified, SubmissionStatusRejected, SubmissionStatusPaid,
		}},
		"payout": {ValidPayoutTransitions, []string{
			PayoutStatusPending, PayoutStatusProcessing, PayoutStatusCompleted, PayoutStatusFailed,
		}},
		"campaign": {ValidCampaignTransitions, []string{
			CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled,
		}},
	}

	for name, tc := range tables {
		for _, status := range tc.statuses {
			if _, ok := tc.table[status]; !ok {
				t.Errorf("%s status %q missing from transition map", name, status)
			}
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	terminal := map[string][]string{
		SubmissionStatusRejected: ValidSubmissionTransitions[SubmissionStatusRejected],
		SubmissionStatusPaid:     ValidSubmissionTransitions[SubmissionStatusPaid],
		PayoutStatusCompleted:    ValidPayoutTransitions[PayoutStatusCompleted],
		PayoutStatusFailed:       ValidPayoutTransitions[PayoutStatusFailed],
	}
	for status, transitions := range terminal {
		if len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
	}
}
