package models

// ValidCampaignTransitions defines allowed campaign status transitions.
var ValidCampaignTransitions = map[string][]string{
	CampaignStatusDraft:     {CampaignStatusActive, CampaignStatusCancelled},
	CampaignStatusActive:    {CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled},
	CampaignStatusPaused:    {CampaignStatusActive, CampaignStatusCompleted, CampaignStatusCancelled},
	CampaignStatusCompleted: {},
	CampaignStatusCancelled: {},
}

// ValidSubmissionTransitions defines the post lifecycle.
var ValidSubmissionTransitions = map[string][]string{
	SubmissionStatusPending:  {SubmissionStatusVerified, SubmissionStatusRejected},
	SubmissionStatusVerified: {SubmissionStatusPaid},
	SubmissionStatusRejected: {},
	SubmissionStatusPaid:     {},
}

// ValidPayoutTransitions: FAILED is reachable from PROCESSING so operators
// can force-fail a payout stuck at the provider.
var ValidPayoutTransitions = map[string][]string{
	PayoutStatusPending:    {PayoutStatusProcessing, PayoutStatusCompleted, PayoutStatusFailed},
	PayoutStatusProcessing: {PayoutStatusCompleted, PayoutStatusFailed},
	PayoutStatusCompleted:  {},
	PayoutStatusFailed:     {},
}

func IsValidCampaignTransition(from, to string) bool {
	return isValidTransition(ValidCampaignTransitions, from, to)
}

func IsValidSubmissionTransition(from, to string) bool {
	return isValidTransition(ValidSubmissionTransitions, from, to)
}

func IsValidPayoutTransition(from, to string) bool {
	return isValidTransition(ValidPayoutTransitions, from, to)
}

func isValidTransition(table map[string][]string, from, to string) bool {
	allowed, ok := table[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
