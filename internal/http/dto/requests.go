package dto

import (
	"time"

	"github.com/repostpay/backend/internal/models"
)

// Sponsors

type CreateSponsorRequest struct {
	Kind string `json:"kind"` // BRAND / ORGANIZATION
	Name string `json:"name"`
}

type TopUpRequest struct {
	Amount string `json:"amount"`
}

// Participants

type ProfileRequest struct {
	ContactCount    *int     `json:"contact_count,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	AgeRange        *string  `json:"age_range,omitempty"`
	LocationCity    *string  `json:"location_city,omitempty"`
	LocationCountry *string  `json:"location_country,omitempty"`
}

type StandingRequest struct {
	AvgViewRate      *string `json:"avg_view_rate,omitempty"`
	ReputationScore  *string `json:"reputation_score,omitempty"`
	Tier             *string `json:"tier,omitempty"`
	WhatsappVerified *bool   `json:"whatsapp_verified,omitempty"`
	IsBanned         *bool   `json:"is_banned,omitempty"`
}

// Campaigns

type EconomicsRequest struct {
	CPMSponsor     string `json:"cpm_sponsor"`
	CPMParticipant string `json:"cpm_participant"`
	FlatFee        string `json:"flat_fee,omitempty"`
	ReshareBonus   string `json:"reshare_bonus,omitempty"`
}

type CreateCampaignRequest struct {
	SponsorID         string           `json:"sponsor_id,omitempty"` // admin only
	Name              string           `json:"name"`
	Description       *string          `json:"description,omitempty"`
	CreativeURL       string           `json:"creative_url"`
	CallToAction      *string          `json:"call_to_action,omitempty"`
	Targeting         models.Targeting `json:"targeting"`
	Economics         EconomicsRequest `json:"economics"`
	TotalBudget       string           `json:"total_budget"`
	MaxParticipants   int              `json:"max_participants"`
	TargetImpressions int64            `json:"target_impressions"`
	StartDate         *time.Time       `json:"start_date,omitempty"`
	EndDate           *time.Time       `json:"end_date,omitempty"`
}

type UpdateCampaignRequest struct {
	Name              *string           `json:"name,omitempty"`
	Description       *string           `json:"description,omitempty"`
	CreativeURL       *string           `json:"creative_url,omitempty"`
	CallToAction      *string           `json:"call_to_action,omitempty"`
	Targeting         *models.Targeting `json:"targeting,omitempty"`
	Economics         *EconomicsRequest `json:"economics,omitempty"`
	TotalBudget       *string           `json:"total_budget,omitempty"`
	MaxParticipants   *int              `json:"max_participants,omitempty"`
	TargetImpressions *int64            `json:"target_impressions,omitempty"`
	StartDate         *time.Time        `json:"start_date,omitempty"`
	EndDate           *time.Time        `json:"end_date,omitempty"`
}

type SetCampaignStatusRequest struct {
	Status string `json:"status"`
}

// Submissions

type ClaimRequest struct {
	CampaignID           string  `json:"campaign_id"`
	IsReshare            bool    `json:"is_reshare"`
	OriginalSubmissionID *string `json:"original_submission_id,omitempty"`
}

type SubmitMetricsRequest struct {
	Views         int64      `json:"views"`
	Reshares      int64      `json:"reshares"`
	ScreenshotURL *string    `json:"screenshot_url,omitempty"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
}

type VerifyRequest struct {
	Outcome string  `json:"outcome"` // VERIFIED / REJECTED
	Notes   *string `json:"notes,omitempty"`
}

// Payouts

type PayoutRequest struct {
	Amount        string  `json:"amount"`
	Method        string  `json:"method"`
	WalletAddress *string `json:"wallet_address,omitempty"`
	PhoneNumber   *string `json:"phone_number,omitempty"`
	BankAccount   *string `json:"bank_account,omitempty"`
	Network       *string `json:"network,omitempty"`
}

type ResolvePayoutRequest struct {
	Outcome        string  `json:"outcome"` // COMPLETED / FAILED
	TransactionRef *string `json:"transaction_ref,omitempty"`
	FailureReason  *string `json:"failure_reason,omitempty"`
}

type ForceFailRequest struct {
	Reason string `json:"reason,omitempty"`
}
