package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/money"
)

// Submission statuses
const (
	SubmissionStatusPending  = "PENDING"
	SubmissionStatusVerified = "VERIFIED"
	SubmissionStatusRejected = "REJECTED"
	SubmissionStatusPaid     = "PAID"
)

type EarningsBreakdown struct {
	Base         money.Money `json:"base"`
	FlatFee      money.Money `json:"flat_fee"`
	TierBonus    money.Money `json:"tier_bonus"`
	ReshareBonus money.Money `json:"reshare_bonus"`
	StreakBonus  money.Money `json:"streak_bonus"`
	Total        money.Money `json:"total"`
}

func ZeroBreakdown(cur money.Currency) EarningsBreakdown {
	z := money.Zero(cur)
	return EarningsBreakdown{Base: z, FlatFee: z, TierBonus: z, ReshareBonus: z, StreakBonus: z, Total: z}
}

// Submission is one participant's claim on a campaign ("post").
type Submission struct {
	ID                   uuid.UUID         `json:"id"`
	ParticipantID        uuid.UUID         `json:"participant_id"`
	CampaignID           uuid.UUID         `json:"campaign_id"`
	Status               string            `json:"status"`
	ViewsCount           *int64            `json:"views_count,omitempty"`
	ResharesCount        *int64            `json:"reshares_count,omitempty"`
	ScreenshotURL        *string           `json:"screenshot_url,omitempty"`
	PostedAt             *time.Time        `json:"posted_at,omitempty"`
	MetricsSubmittedAt   *time.Time        `json:"metrics_submitted_at,omitempty"`
	Earnings             EarningsBreakdown `json:"earnings"`
	IsReshare            bool              `json:"is_reshare"`
	OriginalSubmissionID *uuid.UUID        `json:"original_submission_id,omitempty"`
	VerifiedBy           *string           `json:"verified_by,omitempty"`
	VerificationNotes    *string           `json:"verification_notes,omitempty"`
	ReservedByPayoutID   *uuid.UUID        `json:"reserved_by_payout_id,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

func (s *Submission) HasMetrics() bool {
	return s.MetricsSubmittedAt != nil
}

func (s *Submission) IsReserved() bool {
	return s.ReservedByPayoutID != nil
}

// IsFundable reports whether the submission's earnings may back a new payout.
func (s *Submission) IsFundable() bool {
	return s.Status == SubmissionStatusVerified && !s.IsReserved()
}

func (s *Submission) Views() int64 {
	if s.ViewsCount == nil {
		return 0
	}
	return *s.ViewsCount
}

func (s *Submission) Reshares() int64 {
	if s.ResharesCount == nil {
		return 0
	}
	return *s.ResharesCount
}
