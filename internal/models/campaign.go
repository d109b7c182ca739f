package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/money"
	"github.com/shopspring/decimal"
)

// Campaign statuses
const (
	CampaignStatusDraft     = "DRAFT"
	CampaignStatusActive    = "ACTIVE"
	CampaignStatusPaused    = "PAUSED"
	CampaignStatusCompleted = "COMPLETED"
	CampaignStatusCancelled = "CANCELLED"
)

// Age ranges
const (
	AgeRange18to24 = "18-24"
	AgeRange25to34 = "25-34"
	AgeRange35to44 = "35-44"
	AgeRange45to54 = "45-54"
	AgeRange55Plus = "55+"
)

var AllAgeRanges = []string{AgeRange18to24, AgeRange25to34, AgeRange35to44, AgeRange45to54, AgeRange55Plus}

var AllInterests = []string{
	"fashion", "tech", "food", "travel", "sports", "music",
	"gaming", "fitness", "beauty", "education", "business", "entertainment",
}

func IsValidAgeRange(r string) bool { return contains(AllAgeRanges, r) }
func IsValidInterest(i string) bool { return contains(AllInterests, i) }

type Targeting struct {
	Locations       []string         `json:"locations"`
	AgeRanges       []string         `json:"age_ranges"`
	Interests       []string         `json:"interests"`
	MinContactCount *int             `json:"min_contact_count,omitempty"`
	MinViewRate     *decimal.Decimal `json:"min_view_rate,omitempty"`
}

type Economics struct {
	CPMSponsor     money.Money `json:"cpm_sponsor"`
	CPMParticipant money.Money `json:"cpm_participant"`
	FlatFee        money.Money `json:"flat_fee"`
	ReshareBonus   money.Money `json:"reshare_bonus"`
}

type Campaign struct {
	ID                 uuid.UUID   `json:"id"`
	SponsorID          uuid.UUID   `json:"sponsor_id"`
	Name               string      `json:"name"`
	Description        *string     `json:"description,omitempty"`
	CreativeURL        string      `json:"creative_url"`
	WatermarkID        string      `json:"watermark_id"`
	CallToAction       *string     `json:"call_to_action,omitempty"`
	Targeting          Targeting   `json:"targeting"`
	Economics          Economics   `json:"economics"`
	MaxParticipants    int         `json:"max_participants"`
	TargetImpressions  int64       `json:"target_impressions"`
	CurrentImpressions int64       `json:"current_impressions"`
	Status             string      `json:"status"`
	TotalBudget        money.Money `json:"total_budget"`
	SpentBudget        money.Money `json:"spent_budget"`
	StartDate          *time.Time  `json:"start_date,omitempty"`
	EndDate            *time.Time  `json:"end_date,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

func (c *Campaign) RemainingBudget() money.Money {
	return c.TotalBudget.Sub(c.SpentBudget)
}

// IsRunningAt reports whether an ACTIVE campaign's schedule covers t.
func (c *Campaign) IsRunningAt(t time.Time) bool {
	if c.Status != CampaignStatusActive {
		return false
	}
	if c.StartDate != nil && t.Before(*c.StartDate) {
		return false
	}
	if c.EndDate != nil && t.After(*c.EndDate) {
		return false
	}
	return true
}

type CampaignStats struct {
	TotalImpressions   int64           `json:"total_impressions"`
	UniqueParticipants int             `json:"unique_participants"`
	TotalReshares      int64           `json:"total_reshares"`
	SpentBudget        money.Money     `json:"spent_budget"`
	RemainingBudget    money.Money     `json:"remaining_budget"`
	AvgViewsPerPost    int64           `json:"avg_views_per_post"`
	CompletionRate     decimal.Decimal `json:"completion_rate"`
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
