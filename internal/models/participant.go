package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/money"
	"github.com/shopspring/decimal"
)

// Participant tiers, lowest first.
const (
	TierBronze   = "BRONZE"
	TierSilver   = "SILVER"
	TierGold     = "GOLD"
	TierPlatinum = "PLATINUM"
)

var AllTiers = []string{TierBronze, TierSilver, TierGold, TierPlatinum}

type Participant struct {
	ID                 uuid.UUID       `json:"id"`
	ContactCount       int             `json:"contact_count"`
	Interests          []string        `json:"interests"`
	AgeRange           *string         `json:"age_range,omitempty"`
	LocationCity       *string         `json:"location_city,omitempty"`
	LocationCountry    *string         `json:"location_country,omitempty"`
	AvgViewRate        decimal.Decimal `json:"avg_view_rate"`
	ReputationScore    decimal.Decimal `json:"reputation_score"`
	Tier               string          `json:"tier"`
	TotalEarned        money.Money     `json:"total_earned"`
	CampaignsCompleted int             `json:"campaigns_completed"`
	TotalViews         int64           `json:"total_views"`
	TotalReshares      int64           `json:"total_reshares"`
	WhatsappVerified   bool            `json:"whatsapp_verified"`
	IsBanned           bool            `json:"is_banned"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// MaxPlausibleViews is the highest view count a participant can report for a
// single post: 95% of their contacts.
func (p *Participant) MaxPlausibleViews() decimal.Decimal {
	return decimal.NewFromInt(int64(p.ContactCount)).Mul(decimal.RequireFromString("0.95"))
}

func IsValidTier(t string) bool {
	for _, v := range AllTiers {
		if v == t {
			return true
		}
	}
	return false
}
