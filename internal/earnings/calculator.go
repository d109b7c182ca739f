// Package earnings turns reported views into a payable breakdown.
package earnings

import (
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
	"github.com/shopspring/decimal"
)

var tierMultipliers = map[string]decimal.Decimal{
	models.TierBronze:   decimal.RequireFromString("1.00"),
	models.TierSilver:   decimal.RequireFromString("1.10"),
	models.TierGold:     decimal.RequireFromString("1.20"),
	models.TierPlatinum: decimal.RequireFromString("1.30"),
}

// TierMultiplier returns 1 for unknown tiers.
func TierMultiplier(tier string) decimal.Decimal {
	if m, ok := tierMultipliers[tier]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// Compute does not check views against the participant's contact bound;
// callers reject implausible counts before getting here.
func (c *Calculator) Compute(views int64, campaign *models.Campaign, participant *models.Participant, isReshare bool) models.EarningsBreakdown {
	cpm := campaign.Economics.CPMParticipant
	cur := cpm.Currency

	// Components are rounded to the ledger scale before summing so the
	// stored breakdown adds up to the stored total.
	base := money.New(decimal.NewFromInt(views).Mul(cpm.Amount).Shift(-3), cur).Round()

	flatFee := money.Zero(cur)
	if !isReshare {
		flatFee = campaign.Economics.FlatFee.Round()
	}

	tierBonus := base.Mul(TierMultiplier(participant.Tier).Sub(decimal.NewFromInt(1))).Round()

	// Reshare attribution and streaks are not tracked yet; both stay zero so
	// the breakdown keeps a stable shape.
	reshareBonus := money.Zero(cur)
	streakBonus := money.Zero(cur)

	total := money.Sum(cur, base, flatFee, reshareBonus, tierBonus, streakBonus)

	return models.EarningsBreakdown{
		Base:         base,
		FlatFee:      flatFee,
		TierBonus:    tierBonus,
		ReshareBonus: reshareBonus,
		StreakBonus:  streakBonus,
		Total:        total,
	}
}
