// Package matching scores participants against a campaign's targeting.
package matching

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/models"
	"github.com/shopspring/decimal"
)

const DefaultLimit = 100

var (
	weightLocation    = decimal.RequireFromString("0.30")
	weightAgeRange    = decimal.RequireFromString("0.20")
	weightInterests   = decimal.RequireFromString("0.30")
	weightPerformance = decimal.RequireFromString("0.20")
	reputationBonus   = decimal.RequireFromString("0.05")
	reputationCutoff  = decimal.RequireFromString("0.8")
	minScore          = decimal.RequireFromString("0.30")
)

type Match struct {
	ParticipantID uuid.UUID       `json:"participant_id"`
	Score         decimal.Decimal `json:"score"`
	Reasons       []string        `json:"reasons"`
}

type Matcher struct{}

func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match returns the eligible participants scoring above the cut-off, best
// first. Inactive campaigns match nobody.
func (m *Matcher) Match(campaign *models.Campaign, participants []models.Participant, limit int) []Match {
	if campaign == nil || campaign.Status != models.CampaignStatusActive {
		return []Match{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	matches := make([]Match, 0, len(participants))
	for i := range participants {
		p := &participants[i]
		if !Eligible(&campaign.Targeting, p) {
			continue
		}
		score, reasons := Score(&campaign.Targeting, p)
		if score.LessThanOrEqual(minScore) {
			continue
		}
		matches = append(matches, Match{ParticipantID: p.ID, Score: score, Reasons: reasons})
	}

	sort.Slice(matches, func(i, j int) bool {
		if c := matches[i].Score.Cmp(matches[j].Score); c != 0 {
			return c > 0
		}
		return matches[i].ParticipantID.String() < matches[j].ParticipantID.String()
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Eligible applies the pre-filter. Unset thresholds always pass.
func Eligible(t *models.Targeting, p *models.Participant) bool {
	if p.IsBanned || !p.WhatsappVerified {
		return false
	}
	if t.MinContactCount != nil && p.ContactCount < *t.MinContactCount {
		return false
	}
	if t.MinViewRate != nil && p.AvgViewRate.LessThan(*t.MinViewRate) {
		return false
	}
	return true
}

// Score sums the weighted signals. The reputation bonus sits outside the
// weights, so a score may exceed 1.
func Score(t *models.Targeting, p *models.Participant) (decimal.Decimal, []string) {
	score := decimal.Zero
	reasons := []string{}

	if matchesLocation(t.Locations, p) {
		score = score.Add(weightLocation)
		reasons = append(reasons, "Location match")
	}

	if p.AgeRange != nil && containsString(t.AgeRanges, *p.AgeRange) {
		score = score.Add(weightAgeRange)
		reasons = append(reasons, "Age range match")
	}

	if n, d := interestOverlap(t.Interests, p.Interests); n > 0 {
		part := weightInterests.Mul(decimal.NewFromInt(int64(n))).Div(decimal.NewFromInt(int64(d)))
		score = score.Add(part)
		reasons = append(reasons, fmt.Sprintf("%d interest match(es)", n))
	}

	rate := clampFraction(p.AvgViewRate)
	if rate.IsPositive() {
		score = score.Add(weightPerformance.Mul(rate))
		reasons = append(reasons, "View rate")
	}

	if p.ReputationScore.GreaterThan(reputationCutoff) {
		score = score.Add(reputationBonus)
		reasons = append(reasons, "High reputation")
	}

	return score, reasons
}

func matchesLocation(targets []string, p *models.Participant) bool {
	for _, loc := range targets {
		if p.LocationCity != nil && *p.LocationCity == loc {
			return true
		}
		if p.LocationCountry != nil && *p.LocationCountry == loc {
			return true
		}
	}
	return false
}

// interestOverlap returns how many distinct target interests the participant
// shares and how many distinct target interests there are.
func interestOverlap(targets, interests []string) (int, int) {
	if len(targets) == 0 {
		return 0, 0
	}
	have := make(map[string]struct{}, len(interests))
	for _, i := range interests {
		have[i] = struct{}{}
	}
	seen := make(map[string]struct{}, len(targets))
	n := 0
	for _, t := range targets {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := have[t]; ok {
			n++
		}
	}
	return n, len(seen)
}

func clampFraction(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
