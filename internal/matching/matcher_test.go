package matching

import (
	"testing"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func activeCampaign() *models.Campaign {
	return &models.Campaign{
		ID:     uuid.New(),
		Status: models.CampaignStatusActive,
		Targeting: models.Targeting{
			Locations: []string{"Nairobi", "KE"},
			AgeRanges: []string{models.AgeRange25to34},
			Interests: []string{"fashion", "tech"},
		},
	}
}

func kenyanParticipant() models.Participant {
	return models.Participant{
		ID:               uuid.New(),
		ContactCount:     500,
		LocationCountry:  strPtr("KE"),
		AgeRange:         strPtr(models.AgeRange25to34),
		Interests:        []string{"fashion", "tech", "sports"},
		AvgViewRate:      dec("0.75"),
		ReputationScore:  dec("0.90"),
		Tier:             models.TierBronze,
		WhatsappVerified: true,
	}
}

func TestMatchFullScore(t *testing.T) {
	p := kenyanParticipant()
	got := NewMatcher().Match(activeCampaign(), []models.Participant{p}, 0)

	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ParticipantID)
	assert.True(t, got[0].Score.Equal(dec("1.00")), "score %s", got[0].Score)
	assert.Equal(t, []string{
		"Location match", "Age range match", "2 interest match(es)", "View rate", "High reputation",
	}, got[0].Reasons)
}

func TestScoreSignals(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *models.Participant)
		score   string
		reasons []string
	}{
		{
			name: "city matches",
			mutate: func(p *models.Participant) {
				p.LocationCountry = strPtr("UG")
				p.LocationCity = strPtr("Nairobi")
			},
			score:   "1.00",
			reasons: []string{"Location match", "Age range match", "2 interest match(es)", "View rate", "High reputation"},
		},
		{
			name: "partial interests",
			mutate: func(p *models.Participant) {
				p.Interests = []string{"tech"}
			},
			score:   "0.85",
			reasons: []string{"Location match", "Age range match", "1 interest match(es)", "View rate", "High reputation"},
		},
		{
			name: "view rate clamped",
			mutate: func(p *models.Participant) {
				p.AvgViewRate = dec("1.7")
				p.ReputationScore = dec("0.8")
			},
			score:   "1.00",
			reasons: []string{"Location match", "Age range match", "2 interest match(es)", "View rate"},
		},
		{
			name: "no age range",
			mutate: func(p *models.Participant) {
				p.AgeRange = nil
			},
			score:   "0.80",
			reasons: []string{"Location match", "2 interest match(es)", "View rate", "High reputation"},
		},
	}

	c := activeCampaign()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := kenyanParticipant()
			tt.mutate(&p)
			score, reasons := Score(&c.Targeting, &p)
			assert.True(t, score.Equal(dec(tt.score)), "score %s, want %s", score, tt.score)
			assert.Equal(t, tt.reasons, reasons)
		})
	}
}

func TestEmptyTargetInterestsContributeNothing(t *testing.T) {
	c := activeCampaign()
	c.Targeting.Interests = nil
	p := kenyanParticipant()

	score, reasons := Score(&c.Targeting, &p)
	assert.True(t, score.Equal(dec("0.70")), "score %s", score)
	assert.NotContains(t, reasons, "0 interest match(es)")
}

func TestScoreAtThresholdIsDropped(t *testing.T) {
	c := activeCampaign()
	p := kenyanParticipant()
	p.AgeRange = nil
	p.Interests = nil
	p.AvgViewRate = decimal.Zero
	p.ReputationScore = decimal.Zero

	score, _ := Score(&c.Targeting, &p)
	require.True(t, score.Equal(dec("0.30")))
	assert.Empty(t, NewMatcher().Match(c, []models.Participant{p}, 10))

	p.AvgViewRate = dec("0.01")
	assert.Len(t, NewMatcher().Match(c, []models.Participant{p}, 10), 1)
}

func TestPrefilterExcludes(t *testing.T) {
	minContacts := 1000
	minRate := dec("0.8")

	tests := []struct {
		name   string
		mutate func(c *models.Campaign, p *models.Participant)
	}{
		{"banned", func(_ *models.Campaign, p *models.Participant) { p.IsBanned = true }},
		{"unverified whatsapp", func(_ *models.Campaign, p *models.Participant) { p.WhatsappVerified = false }},
		{"too few contacts", func(c *models.Campaign, _ *models.Participant) { c.Targeting.MinContactCount = &minContacts }},
		{"low view rate", func(c *models.Campaign, _ *models.Participant) { c.Targeting.MinViewRate = &minRate }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeCampaign()
			p := kenyanParticipant()
			tt.mutate(c, &p)
			assert.Empty(t, NewMatcher().Match(c, []models.Participant{p}, 10))
		})
	}
}

func TestInactiveCampaignMatchesNobody(t *testing.T) {
	for _, status := range []string{
		models.CampaignStatusDraft, models.CampaignStatusPaused,
		models.CampaignStatusCompleted, models.CampaignStatusCancelled,
	} {
		c := activeCampaign()
		c.Status = status
		got := NewMatcher().Match(c, []models.Participant{kenyanParticipant()}, 10)
		assert.NotNil(t, got)
		assert.Empty(t, got, status)
	}
}

func TestOrderingAndLimit(t *testing.T) {
	c := activeCampaign()

	low := kenyanParticipant()
	low.Interests = []string{"tech"}

	tieA := kenyanParticipant()
	tieA.ID = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	tieB := kenyanParticipant()
	tieB.ID = uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	got := NewMatcher().Match(c, []models.Participant{low, tieB, tieA}, 10)
	require.Len(t, got, 3)
	assert.Equal(t, tieA.ID, got[0].ParticipantID)
	assert.Equal(t, tieB.ID, got[1].ParticipantID)
	assert.Equal(t, low.ID, got[2].ParticipantID)

	limited := NewMatcher().Match(c, []models.Participant{low, tieB, tieA}, 2)
	assert.Equal(t, got[:2], limited)
}

func TestMatchIsDeterministic(t *testing.T) {
	c := activeCampaign()
	ps := make([]models.Participant, 0, 20)
	for i := 0; i < 20; i++ {
		p := kenyanParticipant()
		if i%3 == 0 {
			p.Interests = []string{"fashion"}
		}
		if i%4 == 0 {
			p.ReputationScore = dec("0.5")
		}
		ps = append(ps, p)
	}

	first := NewMatcher().Match(c, ps, 0)
	reversed := make([]models.Participant, len(ps))
	for i := range ps {
		reversed[len(ps)-1-i] = ps[i]
	}
	assert.Equal(t, first, NewMatcher().Match(c, reversed, 0))
}
