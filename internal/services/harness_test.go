package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/earnings"
	"github.com/repostpay/backend/internal/events"
	"github.com/repostpay/backend/internal/matching"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
	"github.com/repostpay/backend/internal/repositories"
	"github.com/repostpay/backend/internal/repositories/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func usd(s string) money.Money { return money.MustParse(s, money.USD) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	t            *testing.T
	ctx          context.Context
	store        *memory.Store
	cfg          *config.Config
	pub          *recordingPublisher
	ledger       *LedgerService
	submissions  *SubmissionService
	campaigns    *CampaignService
	sponsors     *SponsorService
	participants *ParticipantService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		Currency:                money.USD,
		MinPayout:               usd("5"),
		PayoutProcessingTimeout: time.Hour,
	}
	store := memory.NewStore()
	pub := &recordingPublisher{}
	log := zap.NewNop()
	clock := func() time.Time { return testNow }

	ledger := NewLedgerService(store, pub, nil, cfg, log)
	ledger.now = clock
	subs := NewSubmissionService(store, ledger, earnings.NewCalculator(), pub, nil, log)
	subs.now = clock
	campaigns := NewCampaignService(store, matching.NewMatcher(), nil, pub, cfg, log)
	campaigns.now = clock
	sponsors := NewSponsorService(store, ledger, cfg, log)
	sponsors.now = clock
	participants := NewParticipantService(store, cfg, log)
	participants.now = clock

	return &harness{
		t:            t,
		ctx:          context.Background(),
		store:        store,
		cfg:          cfg,
		pub:          pub,
		ledger:       ledger,
		submissions:  subs,
		campaigns:    campaigns,
		sponsors:     sponsors,
		participants: participants,
	}
}

func (h *harness) tx(fn func(tx repositories.Tx) error) {
	h.t.Helper()
	require.NoError(h.t, h.store.WithTx(h.ctx, fn))
}

func (h *harness) sponsor(kind, balance string) *models.Sponsor {
	h.t.Helper()
	sp := &models.Sponsor{
		ID:         uuid.New(),
		Kind:       kind,
		Name:       "Acme",
		Balance:    usd(balance),
		TotalSpent: usd("0"),
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
	h.tx(func(tx repositories.Tx) error { return tx.Sponsors().Create(h.ctx, sp) })
	return sp
}

type campaignOpts struct {
	cpm      string
	flatFee  string
	budget   string
	maxSlots int
	status   string
}

// campaign inserts a campaign directly, bypassing creation checks.
func (h *harness) campaign(sponsorID uuid.UUID, o campaignOpts) *models.Campaign {
	h.t.Helper()
	if o.cpm == "" {
		o.cpm = "10"
	}
	if o.flatFee == "" {
		o.flatFee = "0"
	}
	if o.budget == "" {
		o.budget = "1000"
	}
	if o.maxSlots == 0 {
		o.maxSlots = 100
	}
	if o.status == "" {
		o.status = models.CampaignStatusActive
	}
	c := &models.Campaign{
		ID:          uuid.New(),
		SponsorID:   sponsorID,
		Name:        "Spring drop",
		CreativeURL: "https://cdn.example.com/creative.png",
		WatermarkID: "wm",
		Economics: models.Economics{
			CPMSponsor:     usd(o.cpm).Add(usd("5")),
			CPMParticipant: usd(o.cpm),
			FlatFee:        usd(o.flatFee),
			ReshareBonus:   usd("0"),
		},
		MaxParticipants:   o.maxSlots,
		TargetImpressions: 100000,
		Status:            o.status,
		TotalBudget:       usd(o.budget),
		SpentBudget:       usd("0"),
		CreatedAt:         testNow,
		UpdatedAt:         testNow,
	}
	h.tx(func(tx repositories.Tx) error { return tx.Campaigns().Create(h.ctx, c) })
	return c
}

func (h *harness) participant(contacts int, tier string) *models.Participant {
	h.t.Helper()
	p := &models.Participant{
		ID:               uuid.New(),
		ContactCount:     contacts,
		Interests:        []string{},
		AvgViewRate:      decimal.Zero,
		ReputationScore:  decimal.Zero,
		Tier:             tier,
		TotalEarned:      usd("0"),
		WhatsappVerified: true,
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	}
	h.tx(func(tx repositories.Tx) error { return tx.Participants().Create(h.ctx, p) })
	return p
}

func (h *harness) claimWithMetrics(p *models.Participant, c *models.Campaign, views int64) *models.Submission {
	h.t.Helper()
	sub, err := h.submissions.Claim(h.ctx, ClaimCommand{ParticipantID: p.ID, CampaignID: c.ID})
	require.NoError(h.t, err)
	shot := "https://cdn.example.com/shot.png"
	sub, err = h.submissions.SubmitMetrics(h.ctx, SubmitMetricsCommand{
		SubmissionID:  sub.ID,
		ParticipantID: p.ID,
		Views:         views,
		ScreenshotURL: &shot,
	})
	require.NoError(h.t, err)
	return sub
}

func (h *harness) verified(p *models.Participant, c *models.Campaign, views int64) *models.Submission {
	h.t.Helper()
	sub := h.claimWithMetrics(p, c, views)
	sub, err := h.submissions.Verify(h.ctx, VerifyCommand{
		SubmissionID: sub.ID,
		Outcome:      models.SubmissionStatusVerified,
		VerifiedBy:   "ops",
		Actor:        SystemActor,
	})
	require.NoError(h.t, err)
	return sub
}

func (h *harness) getSponsor(id uuid.UUID) *models.Sponsor {
	h.t.Helper()
	var sp *models.Sponsor
	h.tx(func(tx repositories.Tx) error {
		var err error
		sp, err = tx.Sponsors().Get(h.ctx, id)
		return err
	})
	return sp
}

func (h *harness) getCampaign(id uuid.UUID) *models.Campaign {
	h.t.Helper()
	var c *models.Campaign
	h.tx(func(tx repositories.Tx) error {
		var err error
		c, err = tx.Campaigns().Get(h.ctx, id)
		return err
	})
	return c
}

func (h *harness) getParticipant(id uuid.UUID) *models.Participant {
	h.t.Helper()
	var p *models.Participant
	h.tx(func(tx repositories.Tx) error {
		var err error
		p, err = tx.Participants().Get(h.ctx, id)
		return err
	})
	return p
}

func (h *harness) getSubmission(id uuid.UUID) *models.Submission {
	h.t.Helper()
	var s *models.Submission
	h.tx(func(tx repositories.Tx) error {
		var err error
		s, err = tx.Submissions().Get(h.ctx, id)
		return err
	})
	return s
}

func mpesa(participantID uuid.UUID, amount string) PayoutRequest {
	phone := "+254700000000"
	return PayoutRequest{
		ParticipantID: participantID,
		Amount:        usd(amount),
		Method:        models.PayoutMethodMPesa,
		PhoneNumber:   &phone,
	}
}
