package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/events"
	"github.com/repostpay/backend/internal/matching"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
	"github.com/repostpay/backend/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MatchCache memoises ranked matches per campaign and limit.
type MatchCache interface {
	Get(ctx context.Context, campaignID uuid.UUID, limit int) ([]matching.Match, bool, error)
	Set(ctx context.Context, campaignID uuid.UUID, limit int, matches []matching.Match) error
	Invalidate(ctx context.Context, campaignID uuid.UUID) error
}

type CampaignService struct {
	store     repositories.Store
	matcher   *matching.Matcher
	cache     MatchCache
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

func NewCampaignService(
	store repositories.Store,
	matcher *matching.Matcher,
	cache MatchCache,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *CampaignService {
	return &CampaignService{
		store:     store,
		matcher:   matcher,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

type CreateCampaignCommand struct {
	SponsorID         uuid.UUID
	Name              string
	Description       *string
	CreativeURL       string
	CallToAction      *string
	Targeting         models.Targeting
	Economics         models.Economics
	TotalBudget       money.Money
	MaxParticipants   int
	TargetImpressions int64
	StartDate         *time.Time
	EndDate           *time.Time
}

// CampaignPatch lists the draft fields a sponsor may change. Nil fields are
// left alone.
type CampaignPatch struct {
	Name              *string
	Description       *string
	CreativeURL       *string
	CallToAction      *string
	Targeting         *models.Targeting
	Economics         *models.Economics
	TotalBudget       *money.Money
	MaxParticipants   *int
	TargetImpressions *int64
	StartDate         *time.Time
	EndDate           *time.Time
}

func (s *CampaignService) Create(ctx context.Context, cmd CreateCampaignCommand) (*models.Campaign, error) {
	now := s.now()
	c := &models.Campaign{
		ID:                uuid.New(),
		SponsorID:         cmd.SponsorID,
		Name:              cmd.Name,
		Description:       cmd.Description,
		CreativeURL:       cmd.CreativeURL,
		CallToAction:      cmd.CallToAction,
		Targeting:         cmd.Targeting,
		Economics:         s.tagEconomics(cmd.Economics),
		MaxParticipants:   cmd.MaxParticipants,
		TargetImpressions: cmd.TargetImpressions,
		Status:            models.CampaignStatusDraft,
		TotalBudget:       s.tag(cmd.TotalBudget),
		SpentBudget:       money.Zero(s.cfg.Currency),
		StartDate:         cmd.StartDate,
		EndDate:           cmd.EndDate,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := validateCampaign(c); err != nil {
		return nil, err
	}
	watermark, err := newWatermarkID()
	if err != nil {
		return nil, fmt.Errorf("generate watermark: %w", err)
	}
	c.WatermarkID = watermark

	err = s.store.WithTx(ctx, func(tx repositories.Tx) error {
		sponsor, err := tx.Sponsors().GetForUpdate(ctx, cmd.SponsorID)
		if err != nil {
			return err
		}
		if sponsor.Balance.LessThan(c.TotalBudget) {
			return apperr.New(apperr.KindInsufficientBalance,
				"sponsor %s balance %s cannot fund budget %s", sponsor.ID, sponsor.Balance, c.TotalBudget)
		}
		if err := tx.Campaigns().Create(ctx, c); err != nil {
			return err
		}
		sponsor.TotalCampaigns++
		sponsor.UpdatedAt = now
		if err := tx.Sponsors().Update(ctx, sponsor); err != nil {
			return fmt.Errorf("update sponsor: %w", err)
		}
		return writeAudit(ctx, tx, now, SponsorActor(sponsor.ID), "campaign_created", "campaign", c.ID, map[string]any{
			"total_budget": c.TotalBudget.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("campaign created", zap.String("campaign_id", c.ID.String()), zap.String("sponsor_id", c.SponsorID.String()))
	return c, nil
}

// UpdateDraft applies patch to a DRAFT campaign owned by sponsorID.
func (s *CampaignService) UpdateDraft(ctx context.Context, campaignID, sponsorID uuid.UUID, patch CampaignPatch) (*models.Campaign, error) {
	var c *models.Campaign
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		current, err := s.ownedForUpdate(ctx, tx, campaignID, &sponsorID)
		if err != nil {
			return err
		}
		if current.Status != models.CampaignStatusDraft {
			return apperr.New(apperr.KindInvalidState, "campaign %s is %s; only drafts can be edited", current.ID, current.Status)
		}
		s.applyPatch(current, patch)
		if err := validateCampaign(current); err != nil {
			return err
		}
		now := s.now()
		current.UpdatedAt = now
		if err := tx.Campaigns().Update(ctx, current); err != nil {
			return fmt.Errorf("update campaign: %w", err)
		}
		c = current
		return writeAudit(ctx, tx, now, SponsorActor(sponsorID), "campaign_updated", "campaign", current.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, campaignID)
	return c, nil
}

func (s *CampaignService) applyPatch(c *models.Campaign, p CampaignPatch) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = p.Description
	}
	if p.CreativeURL != nil {
		c.CreativeURL = *p.CreativeURL
	}
	if p.CallToAction != nil {
		c.CallToAction = p.CallToAction
	}
	if p.Targeting != nil {
		c.Targeting = *p.Targeting
	}
	if p.Economics != nil {
		c.Economics = s.tagEconomics(*p.Economics)
	}
	if p.TotalBudget != nil {
		c.TotalBudget = s.tag(*p.TotalBudget)
	}
	if p.MaxParticipants != nil {
		c.MaxParticipants = *p.MaxParticipants
	}
	if p.TargetImpressions != nil {
		c.TargetImpressions = *p.TargetImpressions
	}
	if p.StartDate != nil {
		c.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		c.EndDate = p.EndDate
	}
}

// SetStatus moves a campaign along the status table. A nil sponsorID skips
// the ownership check for operators.
func (s *CampaignService) SetStatus(ctx context.Context, campaignID uuid.UUID, sponsorID *uuid.UUID, status string, actor Actor) (*models.Campaign, error) {
	var (
		c    *models.Campaign
		from string
	)
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		current, err := s.ownedForUpdate(ctx, tx, campaignID, sponsorID)
		if err != nil {
			return err
		}
		from = current.Status
		if !models.IsValidCampaignTransition(current.Status, status) {
			return apperr.New(apperr.KindInvalidState, "campaign %s cannot move from %s to %s", current.ID, current.Status, status)
		}

		now := s.now()
		if status == models.CampaignStatusActive {
			if current.SpentBudget.GreaterThan(current.TotalBudget) {
				return apperr.New(apperr.KindBudgetExceeded, "campaign %s has overspent its budget", current.ID)
			}
			sponsor, err := tx.Sponsors().Get(ctx, current.SponsorID)
			if err != nil {
				return err
			}
			if remaining := current.RemainingBudget(); sponsor.Balance.LessThan(remaining) {
				return apperr.New(apperr.KindInsufficientBalance,
					"sponsor %s balance %s cannot fund remaining budget %s", sponsor.ID, sponsor.Balance, remaining)
			}
			if current.StartDate == nil {
				current.StartDate = &now
			}
		}

		current.Status = status
		current.UpdatedAt = now
		if err := tx.Campaigns().Update(ctx, current); err != nil {
			return fmt.Errorf("update campaign: %w", err)
		}
		c = current
		return writeAudit(ctx, tx, now, actor, "campaign_status_changed", "campaign", current.ID, map[string]any{
			"from": from,
			"to":   status,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, campaignID)
	s.log.Info("campaign status updated",
		zap.String("campaign_id", campaignID.String()),
		zap.String("from", from),
		zap.String("to", status),
	)
	publish(ctx, s.publisher, s.log, events.StreamCampaigns, events.Event{
		Type: events.EventCampaignStatusChanged,
		Payload: map[string]any{
			"campaign_id": campaignID.String(),
			"sponsor_id":  c.SponsorID.String(),
			"from":        from,
			"to":          status,
		},
	})
	return c, nil
}

// Get returns a campaign; a non-nil sponsorID restricts it to its owner.
func (s *CampaignService) Get(ctx context.Context, campaignID uuid.UUID, sponsorID *uuid.UUID) (*models.Campaign, error) {
	var c *models.Campaign
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		c, err = tx.Campaigns().Get(ctx, campaignID)
		if err != nil {
			return err
		}
		return checkOwner(c, sponsorID)
	})
	return c, err
}

// ListAvailable returns ACTIVE campaigns whose schedule covers now.
func (s *CampaignService) ListAvailable(ctx context.Context) ([]models.Campaign, error) {
	var active []models.Campaign
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		active, err = tx.Campaigns().ListByStatus(ctx, models.CampaignStatusActive)
		return err
	})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]models.Campaign, 0, len(active))
	for i := range active {
		if active[i].IsRunningAt(now) {
			out = append(out, active[i])
		}
	}
	return out, nil
}

func (s *CampaignService) ListBySponsor(ctx context.Context, sponsorID uuid.UUID) ([]models.Campaign, error) {
	var list []models.Campaign
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		list, err = tx.Campaigns().ListBySponsor(ctx, sponsorID)
		return err
	})
	return list, err
}

func (s *CampaignService) Stats(ctx context.Context, campaignID uuid.UUID, sponsorID *uuid.UUID) (*models.CampaignStats, error) {
	var (
		c    *models.Campaign
		subs []models.Submission
	)
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		c, err = tx.Campaigns().Get(ctx, campaignID)
		if err != nil {
			return err
		}
		if err := checkOwner(c, sponsorID); err != nil {
			return err
		}
		subs, err = tx.Submissions().ListByCampaign(ctx, campaignID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return campaignStats(c, subs), nil
}

func campaignStats(c *models.Campaign, subs []models.Submission) *models.CampaignStats {
	stats := &models.CampaignStats{
		TotalImpressions: c.CurrentImpressions,
		SpentBudget:      c.SpentBudget,
		RemainingBudget:  c.RemainingBudget(),
		CompletionRate:   decimal.Zero,
	}

	participants := make(map[uuid.UUID]struct{})
	var views int64
	counted := 0
	for i := range subs {
		sub := &subs[i]
		if sub.Status != models.SubmissionStatusVerified && sub.Status != models.SubmissionStatusPaid {
			continue
		}
		counted++
		participants[sub.ParticipantID] = struct{}{}
		views += sub.Views()
		stats.TotalReshares += sub.Reshares()
	}
	stats.UniqueParticipants = len(participants)
	if counted > 0 {
		stats.AvgViewsPerPost = decimal.NewFromInt(views).
			Div(decimal.NewFromInt(int64(counted))).Round(0).IntPart()
	}
	if c.TargetImpressions > 0 {
		rate := decimal.NewFromInt(c.CurrentImpressions).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(c.TargetImpressions))
		stats.CompletionRate = decimal.Min(rate, decimal.NewFromInt(100))
	}
	return stats
}

// MatchParticipants ranks eligible participants for an ACTIVE campaign.
// Cache failures fall through to a fresh computation.
func (s *CampaignService) MatchParticipants(ctx context.Context, campaignID uuid.UUID, sponsorID *uuid.UUID, limit int) ([]matching.Match, error) {
	if limit <= 0 {
		limit = matching.DefaultLimit
	}

	var (
		c            *models.Campaign
		participants []models.Participant
	)
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		c, err = tx.Campaigns().Get(ctx, campaignID)
		if err != nil {
			return err
		}
		return checkOwner(c, sponsorID)
	})
	if err != nil {
		return nil, err
	}
	if c.Status != models.CampaignStatusActive {
		return []matching.Match{}, nil
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, campaignID, limit)
		if err != nil {
			s.log.Warn("match cache read failed", zap.String("campaign_id", campaignID.String()), zap.Error(err))
		} else if ok {
			return s.dropIneligible(ctx, c, cached)
		}
	}

	err = s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		participants, err = tx.Participants().ListEligible(ctx, c.Targeting)
		return err
	})
	if err != nil {
		return nil, err
	}
	matches := s.matcher.Match(c, participants, limit)

	if s.cache != nil {
		if err := s.cache.Set(ctx, campaignID, limit, matches); err != nil {
			s.log.Warn("match cache write failed", zap.String("campaign_id", campaignID.String()), zap.Error(err))
		}
	}
	return matches, nil
}

// dropIneligible re-applies the pre-filter to cached matches against the
// current participant rows. Ranking is left as cached.
func (s *CampaignService) dropIneligible(ctx context.Context, c *models.Campaign, cached []matching.Match) ([]matching.Match, error) {
	out := make([]matching.Match, 0, len(cached))
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		out = out[:0]
		for _, m := range cached {
			p, err := tx.Participants().Get(ctx, m.ParticipantID)
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if matching.Eligible(&c.Targeting, p) {
				out = append(out, m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CampaignService) invalidate(ctx context.Context, campaignID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, campaignID); err != nil {
		s.log.Warn("match cache invalidation failed", zap.String("campaign_id", campaignID.String()), zap.Error(err))
	}
}

func (s *CampaignService) ownedForUpdate(ctx context.Context, tx repositories.Tx, campaignID uuid.UUID, sponsorID *uuid.UUID) (*models.Campaign, error) {
	c, err := tx.Campaigns().GetForUpdate(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(c, sponsorID); err != nil {
		return nil, err
	}
	return c, nil
}

func checkOwner(c *models.Campaign, sponsorID *uuid.UUID) error {
	if sponsorID != nil && c.SponsorID != *sponsorID {
		return apperr.New(apperr.KindForbidden, "campaign %s belongs to another sponsor", c.ID)
	}
	return nil
}

func (s *CampaignService) tag(m money.Money) money.Money {
	if m.Currency == "" {
		m.Currency = s.cfg.Currency
	}
	return m
}

func (s *CampaignService) tagEconomics(e models.Economics) models.Economics {
	e.CPMSponsor = s.tag(e.CPMSponsor)
	e.CPMParticipant = s.tag(e.CPMParticipant)
	e.FlatFee = s.tag(e.FlatFee)
	e.ReshareBonus = s.tag(e.ReshareBonus)
	return e
}

func validateCampaign(c *models.Campaign) error {
	switch {
	case c.Name == "":
		return apperr.New(apperr.KindValidation, "name is required")
	case c.CreativeURL == "":
		return apperr.New(apperr.KindValidation, "creative url is required")
	case !c.TotalBudget.IsPositive():
		return apperr.New(apperr.KindValidation, "total budget must be positive")
	case c.MaxParticipants <= 0:
		return apperr.New(apperr.KindValidation, "max participants must be positive")
	case c.TargetImpressions <= 0:
		return apperr.New(apperr.KindValidation, "target impressions must be positive")
	case !c.Economics.CPMSponsor.IsPositive():
		return apperr.New(apperr.KindValidation, "sponsor cpm must be positive")
	case c.Economics.CPMParticipant.IsNegative(), c.Economics.FlatFee.IsNegative(), c.Economics.ReshareBonus.IsNegative():
		return apperr.New(apperr.KindValidation, "campaign rates must not be negative")
	case !c.Economics.CPMParticipant.LessThan(c.Economics.CPMSponsor):
		return apperr.New(apperr.KindValidation, "participant cpm %s must be below sponsor cpm %s",
			c.Economics.CPMParticipant, c.Economics.CPMSponsor)
	case c.StartDate != nil && c.EndDate != nil && !c.EndDate.After(*c.StartDate):
		return apperr.New(apperr.KindValidation, "end date must be after start date")
	}
	for _, r := range c.Targeting.AgeRanges {
		if !models.IsValidAgeRange(r) {
			return apperr.New(apperr.KindValidation, "unknown age range %q", r)
		}
	}
	for _, i := range c.Targeting.Interests {
		if !models.IsValidInterest(i) {
			return apperr.New(apperr.KindValidation, "unknown interest %q", i)
		}
	}
	if t := c.Targeting; t.MinViewRate != nil && (t.MinViewRate.IsNegative() || t.MinViewRate.GreaterThan(decimal.NewFromInt(1))) {
		return apperr.New(apperr.KindValidation, "min view rate must be within [0, 1]")
	}
	return nil
}

func newWatermarkID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
