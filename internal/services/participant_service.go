package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
	"github.com/repostpay/backend/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ParticipantService struct {
	store repositories.Store
	cfg   *config.Config
	log   *zap.Logger
	now   func() time.Time
}

func NewParticipantService(store repositories.Store, cfg *config.Config, log *zap.Logger) *ParticipantService {
	return &ParticipantService{store: store, cfg: cfg, log: log, now: time.Now}
}

// ProfilePatch holds the fields a participant edits themselves. Nil fields
// are left alone.
type ProfilePatch struct {
	ContactCount    *int
	Interests       []string
	AgeRange        *string
	LocationCity    *string
	LocationCountry *string
}

// StandingPatch holds operator-managed fields.
type StandingPatch struct {
	AvgViewRate      *decimal.Decimal
	ReputationScore  *decimal.Decimal
	Tier             *string
	WhatsappVerified *bool
	IsBanned         *bool
}

// Register creates a BRONZE participant for an authenticated user id.
func (s *ParticipantService) Register(ctx context.Context, id uuid.UUID, profile ProfilePatch) (*models.Participant, error) {
	now := s.now()
	p := &models.Participant{
		ID:              id,
		Interests:       []string{},
		AvgViewRate:     decimal.Zero,
		ReputationScore: decimal.Zero,
		Tier:            models.TierBronze,
		TotalEarned:     money.Zero(s.cfg.Currency),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := applyProfile(p, profile); err != nil {
		return nil, err
	}

	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		if err := tx.Participants().Create(ctx, p); err != nil {
			return err
		}
		return writeAudit(ctx, tx, now, ParticipantActor(id), "participant_registered", "participant", id, nil)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("participant registered", zap.String("participant_id", id.String()))
	return p, nil
}

func (s *ParticipantService) UpdateProfile(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*models.Participant, error) {
	var p *models.Participant
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		current, err := tx.Participants().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := applyProfile(current, patch); err != nil {
			return err
		}
		now := s.now()
		current.UpdatedAt = now
		if err := tx.Participants().Update(ctx, current); err != nil {
			return fmt.Errorf("update participant: %w", err)
		}
		p = current
		return writeAudit(ctx, tx, now, ParticipantActor(id), "participant_profile_updated", "participant", id, nil)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("participant profile updated", zap.String("participant_id", id.String()))
	return p, nil
}

// UpdateStanding lets an operator adjust tier, reputation, verification and
// ban state.
func (s *ParticipantService) UpdateStanding(ctx context.Context, id uuid.UUID, patch StandingPatch, actor Actor) (*models.Participant, error) {
	if patch.Tier != nil && !models.IsValidTier(*patch.Tier) {
		return nil, apperr.New(apperr.KindValidation, "unknown tier %q", *patch.Tier)
	}
	if r := patch.AvgViewRate; r != nil && (r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1))) {
		return nil, apperr.New(apperr.KindValidation, "avg view rate must be within [0, 1]")
	}
	if r := patch.ReputationScore; r != nil && (r.IsNegative() || r.GreaterThan(decimal.NewFromInt(1))) {
		return nil, apperr.New(apperr.KindValidation, "reputation score must be within [0, 1]")
	}

	var p *models.Participant
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		current, err := tx.Participants().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if patch.AvgViewRate != nil {
			current.AvgViewRate = *patch.AvgViewRate
		}
		if patch.ReputationScore != nil {
			current.ReputationScore = *patch.ReputationScore
		}
		if patch.Tier != nil {
			current.Tier = *patch.Tier
		}
		if patch.WhatsappVerified != nil {
			current.WhatsappVerified = *patch.WhatsappVerified
		}
		if patch.IsBanned != nil {
			current.IsBanned = *patch.IsBanned
		}
		now := s.now()
		current.UpdatedAt = now
		if err := tx.Participants().Update(ctx, current); err != nil {
			return fmt.Errorf("update participant: %w", err)
		}
		p = current
		return writeAudit(ctx, tx, now, actor, "participant_standing_updated", "participant", id, map[string]any{
			"tier":      current.Tier,
			"is_banned": current.IsBanned,
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("participant standing updated",
		zap.String("participant_id", id.String()),
		zap.String("tier", p.Tier),
		zap.Bool("banned", p.IsBanned),
	)
	return p, nil
}

func (s *ParticipantService) Get(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	var p *models.Participant
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		p, err = tx.Participants().Get(ctx, id)
		return err
	})
	return p, err
}

func applyProfile(p *models.Participant, patch ProfilePatch) error {
	if patch.ContactCount != nil {
		if *patch.ContactCount < 0 {
			return apperr.New(apperr.KindValidation, "contact count must not be negative")
		}
		p.ContactCount = *patch.ContactCount
	}
	if patch.Interests != nil {
		for _, i := range patch.Interests {
			if !models.IsValidInterest(i) {
				return apperr.New(apperr.KindValidation, "unknown interest %q", i)
			}
		}
		p.Interests = append([]string(nil), patch.Interests...)
	}
	if patch.AgeRange != nil {
		if !models.IsValidAgeRange(*patch.AgeRange) {
			return apperr.New(apperr.KindValidation, "unknown age range %q", *patch.AgeRange)
		}
		p.AgeRange = patch.AgeRange
	}
	if patch.LocationCity != nil {
		p.LocationCity = patch.LocationCity
	}
	if patch.LocationCountry != nil {
		p.LocationCountry = patch.LocationCountry
	}
	return nil
}
