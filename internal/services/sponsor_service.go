package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
	"github.com/repostpay/backend/internal/repositories"
	"go.uber.org/zap"
)

type SponsorService struct {
	store  repositories.Store
	ledger *LedgerService
	cfg    *config.Config
	log    *zap.Logger
	now    func() time.Time
}

func NewSponsorService(store repositories.Store, ledger *LedgerService, cfg *config.Config, log *zap.Logger) *SponsorService {
	return &SponsorService{store: store, ledger: ledger, cfg: cfg, log: log, now: time.Now}
}

// Create opens a sponsor account with a zero balance.
func (s *SponsorService) Create(ctx context.Context, kind, name string, actor Actor) (*models.Sponsor, error) {
	kind = strings.ToUpper(kind)
	if !models.IsValidSponsorKind(kind) {
		return nil, apperr.New(apperr.KindValidation, "unknown sponsor kind %q", kind)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.KindValidation, "name is required")
	}

	now := s.now()
	sp := &models.Sponsor{
		ID:         uuid.New(),
		Kind:       kind,
		Name:       name,
		Balance:    money.Zero(s.cfg.Currency),
		TotalSpent: money.Zero(s.cfg.Currency),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		if err := tx.Sponsors().Create(ctx, sp); err != nil {
			return err
		}
		return writeAudit(ctx, tx, now, actor, "sponsor_created", "sponsor", sp.ID, map[string]any{"kind": kind})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("sponsor created", zap.String("sponsor_id", sp.ID.String()), zap.String("kind", kind))
	return sp, nil
}

// TopUp credits a sponsor's balance through the ledger.
func (s *SponsorService) TopUp(ctx context.Context, sponsorID uuid.UUID, amount money.Money, actor Actor) (*models.Sponsor, error) {
	if amount.Currency == "" {
		amount.Currency = s.cfg.Currency
	}
	return s.ledger.CreditSponsor(ctx, sponsorID, amount, actor)
}

func (s *SponsorService) Get(ctx context.Context, sponsorID uuid.UUID) (*models.Sponsor, error) {
	var sp *models.Sponsor
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		sp, err = tx.Sponsors().Get(ctx, sponsorID)
		return err
	})
	return sp, err
}

func (s *SponsorService) Stats(ctx context.Context, sponsorID uuid.UUID) (*models.SponsorStats, error) {
	var (
		sp        *models.Sponsor
		campaigns []models.Campaign
	)
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		if sp, err = tx.Sponsors().Get(ctx, sponsorID); err != nil {
			return err
		}
		campaigns, err = tx.Campaigns().ListBySponsor(ctx, sponsorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	stats := &models.SponsorStats{
		Balance:        sp.Balance,
		TotalSpent:     sp.TotalSpent,
		TotalCampaigns: sp.TotalCampaigns,
	}
	for i := range campaigns {
		if campaigns[i].Status == models.CampaignStatusActive {
			stats.ActiveCampaigns++
		}
		stats.TotalImpressions += campaigns[i].CurrentImpressions
	}
	return stats, nil
}
