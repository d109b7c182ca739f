package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
)

type SponsorRepo struct {
	q   querier
	cur money.Currency
}

const sponsorColumns = `id, kind, name, balance::text, total_spent::text, total_campaigns,
	total_impressions, created_at, updated_at`

func (r *SponsorRepo) Create(ctx context.Context, s *models.Sponsor) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO sponsors (id, kind, name, balance, total_spent, total_campaigns, total_impressions, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9)
	`, s.ID, s.Kind, s.Name, s.Balance.String(), s.TotalSpent.String(),
		s.TotalCampaigns, s.TotalImpressions, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *SponsorRepo) Get(ctx context.Context, id uuid.UUID) (*models.Sponsor, error) {
	return r.get(ctx, `SELECT `+sponsorColumns+` FROM sponsors WHERE id = $1`, id)
}

func (r *SponsorRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Sponsor, error) {
	return r.get(ctx, `SELECT `+sponsorColumns+` FROM sponsors WHERE id = $1 FOR UPDATE`, id)
}

func (r *SponsorRepo) get(ctx context.Context, query string, id uuid.UUID) (*models.Sponsor, error) {
	var s models.Sponsor
	err := r.q.QueryRow(ctx, query, id).Scan(&s.ID, &s.Kind, &s.Name, &s.Balance.Amount, &s.TotalSpent.Amount,
		&s.TotalCampaigns, &s.TotalImpressions, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "sponsor", id)
	}
	tag(r.cur, &s.Balance, &s.TotalSpent)
	return &s, nil
}

func (r *SponsorRepo) Update(ctx context.Context, s *models.Sponsor) error {
	_, err := r.q.Exec(ctx, `
		UPDATE sponsors SET name = $1, balance = $2::numeric, total_spent = $3::numeric,
		       total_campaigns = $4, total_impressions = $5, updated_at = $6
		WHERE id = $7
	`, s.Name, s.Balance.String(), s.TotalSpent.String(), s.TotalCampaigns, s.TotalImpressions, s.UpdatedAt, s.ID)
	return err
}
