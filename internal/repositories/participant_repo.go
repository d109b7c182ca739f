package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
)

type ParticipantRepo struct {
	q   querier
	cur money.Currency
}

const participantColumns = `id, contact_count, interests, age_range, location_city, location_country,
	avg_view_rate::text, reputation_score::text, tier, total_earned::text, campaigns_completed,
	total_views, total_reshares, whatsapp_verified, is_banned, created_at, updated_at`

func (r *ParticipantRepo) Create(ctx context.Context, p *models.Participant) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO participants (
			id, contact_count, interests, age_range, location_city, location_country,
			avg_view_rate, reputation_score, tier, total_earned, campaigns_completed,
			total_views, total_reshares, whatsapp_verified, is_banned, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10::numeric, $11, $12, $13, $14, $15, $16, $17)
	`, p.ID, p.ContactCount, nonNil(p.Interests), p.AgeRange, p.LocationCity, p.LocationCountry,
		p.AvgViewRate.String(), p.ReputationScore.String(), p.Tier, p.TotalEarned.String(),
		p.CampaignsCompleted, p.TotalViews, p.TotalReshares, p.WhatsappVerified, p.IsBanned,
		p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return conflict("participant %s already exists", p.ID)
	}
	return err
}

func (r *ParticipantRepo) Get(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	p, err := r.scan(r.q.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "participant", id)
	}
	return p, nil
}

func (r *ParticipantRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	p, err := r.scan(r.q.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "participant", id)
	}
	return p, nil
}

func (r *ParticipantRepo) Update(ctx context.Context, p *models.Participant) error {
	_, err := r.q.Exec(ctx, `
		UPDATE participants SET
			contact_count = $1, interests = $2, age_range = $3, location_city = $4, location_country = $5,
			avg_view_rate = $6::numeric, reputation_score = $7::numeric, tier = $8,
			total_earned = $9::numeric, campaigns_completed = $10, total_views = $11, total_reshares = $12,
			whatsapp_verified = $13, is_banned = $14, updated_at = $15
		WHERE id = $16
	`, p.ContactCount, nonNil(p.Interests), p.AgeRange, p.LocationCity, p.LocationCountry,
		p.AvgViewRate.String(), p.ReputationScore.String(), p.Tier,
		p.TotalEarned.String(), p.CampaignsCompleted, p.TotalViews, p.TotalReshares,
		p.WhatsappVerified, p.IsBanned, p.UpdatedAt, p.ID)
	return err
}

func (r *ParticipantRepo) ListEligible(ctx context.Context, t models.Targeting) ([]models.Participant, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+participantColumns+` FROM participants
		WHERE is_banned = false AND whatsapp_verified = true
		  AND ($1::int IS NULL OR contact_count >= $1::int)
		  AND ($2::numeric IS NULL OR avg_view_rate >= $2::numeric)
		ORDER BY id
	`, t.MinContactCount, decimalOrNil(t.MinViewRate))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []models.Participant
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

func (r *ParticipantRepo) scan(row rowScanner) (*models.Participant, error) {
	var p models.Participant
	err := row.Scan(&p.ID, &p.ContactCount, &p.Interests, &p.AgeRange, &p.LocationCity, &p.LocationCountry,
		&p.AvgViewRate, &p.ReputationScore, &p.Tier, &p.TotalEarned.Amount, &p.CampaignsCompleted,
		&p.TotalViews, &p.TotalReshares, &p.WhatsappVerified, &p.IsBanned, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tag(r.cur, &p.TotalEarned)
	return &p, nil
}
