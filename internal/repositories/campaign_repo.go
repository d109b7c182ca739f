package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
	"github.com/shopspring/decimal"
)

type CampaignRepo struct {
	q   querier
	cur money.Currency
}

const campaignColumns = `id, sponsor_id, name, description, creative_url, watermark_id, call_to_action,
	target_locations, target_age_ranges, target_interests, min_contact_count, min_view_rate::text,
	cpm_sponsor::text, cpm_participant::text, flat_fee::text, reshare_bonus::text,
	max_participants, target_impressions, current_impressions, status,
	total_budget::text, spent_budget::text, start_date, end_date, created_at, updated_at`

func (r *CampaignRepo) Create(ctx context.Context, c *models.Campaign) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO campaigns (
			id, sponsor_id, name, description, creative_url, watermark_id, call_to_action,
			target_locations, target_age_ranges, target_interests, min_contact_count, min_view_rate,
			cpm_sponsor, cpm_participant, flat_fee, reshare_bonus,
			max_participants, target_impressions, current_impressions, status,
			total_budget, spent_budget, start_date, end_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::numeric,
			$13::numeric, $14::numeric, $15::numeric, $16::numeric,
			$17, $18, $19, $20, $21::numeric, $22::numeric, $23, $24, $25, $26)
	`, c.ID, c.SponsorID, c.Name, c.Description, c.CreativeURL, c.WatermarkID, c.CallToAction,
		nonNil(c.Targeting.Locations), nonNil(c.Targeting.AgeRanges), nonNil(c.Targeting.Interests),
		c.Targeting.MinContactCount, decimalOrNil(c.Targeting.MinViewRate),
		c.Economics.CPMSponsor.String(), c.Economics.CPMParticipant.String(),
		c.Economics.FlatFee.String(), c.Economics.ReshareBonus.String(),
		c.MaxParticipants, c.TargetImpressions, c.CurrentImpressions, c.Status,
		c.TotalBudget.String(), c.SpentBudget.String(), c.StartDate, c.EndDate, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *CampaignRepo) Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, err := r.scan(r.q.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "campaign", id)
	}
	return c, nil
}

func (r *CampaignRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	c, err := r.scan(r.q.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "campaign", id)
	}
	return c, nil
}

func (r *CampaignRepo) Update(ctx context.Context, c *models.Campaign) error {
	_, err := r.q.Exec(ctx, `
		UPDATE campaigns SET
			name = $1, description = $2, creative_url = $3, call_to_action = $4,
			target_locations = $5, target_age_ranges = $6, target_interests = $7,
			min_contact_count = $8, min_view_rate = $9::numeric,
			cpm_sponsor = $10::numeric, cpm_participant = $11::numeric,
			flat_fee = $12::numeric, reshare_bonus = $13::numeric,
			max_participants = $14, target_impressions = $15, current_impressions = $16,
			status = $17, total_budget = $18::numeric, spent_budget = $19::numeric,
			start_date = $20, end_date = $21, updated_at = $22
		WHERE id = $23
	`, c.Name, c.Description, c.CreativeURL, c.CallToAction,
		nonNil(c.Targeting.Locations), nonNil(c.Targeting.AgeRanges), nonNil(c.Targeting.Interests),
		c.Targeting.MinContactCount, decimalOrNil(c.Targeting.MinViewRate),
		c.Economics.CPMSponsor.String(), c.Economics.CPMParticipant.String(),
		c.Economics.FlatFee.String(), c.Economics.ReshareBonus.String(),
		c.MaxParticipants, c.TargetImpressions, c.CurrentImpressions,
		c.Status, c.TotalBudget.String(), c.SpentBudget.String(),
		c.StartDate, c.EndDate, c.UpdatedAt, c.ID)
	return err
}

func (r *CampaignRepo) ListByStatus(ctx context.Context, status string) ([]models.Campaign, error) {
	return r.list(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE status = $1 ORDER BY created_at DESC, id`, status)
}

func (r *CampaignRepo) ListBySponsor(ctx context.Context, sponsorID uuid.UUID) ([]models.Campaign, error) {
	return r.list(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE sponsor_id = $1 ORDER BY created_at DESC, id`, sponsorID)
}

func (r *CampaignRepo) list(ctx context.Context, query string, args ...any) ([]models.Campaign, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		c, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

func (r *CampaignRepo) scan(row rowScanner) (*models.Campaign, error) {
	var c models.Campaign
	var minViewRate *string
	err := row.Scan(&c.ID, &c.SponsorID, &c.Name, &c.Description, &c.CreativeURL, &c.WatermarkID, &c.CallToAction,
		&c.Targeting.Locations, &c.Targeting.AgeRanges, &c.Targeting.Interests,
		&c.Targeting.MinContactCount, &minViewRate,
		&c.Economics.CPMSponsor.Amount, &c.Economics.CPMParticipant.Amount,
		&c.Economics.FlatFee.Amount, &c.Economics.ReshareBonus.Amount,
		&c.MaxParticipants, &c.TargetImpressions, &c.CurrentImpressions, &c.Status,
		&c.TotalBudget.Amount, &c.SpentBudget.Amount, &c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if minViewRate != nil {
		d, err := decimal.NewFromString(*minViewRate)
		if err != nil {
			return nil, fmt.Errorf("campaign %s min_view_rate: %w", c.ID, err)
		}
		c.Targeting.MinViewRate = &d
	}
	tag(r.cur, &c.Economics.CPMSponsor, &c.Economics.CPMParticipant, &c.Economics.FlatFee,
		&c.Economics.ReshareBonus, &c.TotalBudget, &c.SpentBudget)
	return &c, nil
}

func decimalOrNil(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// nonNil keeps NOT NULL array columns from receiving a NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
