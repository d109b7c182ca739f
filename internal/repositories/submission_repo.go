package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
)

type SubmissionRepo struct {
	q   querier
	cur money.Currency
}

const submissionColumns = `id, participant_id, campaign_id, status, views_count, reshares_count,
	screenshot_url, posted_at, metrics_submitted_at,
	earnings_base::text, earnings_flat_fee::text, earnings_tier_bonus::text,
	earnings_reshare_bonus::text, earnings_streak_bonus::text, earnings_total::text,
	is_reshare, original_submission_id, verified_by, verification_notes, reserved_by_payout_id,
	created_at, updated_at`

func (r *SubmissionRepo) Create(ctx context.Context, s *models.Submission) error {
	e := &s.Earnings
	_, err := r.q.Exec(ctx, `
		INSERT INTO submissions (
			id, participant_id, campaign_id, status, views_count, reshares_count,
			screenshot_url, posted_at, metrics_submitted_at,
			earnings_base, earnings_flat_fee, earnings_tier_bonus,
			earnings_reshare_bonus, earnings_streak_bonus, earnings_total,
			is_reshare, original_submission_id, verified_by, verification_notes, reserved_by_payout_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
			$10::numeric, $11::numeric, $12::numeric, $13::numeric, $14::numeric, $15::numeric,
			$16, $17, $18, $19, $20, $21, $22)
	`, s.ID, s.ParticipantID, s.CampaignID, s.Status, s.ViewsCount, s.ResharesCount,
		s.ScreenshotURL, s.PostedAt, s.MetricsSubmittedAt,
		e.Base.String(), e.FlatFee.String(), e.TierBonus.String(),
		e.ReshareBonus.String(), e.StreakBonus.String(), e.Total.String(),
		s.IsReshare, s.OriginalSubmissionID, s.VerifiedBy, s.VerificationNotes, s.ReservedByPayoutID,
		s.CreatedAt, s.UpdatedAt)
	if isUniqueViolation(err) {
		return conflict("participant %s already claimed campaign %s", s.ParticipantID, s.CampaignID)
	}
	return err
}

func (r *SubmissionRepo) Get(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	s, err := r.scan(r.q.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "submission", id)
	}
	return s, nil
}

func (r *SubmissionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	s, err := r.scan(r.q.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "submission", id)
	}
	return s, nil
}

func (r *SubmissionRepo) Update(ctx context.Context, s *models.Submission) error {
	e := &s.Earnings
	_, err := r.q.Exec(ctx, `
		UPDATE submissions SET
			status = $1, views_count = $2, reshares_count = $3, screenshot_url = $4,
			posted_at = $5, metrics_submitted_at = $6,
			earnings_base = $7::numeric, earnings_flat_fee = $8::numeric, earnings_tier_bonus = $9::numeric,
			earnings_reshare_bonus = $10::numeric, earnings_streak_bonus = $11::numeric, earnings_total = $12::numeric,
			verified_by = $13, verification_notes = $14, reserved_by_payout_id = $15, updated_at = $16
		WHERE id = $17
	`, s.Status, s.ViewsCount, s.ResharesCount, s.ScreenshotURL,
		s.PostedAt, s.MetricsSubmittedAt,
		e.Base.String(), e.FlatFee.String(), e.TierBonus.String(),
		e.ReshareBonus.String(), e.StreakBonus.String(), e.Total.String(),
		s.VerifiedBy, s.VerificationNotes, s.ReservedByPayoutID, s.UpdatedAt, s.ID)
	return err
}

func (r *SubmissionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.q.Exec(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return notFoundID("submission", id)
	}
	return nil
}

func (r *SubmissionRepo) Exists(ctx context.Context, participantID, campaignID uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM submissions WHERE participant_id = $1 AND campaign_id = $2)
	`, participantID, campaignID).Scan(&exists)
	return exists, err
}

func (r *SubmissionRepo) CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM submissions WHERE campaign_id = $1`, campaignID).Scan(&n)
	return n, err
}

func (r *SubmissionRepo) ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Submission, error) {
	return r.list(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE campaign_id = $1 ORDER BY created_at DESC, id`, campaignID)
}

func (r *SubmissionRepo) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Submission, error) {
	return r.list(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE participant_id = $1 ORDER BY created_at DESC, id`, participantID)
}

func (r *SubmissionRepo) ListFundable(ctx context.Context, participantID uuid.UUID) ([]models.Submission, error) {
	return r.list(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE participant_id = $1 AND status = $2 AND reserved_by_payout_id IS NULL
		ORDER BY created_at ASC, id`, participantID, models.SubmissionStatusVerified)
}

func (r *SubmissionRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Submission, error) {
	return r.list(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE id = ANY($1::text[]::uuid[]) ORDER BY created_at ASC, id`, uuidStrings(ids))
}

func (r *SubmissionRepo) list(ctx context.Context, query string, args ...any) ([]models.Submission, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []models.Submission
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, *s)
	}
	return submissions, rows.Err()
}

func (r *SubmissionRepo) scan(row rowScanner) (*models.Submission, error) {
	var s models.Submission
	e := &s.Earnings
	err := row.Scan(&s.ID, &s.ParticipantID, &s.CampaignID, &s.Status, &s.ViewsCount, &s.ResharesCount,
		&s.ScreenshotURL, &s.PostedAt, &s.MetricsSubmittedAt,
		&e.Base.Amount, &e.FlatFee.Amount, &e.TierBonus.Amount,
		&e.ReshareBonus.Amount, &e.StreakBonus.Amount, &e.Total.Amount,
		&s.IsReshare, &s.OriginalSubmissionID, &s.VerifiedBy, &s.VerificationNotes, &s.ReservedByPayoutID,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tag(r.cur, &e.Base, &e.FlatFee, &e.TierBonus, &e.ReshareBonus, &e.StreakBonus, &e.Total)
	return &s, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
