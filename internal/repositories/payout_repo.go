package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
)

type PayoutRepo struct {
	q   querier
	cur money.Currency
}

const payoutColumns = `id, participant_id, amount::text, currency, method, wallet_address, phone_number,
	bank_account, network, transaction_ref, status, covered_submission_ids::text[], covered_amount::text,
	failure_reason, processing_at, processed_at, created_at, updated_at`

func (r *PayoutRepo) Create(ctx context.Context, p *models.Payout) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO payouts (
			id, participant_id, amount, currency, method, wallet_address, phone_number,
			bank_account, network, transaction_ref, status, covered_submission_ids, covered_amount,
			failure_reason, processing_at, processed_at, created_at, updated_at
		) VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11, $12::text[]::uuid[], $13::numeric,
			$14, $15, $16, $17, $18)
	`, p.ID, p.ParticipantID, p.Amount.String(), string(p.Amount.Currency), p.Method,
		p.WalletAddress, p.PhoneNumber, p.BankAccount, p.Network, p.TransactionRef, p.Status,
		uuidStrings(p.CoveredSubmissionIDs), p.CoveredAmount.String(),
		p.FailureReason, p.ProcessingAt, p.ProcessedAt, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PayoutRepo) Get(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	p, err := r.scan(r.q.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "payout", id)
	}
	return p, nil
}

func (r *PayoutRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	p, err := r.scan(r.q.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "payout", id)
	}
	return p, nil
}

// Update writes the mutable lifecycle columns; amount and coverage are fixed
// at creation.
func (r *PayoutRepo) Update(ctx context.Context, p *models.Payout) error {
	_, err := r.q.Exec(ctx, `
		UPDATE payouts SET status = $1, transaction_ref = $2, failure_reason = $3,
		       processing_at = $4, processed_at = $5, updated_at = $6
		WHERE id = $7
	`, p.Status, p.TransactionRef, p.FailureReason, p.ProcessingAt, p.ProcessedAt, p.UpdatedAt, p.ID)
	return err
}

func (r *PayoutRepo) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Payout, error) {
	return r.list(ctx, `SELECT `+payoutColumns+` FROM payouts
		WHERE participant_id = $1 ORDER BY created_at DESC, id`, participantID)
}

func (r *PayoutRepo) ListByStatus(ctx context.Context, status string, limit int) ([]models.Payout, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return r.list(ctx, `SELECT `+payoutColumns+` FROM payouts
		WHERE status = $1 ORDER BY created_at ASC, id LIMIT $2`, status, limit)
}

func (r *PayoutRepo) ListOpen(ctx context.Context, participantID uuid.UUID) ([]models.Payout, error) {
	return r.list(ctx, `SELECT `+payoutColumns+` FROM payouts
		WHERE participant_id = $1 AND status IN ($2, $3) ORDER BY created_at ASC, id`,
		participantID, models.PayoutStatusPending, models.PayoutStatusProcessing)
}

func (r *PayoutRepo) ListStuck(ctx context.Context, cutoff time.Time) ([]models.Payout, error) {
	return r.list(ctx, `SELECT `+payoutColumns+` FROM payouts
		WHERE (status = $1 AND processing_at < $3)
		   OR (status = $2 AND created_at < $3)
		ORDER BY created_at ASC, id`,
		models.PayoutStatusProcessing, models.PayoutStatusPending, cutoff)
}

func (r *PayoutRepo) list(ctx context.Context, query string, args ...any) ([]models.Payout, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payouts []models.Payout
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

func (r *PayoutRepo) scan(row rowScanner) (*models.Payout, error) {
	var p models.Payout
	var currency string
	var covered []string
	err := row.Scan(&p.ID, &p.ParticipantID, &p.Amount.Amount, &currency, &p.Method,
		&p.WalletAddress, &p.PhoneNumber, &p.BankAccount, &p.Network, &p.TransactionRef, &p.Status,
		&covered, &p.CoveredAmount.Amount, &p.FailureReason, &p.ProcessingAt, &p.ProcessedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.CoveredSubmissionIDs = make([]uuid.UUID, 0, len(covered))
	for _, s := range covered {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("payout %s covered submission %q: %w", p.ID, s, err)
		}
		p.CoveredSubmissionIDs = append(p.CoveredSubmissionIDs, id)
	}
	tag(money.Currency(currency), &p.Amount, &p.CoveredAmount)
	return &p, nil
}
