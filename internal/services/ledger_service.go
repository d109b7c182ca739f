package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/events"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
	"github.com/repostpay/backend/internal/observability"
	"github.com/repostpay/backend/internal/repositories"
	"go.uber.org/zap"
)

// LedgerService is the only writer of sponsor balances, campaign spend,
// participant earnings and payout state. Every operation is one store
// transaction.
type LedgerService struct {
	store     repositories.Store
	publisher events.Publisher
	metrics   *observability.LedgerMetrics
	cfg       *config.Config
	log       *zap.Logger
	now       func() time.Time
}

func NewLedgerService(
	store repositories.Store,
	publisher events.Publisher,
	metrics *observability.LedgerMetrics,
	cfg *config.Config,
	log *zap.Logger,
) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// PayoutRequest carries everything a participant supplies to withdraw.
// Exactly one destination field is read, chosen by Method.
type PayoutRequest struct {
	ParticipantID uuid.UUID
	Amount        money.Money
	Method        string
	WalletAddress *string
	PhoneNumber   *string
	BankAccount   *string
	Network       *string
}

// PayoutResolution is a terminal outcome reported by the settlement rail or
// an operator. Outcome is COMPLETED or FAILED.
type PayoutResolution struct {
	PayoutID       uuid.UUID
	Outcome        string
	TransactionRef *string
	FailureReason  *string
	Actor          Actor
}

type Earnings struct {
	TotalEarned     money.Money `json:"total_earned"`
	PendingEarnings money.Money `json:"pending_earnings"`
	Available       money.Money `json:"available"`
}

// SettleOnVerification books a submission's earnings against its campaign
// and sponsor and bumps the participant's counters. It must run inside the
// transaction that moves the submission to VERIFIED.
func (s *LedgerService) SettleOnVerification(ctx context.Context, tx repositories.Tx, sub *models.Submission, actor Actor) error {
	now := s.now()
	amount := sub.Earnings.Total
	views := sub.Views()

	campaign, err := tx.Campaigns().GetForUpdate(ctx, sub.CampaignID)
	if err != nil {
		return err
	}
	spent := campaign.SpentBudget.Add(amount)
	if spent.GreaterThan(campaign.TotalBudget) {
		return apperr.New(apperr.KindBudgetExceeded,
			"campaign %s budget %s cannot cover %s (spent %s)", campaign.ID, campaign.TotalBudget, amount, campaign.SpentBudget)
	}

	sponsor, err := tx.Sponsors().GetForUpdate(ctx, campaign.SponsorID)
	if err != nil {
		return err
	}
	if sponsor.Balance.LessThan(amount) {
		return apperr.New(apperr.KindInsufficientBalance,
			"sponsor %s balance %s cannot cover %s", sponsor.ID, sponsor.Balance, amount)
	}

	participant, err := tx.Participants().GetForUpdate(ctx, sub.ParticipantID)
	if err != nil {
		return err
	}

	campaign.SpentBudget = spent
	campaign.CurrentImpressions += views
	campaign.UpdatedAt = now
	if err := tx.Campaigns().Update(ctx, campaign); err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}

	sponsor.Balance = sponsor.Balance.Sub(amount)
	sponsor.TotalSpent = sponsor.TotalSpent.Add(amount)
	if sponsor.TracksImpressions() {
		sponsor.TotalImpressions += views
	}
	sponsor.UpdatedAt = now
	if err := tx.Sponsors().Update(ctx, sponsor); err != nil {
		return fmt.Errorf("update sponsor: %w", err)
	}

	participant.CampaignsCompleted++
	participant.TotalViews += views
	participant.TotalReshares += sub.Reshares()
	participant.UpdatedAt = now
	if err := tx.Participants().Update(ctx, participant); err != nil {
		return fmt.Errorf("update participant: %w", err)
	}

	return writeAudit(ctx, tx, now, actor, "submission_settled", "submission", sub.ID, map[string]any{
		"campaign_id": campaign.ID.String(),
		"sponsor_id":  sponsor.ID.String(),
		"amount":      amount.String(),
		"views":       views,
	})
}

func (s *LedgerService) AvailableBalance(ctx context.Context, participantID uuid.UUID) (money.Money, error) {
	var available money.Money
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		if _, err := tx.Participants().Get(ctx, participantID); err != nil {
			return err
		}
		var err error
		available, _, err = s.availableBalance(ctx, tx, participantID)
		return err
	})
	return available, err
}

// availableBalance sums unreserved VERIFIED earnings and subtracts whatever
// part of an open payout is not already backed by reserved submissions.
// Reserved earnings are excluded from the first sum, so subtracting the
// full amount of open payouts would count them twice.
func (s *LedgerService) availableBalance(ctx context.Context, tx repositories.Tx, participantID uuid.UUID) (money.Money, []models.Submission, error) {
	fundable, err := tx.Submissions().ListFundable(ctx, participantID)
	if err != nil {
		return money.Money{}, nil, fmt.Errorf("list fundable submissions: %w", err)
	}
	open, err := tx.Payouts().ListOpen(ctx, participantID)
	if err != nil {
		return money.Money{}, nil, fmt.Errorf("list open payouts: %w", err)
	}

	available := money.Zero(s.cfg.Currency)
	for _, sub := range fundable {
		available = available.Add(sub.Earnings.Total)
	}
	for _, p := range open {
		if unbacked := p.Amount.Sub(p.CoveredAmount); unbacked.IsPositive() {
			available = available.Sub(unbacked)
		}
	}
	return available, fundable, nil
}

func (s *LedgerService) Earnings(ctx context.Context, participantID uuid.UUID) (*Earnings, error) {
	var out Earnings
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		p, err := tx.Participants().Get(ctx, participantID)
		if err != nil {
			return err
		}
		subs, err := tx.Submissions().ListByParticipant(ctx, participantID)
		if err != nil {
			return err
		}
		pending := money.Zero(s.cfg.Currency)
		for _, sub := range subs {
			if sub.Status == models.SubmissionStatusVerified {
				pending = pending.Add(sub.Earnings.Total)
			}
		}
		available, _, err := s.availableBalance(ctx, tx, participantID)
		if err != nil {
			return err
		}
		out = Earnings{TotalEarned: p.TotalEarned, PendingEarnings: pending, Available: available}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func validatePayoutRequest(req PayoutRequest) error {
	if !models.IsValidPayoutMethod(req.Method) {
		return apperr.New(apperr.KindValidation, "invalid payout method %q, must be one of: %s",
			req.Method, strings.Join(models.AllPayoutMethods, ", "))
	}
	blank := func(s *string) bool { return s == nil || strings.TrimSpace(*s) == "" }
	switch req.Method {
	case models.PayoutMethodNexusPay:
		if blank(req.WalletAddress) {
			return apperr.New(apperr.KindValidation, "wallet address required for %s payouts", req.Method)
		}
	case models.PayoutMethodMPesa, models.PayoutMethodPaystack:
		if blank(req.PhoneNumber) {
			return apperr.New(apperr.KindValidation, "phone number required for %s payouts", req.Method)
		}
	case models.PayoutMethodBank:
		if blank(req.BankAccount) {
			return apperr.New(apperr.KindValidation, "bank account required for %s payouts", req.Method)
		}
	}
	return nil
}

// RequestPayout checks the balance and reserves covering submissions in the
// same transaction, so concurrent requests cannot spend the same earnings.
// Submissions are taken oldest first and never split; the last one may push
// the covered amount past the request.
func (s *LedgerService) RequestPayout(ctx context.Context, req PayoutRequest) (*models.Payout, error) {
	if err := validatePayoutRequest(req); err != nil {
		return nil, err
	}
	if req.Amount.Currency == "" {
		req.Amount.Currency = s.cfg.Currency
	}
	if req.Amount.LessThan(s.cfg.MinPayout) {
		return nil, apperr.New(apperr.KindInsufficientBalance, "minimum payout is %s %s", s.cfg.MinPayout, s.cfg.Currency)
	}

	var payout *models.Payout
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		now := s.now()

		participant, err := tx.Participants().GetForUpdate(ctx, req.ParticipantID)
		if err != nil {
			return err
		}
		if participant.IsBanned {
			return apperr.New(apperr.KindForbidden, "participant %s is banned", participant.ID)
		}

		available, fundable, err := s.availableBalance(ctx, tx, participant.ID)
		if err != nil {
			return err
		}
		if req.Amount.GreaterThan(available) {
			return apperr.New(apperr.KindInsufficientBalance, "requested %s exceeds available balance %s", req.Amount, available)
		}

		var selected []models.Submission
		covered := money.Zero(s.cfg.Currency)
		for _, sub := range fundable {
			if covered.GreaterThanOrEqual(req.Amount) {
				break
			}
			selected = append(selected, sub)
			covered = covered.Add(sub.Earnings.Total)
		}
		if covered.LessThan(req.Amount) {
			return apperr.New(apperr.KindInsufficientBalance, "verified earnings %s cannot cover %s", covered, req.Amount)
		}

		p := &models.Payout{
			ID:            uuid.New(),
			ParticipantID: participant.ID,
			Amount:        req.Amount,
			Method:        req.Method,
			WalletAddress: req.WalletAddress,
			PhoneNumber:   req.PhoneNumber,
			BankAccount:   req.BankAccount,
			Network:       req.Network,
			Status:        models.PayoutStatusPending,
			CoveredAmount: covered,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		for _, sub := range selected {
			p.CoveredSubmissionIDs = append(p.CoveredSubmissionIDs, sub.ID)
		}
		if err := tx.Payouts().Create(ctx, p); err != nil {
			return fmt.Errorf("create payout: %w", err)
		}

		for i := range selected {
			sub := &selected[i]
			sub.ReservedByPayoutID = &p.ID
			sub.UpdatedAt = now
			if err := tx.Submissions().Update(ctx, sub); err != nil {
				return fmt.Errorf("reserve submission %s: %w", sub.ID, err)
			}
		}

		payout = p
		return writeAudit(ctx, tx, now, ParticipantActor(participant.ID), "payout_requested", "payout", p.ID, map[string]any{
			"amount":         p.Amount.String(),
			"covered_amount": covered.String(),
			"submissions":    len(selected),
			"method":         p.Method,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPayout(models.PayoutStatusPending, payout.Amount)
	s.log.Info("payout requested",
		zap.String("payout_id", payout.ID.String()),
		zap.String("participant_id", payout.ParticipantID.String()),
		zap.String("amount", payout.Amount.String()),
		zap.Int("covered_submissions", len(payout.CoveredSubmissionIDs)),
	)
	publish(ctx, s.publisher, s.log, events.StreamLedger, events.Event{
		Type: events.EventPayoutRequested,
		Payload: map[string]any{
			"payout_id":      payout.ID.String(),
			"participant_id": payout.ParticipantID.String(),
			"amount":         payout.Amount.String(),
			"method":         payout.Method,
		},
	})
	return payout, nil
}

// MarkPayoutProcessing records that the rail has picked the payout up.
// Repeating it, or calling it on a payout already past PROCESSING, is a no-op.
func (s *LedgerService) MarkPayoutProcessing(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	var payout *models.Payout
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		p, err := tx.Payouts().GetForUpdate(ctx, payoutID)
		if err != nil {
			return err
		}
		payout = p
		if p.Status != models.PayoutStatusPending {
			return nil
		}
		now := s.now()
		p.Status = models.PayoutStatusProcessing
		p.ProcessingAt = &now
		p.UpdatedAt = now
		if err := tx.Payouts().Update(ctx, p); err != nil {
			return fmt.Errorf("update payout: %w", err)
		}
		return writeAudit(ctx, tx, now, SystemActor, "payout_processing", "payout", p.ID, nil)
	})
	return payout, err
}

// ResolvePayout applies a terminal outcome. Replaying the outcome a payout
// already has returns it unchanged; any other change to a terminal payout
// is an InvalidState error.
func (s *LedgerService) ResolvePayout(ctx context.Context, res PayoutResolution) (*models.Payout, error) {
	if res.Outcome != models.PayoutStatusCompleted && res.Outcome != models.PayoutStatusFailed {
		return nil, apperr.New(apperr.KindValidation, "payout outcome must be %s or %s, got %q",
			models.PayoutStatusCompleted, models.PayoutStatusFailed, res.Outcome)
	}

	var payout *models.Payout
	applied := false
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		applied = false
		p, err := tx.Payouts().GetForUpdate(ctx, res.PayoutID)
		if err != nil {
			return err
		}
		payout = p
		if p.Status == res.Outcome {
			return nil
		}
		if !models.IsValidPayoutTransition(p.Status, res.Outcome) {
			return apperr.New(apperr.KindInvalidState, "payout %s is already %s", p.ID, p.Status)
		}

		now := s.now()
		if res.Outcome == models.PayoutStatusCompleted {
			err = s.completePayout(ctx, tx, p, res, now)
		} else {
			err = s.failPayout(ctx, tx, p, res, now)
		}
		if err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		s.log.Info("payout resolution replayed",
			zap.String("payout_id", payout.ID.String()), zap.String("status", payout.Status))
		return payout, nil
	}

	s.metrics.RecordPayout(payout.Status, payout.Amount)
	fields := []zap.Field{
		zap.String("payout_id", payout.ID.String()),
		zap.String("participant_id", payout.ParticipantID.String()),
		zap.String("amount", payout.Amount.String()),
		zap.String("status", payout.Status),
	}
	if payout.Status == models.PayoutStatusFailed {
		s.log.Warn("payout failed", append(fields, zap.Stringp("reason", payout.FailureReason))...)
	} else {
		s.log.Info("payout completed", fields...)
	}
	publish(ctx, s.publisher, s.log, events.StreamLedger, events.Event{
		Type: events.EventPayoutResolved,
		Payload: map[string]any{
			"payout_id":      payout.ID.String(),
			"participant_id": payout.ParticipantID.String(),
			"amount":         payout.Amount.String(),
			"status":         payout.Status,
		},
	})
	return payout, nil
}

func (s *LedgerService) completePayout(ctx context.Context, tx repositories.Tx, p *models.Payout, res PayoutResolution, now time.Time) error {
	subs, err := tx.Submissions().ListByIDs(ctx, p.CoveredSubmissionIDs)
	if err != nil {
		return fmt.Errorf("load covered submissions: %w", err)
	}
	if len(subs) != len(p.CoveredSubmissionIDs) {
		return apperr.New(apperr.KindInvalidState, "payout %s covers %d submissions, found %d",
			p.ID, len(p.CoveredSubmissionIDs), len(subs))
	}
	for i := range subs {
		sub := &subs[i]
		if sub.ReservedByPayoutID == nil || *sub.ReservedByPayoutID != p.ID || !models.IsValidSubmissionTransition(sub.Status, models.SubmissionStatusPaid) {
			return apperr.New(apperr.KindInvalidState, "submission %s is %s and not reserved by payout %s", sub.ID, sub.Status, p.ID)
		}
		sub.Status = models.SubmissionStatusPaid
		sub.UpdatedAt = now
		if err := tx.Submissions().Update(ctx, sub); err != nil {
			return fmt.Errorf("mark submission %s paid: %w", sub.ID, err)
		}
	}

	participant, err := tx.Participants().GetForUpdate(ctx, p.ParticipantID)
	if err != nil {
		return err
	}
	participant.TotalEarned = participant.TotalEarned.Add(p.Amount)
	participant.UpdatedAt = now
	if err := tx.Participants().Update(ctx, participant); err != nil {
		return fmt.Errorf("credit participant: %w", err)
	}

	p.Status = models.PayoutStatusCompleted
	p.TransactionRef = res.TransactionRef
	p.ProcessedAt = &now
	p.UpdatedAt = now
	if err := tx.Payouts().Update(ctx, p); err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	return writeAudit(ctx, tx, now, res.Actor, "payout_completed", "payout", p.ID, map[string]any{
		"amount":          p.Amount.String(),
		"transaction_ref": res.TransactionRef,
	})
}

// failPayout returns the covered submissions to the fundable pool.
func (s *LedgerService) failPayout(ctx context.Context, tx repositories.Tx, p *models.Payout, res PayoutResolution, now time.Time) error {
	subs, err := tx.Submissions().ListByIDs(ctx, p.CoveredSubmissionIDs)
	if err != nil {
		return fmt.Errorf("load covered submissions: %w", err)
	}
	for i := range subs {
		sub := &subs[i]
		if sub.ReservedByPayoutID == nil || *sub.ReservedByPayoutID != p.ID {
			continue
		}
		sub.ReservedByPayoutID = nil
		sub.UpdatedAt = now
		if err := tx.Submissions().Update(ctx, sub); err != nil {
			return fmt.Errorf("release submission %s: %w", sub.ID, err)
		}
	}

	reason := "unspecified"
	if res.FailureReason != nil && strings.TrimSpace(*res.FailureReason) != "" {
		reason = *res.FailureReason
	}
	p.Status = models.PayoutStatusFailed
	p.FailureReason = &reason
	if res.TransactionRef != nil {
		p.TransactionRef = res.TransactionRef
	}
	p.UpdatedAt = now
	if err := tx.Payouts().Update(ctx, p); err != nil {
		return fmt.Errorf("update payout: %w", err)
	}
	return writeAudit(ctx, tx, now, res.Actor, "payout_failed", "payout", p.ID, map[string]any{
		"reason":   reason,
		"released": len(subs),
	})
}

// ForceFailPayout is the operator path for a payout the rail never
// resolved. It releases reservations exactly like a provider failure.
func (s *LedgerService) ForceFailPayout(ctx context.Context, payoutID uuid.UUID, reason string, actor Actor) (*models.Payout, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "force-failed by operator"
	}
	return s.ResolvePayout(ctx, PayoutResolution{
		PayoutID:      payoutID,
		Outcome:       models.PayoutStatusFailed,
		FailureReason: &reason,
		Actor:         actor,
	})
}

// SweepStuckPayouts force-fails payouts that have sat in PROCESSING longer
// than the configured timeout and returns how many were released.
func (s *LedgerService) SweepStuckPayouts(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.PayoutProcessingTimeout)

	var stuck []models.Payout
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		stuck, err = tx.Payouts().ListStuck(ctx, cutoff)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list stuck payouts: %w", err)
	}

	released := 0
	for _, p := range stuck {
		reason := fmt.Sprintf("processing timeout after %s", s.cfg.PayoutProcessingTimeout)
		if p.Status == models.PayoutStatusPending {
			reason = fmt.Sprintf("not picked up within %s", s.cfg.PayoutProcessingTimeout)
		}
		if _, err := s.ForceFailPayout(ctx, p.ID, reason, SystemActor); err != nil {
			if apperr.KindOf(err) == apperr.KindInvalidState {
				// Resolved by the rail between listing and locking.
				continue
			}
			s.log.Error("failed to release stuck payout", zap.String("payout_id", p.ID.String()), zap.Error(err))
			continue
		}
		released++
	}
	if released > 0 {
		s.log.Warn("stuck payouts force-failed", zap.Int("count", released))
	}
	return released, nil
}

func (s *LedgerService) GetPayout(ctx context.Context, payoutID uuid.UUID) (*models.Payout, error) {
	var payout *models.Payout
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		payout, err = tx.Payouts().Get(ctx, payoutID)
		return err
	})
	return payout, err
}

func (s *LedgerService) ListPayouts(ctx context.Context, participantID uuid.UUID) ([]models.Payout, error) {
	var payouts []models.Payout
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		payouts, err = tx.Payouts().ListByParticipant(ctx, participantID)
		return err
	})
	return payouts, err
}

// ListPendingPayouts is the operator queue of payouts awaiting the rail.
func (s *LedgerService) ListPendingPayouts(ctx context.Context, limit int) ([]models.Payout, error) {
	var payouts []models.Payout
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		payouts, err = tx.Payouts().ListByStatus(ctx, models.PayoutStatusPending, limit)
		return err
	})
	return payouts, err
}

func (s *LedgerService) PayoutStats(ctx context.Context, participantID uuid.UUID) (*models.PayoutStats, error) {
	payouts, err := s.ListPayouts(ctx, participantID)
	if err != nil {
		return nil, err
	}
	stats := &models.PayoutStats{
		TotalPaidOut:   money.Zero(s.cfg.Currency),
		PendingPayouts: money.Zero(s.cfg.Currency),
	}
	for _, p := range payouts {
		switch {
		case p.Status == models.PayoutStatusCompleted:
			stats.TotalPaidOut = stats.TotalPaidOut.Add(p.Amount)
			stats.CompletedPayouts++
		case p.Status == models.PayoutStatusFailed:
			stats.FailedPayouts++
		case p.IsOpen():
			stats.PendingPayouts = stats.PendingPayouts.Add(p.Amount)
		}
	}
	return stats, nil
}

// CreditSponsor tops up a sponsor balance.
func (s *LedgerService) CreditSponsor(ctx context.Context, sponsorID uuid.UUID, amount money.Money, actor Actor) (*models.Sponsor, error) {
	if !amount.IsPositive() {
		return nil, apperr.New(apperr.KindValidation, "top-up amount must be positive")
	}
	var sponsor *models.Sponsor
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		sp, err := tx.Sponsors().GetForUpdate(ctx, sponsorID)
		if err != nil {
			return err
		}
		now := s.now()
		sp.Balance = sp.Balance.Add(amount)
		sp.UpdatedAt = now
		if err := tx.Sponsors().Update(ctx, sp); err != nil {
			return fmt.Errorf("update sponsor: %w", err)
		}
		sponsor = sp
		return writeAudit(ctx, tx, now, actor, "sponsor_topped_up", "sponsor", sp.ID, map[string]any{
			"amount":  amount.String(),
			"balance": sp.Balance.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("sponsor balance credited", zap.String("sponsor_id", sponsorID.String()), zap.String("amount", amount.String()))
	return sponsor, nil
}
