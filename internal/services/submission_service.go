package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/earnings"
	"github.com/repostpay/backend/internal/events"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
	"github.com/repostpay/backend/internal/observability"
	"github.com/repostpay/backend/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SubmissionService drives a post from claim to verification. Payment is the
// ledger's business.
type SubmissionService struct {
	store      repositories.Store
	ledger     *LedgerService
	calculator *earnings.Calculator
	publisher  events.Publisher
	metrics    *observability.LedgerMetrics
	log        *zap.Logger
	now        func() time.Time
}

func NewSubmissionService(
	store repositories.Store,
	ledger *LedgerService,
	calculator *earnings.Calculator,
	publisher events.Publisher,
	metrics *observability.LedgerMetrics,
	log *zap.Logger,
) *SubmissionService {
	return &SubmissionService{
		store:      store,
		ledger:     ledger,
		calculator: calculator,
		publisher:  publisher,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

type ClaimCommand struct {
	ParticipantID        uuid.UUID
	CampaignID           uuid.UUID
	IsReshare            bool
	OriginalSubmissionID *uuid.UUID
}

// SubmitMetricsCommand replaces any previously reported metrics.
type SubmitMetricsCommand struct {
	SubmissionID  uuid.UUID
	ParticipantID uuid.UUID
	Views         int64
	Reshares      int64
	ScreenshotURL *string
	PostedAt      *time.Time
}

type VerifyCommand struct {
	SubmissionID uuid.UUID
	Outcome      string // VERIFIED or REJECTED
	VerifiedBy   string
	Notes        *string
	Actor        Actor
}

func (s *SubmissionService) Claim(ctx context.Context, cmd ClaimCommand) (*models.Submission, error) {
	if cmd.OriginalSubmissionID != nil && !cmd.IsReshare {
		return nil, apperr.New(apperr.KindValidation, "original submission is only valid on a reshare")
	}

	var sub *models.Submission
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		now := s.now()

		participant, err := tx.Participants().Get(ctx, cmd.ParticipantID)
		if err != nil {
			return err
		}
		if participant.IsBanned {
			return apperr.New(apperr.KindForbidden, "participant %s is banned", participant.ID)
		}

		// Locking the campaign serialises claims racing for the last slot.
		campaign, err := tx.Campaigns().GetForUpdate(ctx, cmd.CampaignID)
		if err != nil {
			return err
		}
		if campaign.Status != models.CampaignStatusActive {
			return apperr.New(apperr.KindInvalidState, "campaign %s is %s", campaign.ID, campaign.Status)
		}

		exists, err := tx.Submissions().Exists(ctx, participant.ID, campaign.ID)
		if err != nil {
			return err
		}
		if exists {
			return apperr.New(apperr.KindConflict, "participant %s already claimed campaign %s", participant.ID, campaign.ID)
		}

		count, err := tx.Submissions().CountByCampaign(ctx, campaign.ID)
		if err != nil {
			return err
		}
		if count >= campaign.MaxParticipants {
			return apperr.New(apperr.KindCampaignFull, "campaign %s reached %d participants", campaign.ID, campaign.MaxParticipants)
		}

		if cmd.OriginalSubmissionID != nil {
			orig, err := tx.Submissions().Get(ctx, *cmd.OriginalSubmissionID)
			if err != nil {
				return err
			}
			if orig.CampaignID != campaign.ID {
				return apperr.New(apperr.KindValidation, "original submission %s belongs to another campaign", orig.ID)
			}
		}

		sub = &models.Submission{
			ID:                   uuid.New(),
			ParticipantID:        participant.ID,
			CampaignID:           campaign.ID,
			Status:               models.SubmissionStatusPending,
			Earnings:             models.ZeroBreakdown(campaign.Economics.CPMParticipant.Currency),
			IsReshare:            cmd.IsReshare,
			OriginalSubmissionID: cmd.OriginalSubmissionID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.Submissions().Create(ctx, sub); err != nil {
			return err
		}
		return writeAudit(ctx, tx, now, ParticipantActor(participant.ID), "submission_claimed", "submission", sub.ID, map[string]any{
			"campaign_id": campaign.ID.String(),
			"is_reshare":  cmd.IsReshare,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("campaign claimed",
		zap.String("submission_id", sub.ID.String()),
		zap.String("participant_id", sub.ParticipantID.String()),
		zap.String("campaign_id", sub.CampaignID.String()),
	)
	return sub, nil
}

func (s *SubmissionService) SubmitMetrics(ctx context.Context, cmd SubmitMetricsCommand) (*models.Submission, error) {
	if cmd.Views < 0 || cmd.Reshares < 0 {
		return nil, apperr.New(apperr.KindValidation, "views and reshares must not be negative")
	}

	var sub *models.Submission
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		now := s.now()

		current, err := tx.Submissions().GetForUpdate(ctx, cmd.SubmissionID)
		if err != nil {
			return err
		}
		if current.ParticipantID != cmd.ParticipantID {
			return apperr.New(apperr.KindForbidden, "submission %s belongs to another participant", current.ID)
		}
		if current.Status != models.SubmissionStatusPending {
			return apperr.New(apperr.KindInvalidState, "submission %s is %s", current.ID, current.Status)
		}

		participant, err := tx.Participants().Get(ctx, current.ParticipantID)
		if err != nil {
			return err
		}
		if decimal.NewFromInt(cmd.Views).GreaterThan(participant.MaxPlausibleViews()) {
			return apperr.New(apperr.KindSuspiciousViews,
				"%d views exceeds 95%% of %d contacts", cmd.Views, participant.ContactCount)
		}

		campaign, err := tx.Campaigns().Get(ctx, current.CampaignID)
		if err != nil {
			return err
		}

		views, reshares := cmd.Views, cmd.Reshares
		current.ViewsCount = &views
		current.ResharesCount = &reshares
		current.ScreenshotURL = cmd.ScreenshotURL
		current.PostedAt = cmd.PostedAt
		current.MetricsSubmittedAt = &now
		current.Earnings = s.calculator.Compute(views, campaign, participant, current.IsReshare)
		current.UpdatedAt = now
		if err := tx.Submissions().Update(ctx, current); err != nil {
			return fmt.Errorf("update submission: %w", err)
		}

		sub = current
		return writeAudit(ctx, tx, now, ParticipantActor(current.ParticipantID), "submission_metrics_reported", "submission", current.ID, map[string]any{
			"views":    views,
			"reshares": reshares,
			"earnings": current.Earnings.Total.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("metrics submitted",
		zap.String("submission_id", sub.ID.String()),
		zap.Int64("views", sub.Views()),
		zap.String("earnings", sub.Earnings.Total.String()),
	)
	return sub, nil
}

// Verify records the verifier's outcome. VERIFIED settles the earnings in
// the same transaction. Repeating the outcome already recorded returns the
// submission unchanged, so verification jobs can be redelivered safely.
func (s *SubmissionService) Verify(ctx context.Context, cmd VerifyCommand) (*models.Submission, error) {
	if cmd.Outcome != models.SubmissionStatusVerified && cmd.Outcome != models.SubmissionStatusRejected {
		return nil, apperr.New(apperr.KindValidation, "verification outcome must be %s or %s, got %q",
			models.SubmissionStatusVerified, models.SubmissionStatusRejected, cmd.Outcome)
	}

	var sub *models.Submission
	applied := false
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		applied = false
		now := s.now()

		current, err := tx.Submissions().GetForUpdate(ctx, cmd.SubmissionID)
		if err != nil {
			return err
		}
		sub = current
		if alreadyRecorded(current.Status, cmd.Outcome) {
			return nil
		}
		if !models.IsValidSubmissionTransition(current.Status, cmd.Outcome) {
			return apperr.New(apperr.KindInvalidState, "submission %s cannot move from %s to %s", current.ID, current.Status, cmd.Outcome)
		}
		if cmd.Outcome == models.SubmissionStatusVerified && !current.HasMetrics() {
			return apperr.New(apperr.KindInvalidState, "submission %s has no reported metrics", current.ID)
		}

		current.Status = cmd.Outcome
		if cmd.VerifiedBy != "" {
			verifiedBy := cmd.VerifiedBy
			current.VerifiedBy = &verifiedBy
		}
		current.VerificationNotes = cmd.Notes
		current.UpdatedAt = now
		if err := tx.Submissions().Update(ctx, current); err != nil {
			return fmt.Errorf("update submission: %w", err)
		}

		if cmd.Outcome == models.SubmissionStatusVerified {
			if err := s.ledger.SettleOnVerification(ctx, tx, current, cmd.Actor); err != nil {
				return err
			}
		}

		applied = true
		return writeAudit(ctx, tx, now, cmd.Actor, "submission_"+strings.ToLower(cmd.Outcome), "submission", current.ID, map[string]any{
			"verified_by": cmd.VerifiedBy,
		})
	})
	if err != nil {
		if kind := apperr.KindOf(err); kind == apperr.KindBudgetExceeded || kind == apperr.KindInsufficientBalance {
			s.metrics.RecordVerification("BLOCKED", money.Money{})
			s.log.Warn("verification blocked by ledger",
				zap.String("submission_id", cmd.SubmissionID.String()), zap.Error(err))
		}
		return nil, err
	}
	if !applied {
		return sub, nil
	}

	eventType := events.EventSubmissionRejected
	if sub.Status == models.SubmissionStatusVerified {
		eventType = events.EventSubmissionVerified
		s.metrics.RecordVerification(sub.Status, sub.Earnings.Total)
	} else {
		s.metrics.RecordVerification(sub.Status, money.Money{})
	}
	s.log.Info("submission verified",
		zap.String("submission_id", sub.ID.String()),
		zap.String("status", sub.Status),
		zap.String("earnings", sub.Earnings.Total.String()),
	)
	publish(ctx, s.publisher, s.log, events.StreamLedger, events.Event{
		Type: eventType,
		Payload: map[string]any{
			"submission_id":  sub.ID.String(),
			"participant_id": sub.ParticipantID.String(),
			"campaign_id":    sub.CampaignID.String(),
			"earnings":       sub.Earnings.Total.String(),
		},
	})
	return sub, nil
}

func alreadyRecorded(status, outcome string) bool {
	if status == outcome {
		return true
	}
	// A paid submission was verified before it was paid.
	return outcome == models.SubmissionStatusVerified && status == models.SubmissionStatusPaid
}

// Delete withdraws a claim. Only untouched PENDING claims can be removed.
func (s *SubmissionService) Delete(ctx context.Context, submissionID, participantID uuid.UUID) error {
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		sub, err := tx.Submissions().GetForUpdate(ctx, submissionID)
		if err != nil {
			return err
		}
		if sub.ParticipantID != participantID {
			return apperr.New(apperr.KindForbidden, "submission %s belongs to another participant", sub.ID)
		}
		if sub.Status != models.SubmissionStatusPending || sub.HasMetrics() {
			return apperr.New(apperr.KindInvalidState, "submission %s can no longer be deleted", sub.ID)
		}
		if err := tx.Submissions().Delete(ctx, sub.ID); err != nil {
			return err
		}
		return writeAudit(ctx, tx, s.now(), ParticipantActor(participantID), "submission_deleted", "submission", sub.ID, map[string]any{
			"campaign_id": sub.CampaignID.String(),
		})
	})
	if err != nil {
		return err
	}
	s.log.Info("submission deleted", zap.String("submission_id", submissionID.String()))
	return nil
}

// Get returns a submission. A non-nil participantID restricts access to
// its owner.
func (s *SubmissionService) Get(ctx context.Context, id uuid.UUID, participantID *uuid.UUID) (*models.Submission, error) {
	var sub *models.Submission
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		sub, err = tx.Submissions().Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if participantID != nil && sub.ParticipantID != *participantID {
		return nil, apperr.New(apperr.KindForbidden, "submission %s belongs to another participant", id)
	}
	return sub, nil
}

func (s *SubmissionService) ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		subs, err = tx.Submissions().ListByParticipant(ctx, participantID)
		return err
	})
	return subs, err
}

// ListByCampaign is sponsor-scoped; a nil sponsorID means an operator.
func (s *SubmissionService) ListByCampaign(ctx context.Context, campaignID uuid.UUID, sponsorID *uuid.UUID) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.store.WithTx(ctx, func(tx repositories.Tx) error {
		campaign, err := tx.Campaigns().Get(ctx, campaignID)
		if err != nil {
			return err
		}
		if sponsorID != nil && campaign.SponsorID != *sponsorID {
			return apperr.New(apperr.KindForbidden, "campaign %s belongs to another sponsor", campaignID)
		}
		subs, err = tx.Submissions().ListByCampaign(ctx, campaignID)
		return err
	})
	return subs, err
}
