package jobs

import (
	"context"

	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/services"
	"go.uber.org/zap"
)

type Handler interface {
	Handle(ctx context.Context, payload []byte) error
}

// VerificationHandler runs the verifier over a PENDING submission and
// records its verdict. Already decided submissions are acknowledged.
type VerificationHandler struct {
	submissions  *services.SubmissionService
	participants *services.ParticipantService
	verifier     services.Verifier
	log          *zap.Logger
}

func NewVerificationHandler(
	submissions *services.SubmissionService,
	participants *services.ParticipantService,
	verifier services.Verifier,
	log *zap.Logger,
) *VerificationHandler {
	return &VerificationHandler{submissions: submissions, participants: participants, verifier: verifier, log: log}
}

func (h *VerificationHandler) Handle(ctx context.Context, payload []byte) error {
	var job VerificationJob
	if err := decode(payload, &job, "submissionId"); err != nil {
		return err
	}

	sub, err := h.submissions.Get(ctx, job.SubmissionID, nil)
	if err != nil {
		return err
	}
	if sub.Status != models.SubmissionStatusPending {
		h.log.Info("verification job for decided submission",
			zap.String("submission_id", sub.ID.String()), zap.String("status", sub.Status))
		return nil
	}

	participant, err := h.participants.Get(ctx, sub.ParticipantID)
	if err != nil {
		return err
	}
	verdict, err := h.verifier.Verify(ctx, sub, participant)
	if err != nil {
		return err
	}

	_, err = h.submissions.Verify(ctx, services.VerifyCommand{
		SubmissionID: sub.ID,
		Outcome:      verdict.Outcome,
		VerifiedBy:   verdict.VerifiedBy,
		Notes:        verdict.Notes,
		Actor:        services.SystemActor,
	})
	return err
}

// PayoutHandler hands a payout to the settlement rail and records the
// outcome. Payouts the rail settles asynchronously, or that no rail is
// configured for, stay PROCESSING until resolved or swept.
type PayoutHandler struct {
	ledger   *services.LedgerService
	provider services.SettlementProvider
	log      *zap.Logger
}

func NewPayoutHandler(ledger *services.LedgerService, provider services.SettlementProvider, log *zap.Logger) *PayoutHandler {
	return &PayoutHandler{ledger: ledger, provider: provider, log: log}
}

func (h *PayoutHandler) Handle(ctx context.Context, payload []byte) error {
	var job PayoutJob
	if err := decode(payload, &job, "payoutId"); err != nil {
		return err
	}

	payout, err := h.ledger.GetPayout(ctx, job.PayoutID)
	if err != nil {
		return err
	}
	if payout.IsTerminal() {
		return nil
	}

	payout, err = h.ledger.MarkPayoutProcessing(ctx, payout.ID)
	if err != nil {
		return err
	}
	if payout.IsTerminal() {
		return nil
	}

	res, err := h.provider.Submit(ctx, payout)
	if err != nil {
		return err
	}
	if res == nil {
		h.log.Info("payout awaiting manual settlement", zap.String("payout_id", payout.ID.String()))
		return nil
	}
	if res.Status == models.PayoutStatusProcessing {
		return nil
	}

	_, err = h.ledger.ResolvePayout(ctx, services.PayoutResolution{
		PayoutID:       payout.ID,
		Outcome:        res.Status,
		TransactionRef: res.TransactionRef,
		FailureReason:  res.FailureReason,
		Actor:          services.SystemActor,
	})
	return err
}
