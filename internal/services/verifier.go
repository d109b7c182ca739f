package services

import (
	"context"

	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Verdict is a verifier's decision on a submission with reported metrics.
type Verdict struct {
	Outcome    string // VERIFIED or REJECTED
	VerifiedBy string
	Notes      *string
}

// Verifier inspects a submission's evidence. Implementations must not
// mutate state.
type Verifier interface {
	Verify(ctx context.Context, sub *models.Submission, participant *models.Participant) (Verdict, error)
}

// RulesVerifier accepts submissions that carry a screenshot and a plausible
// view count.
type RulesVerifier struct{}

const rulesVerifierName = "rules"

func (RulesVerifier) Verify(_ context.Context, sub *models.Submission, participant *models.Participant) (Verdict, error) {
	if !sub.HasMetrics() {
		return Verdict{}, apperr.New(apperr.KindInvalidState, "submission %s has no reported metrics", sub.ID)
	}
	if sub.ScreenshotURL == nil || *sub.ScreenshotURL == "" {
		return reject("screenshot missing"), nil
	}
	if decimal.NewFromInt(sub.Views()).GreaterThan(participant.MaxPlausibleViews()) {
		return reject("views exceed contact count"), nil
	}
	return Verdict{Outcome: models.SubmissionStatusVerified, VerifiedBy: rulesVerifierName}, nil
}

func reject(note string) Verdict {
	return Verdict{Outcome: models.SubmissionStatusRejected, VerifiedBy: rulesVerifierName, Notes: &note}
}
