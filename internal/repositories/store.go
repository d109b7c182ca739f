package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/models"
)

// Store runs units of work. fn may be invoked more than once when the
// backend aborts a transaction on a serialization conflict, so it must not
// have side effects outside tx.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	Sponsors() SponsorRepository
	Campaigns() CampaignRepository
	Participants() ParticipantRepository
	Submissions() SubmissionRepository
	Payouts() PayoutRepository
	Audit() AuditRepository
}

// Get methods return an apperr NotFound error for missing rows. ForUpdate
// variants additionally lock the row until the transaction ends.

type SponsorRepository interface {
	Create(ctx context.Context, s *models.Sponsor) error
	Get(ctx context.Context, id uuid.UUID) (*models.Sponsor, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Sponsor, error)
	Update(ctx context.Context, s *models.Sponsor) error
}

type CampaignRepository interface {
	Create(ctx context.Context, c *models.Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Update(ctx context.Context, c *models.Campaign) error
	ListByStatus(ctx context.Context, status string) ([]models.Campaign, error)
	ListBySponsor(ctx context.Context, sponsorID uuid.UUID) ([]models.Campaign, error)
}

type ParticipantRepository interface {
	Create(ctx context.Context, p *models.Participant) error
	Get(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	Update(ctx context.Context, p *models.Participant) error
	// ListEligible applies the matching pre-filter.
	ListEligible(ctx context.Context, t models.Targeting) ([]models.Participant, error)
}

type SubmissionRepository interface {
	// Create returns an apperr Conflict error when the participant already
	// holds a submission for the campaign.
	Create(ctx context.Context, s *models.Submission) error
	Get(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Submission, error)
	Update(ctx context.Context, s *models.Submission) error
	Delete(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, participantID, campaignID uuid.UUID) (bool, error)
	CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int, error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]models.Submission, error)
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Submission, error)
	// ListFundable returns VERIFIED, unreserved submissions oldest first.
	ListFundable(ctx context.Context, participantID uuid.UUID) ([]models.Submission, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Submission, error)
}

type PayoutRepository interface {
	Create(ctx context.Context, p *models.Payout) error
	Get(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	Update(ctx context.Context, p *models.Payout) error
	ListByParticipant(ctx context.Context, participantID uuid.UUID) ([]models.Payout, error)
	// ListByStatus returns the oldest payouts in a status first.
	ListByStatus(ctx context.Context, status string, limit int) ([]models.Payout, error)
	// ListOpen returns PENDING and PROCESSING payouts of a participant.
	ListOpen(ctx context.Context, participantID uuid.UUID) ([]models.Payout, error)
	// ListStuck returns PROCESSING payouts that entered processing before
	// cutoff and PENDING payouts created before cutoff.
	ListStuck(ctx context.Context, cutoff time.Time) ([]models.Payout, error)
}

type AuditRepository interface {
	Log(ctx context.Context, entry models.AuditLog) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.AuditLog, error)
}
