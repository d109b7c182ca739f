// Package memory is an in-process Store. Transactions run one at a time
// against a copy of the data that replaces the committed state only when fn
// succeeds, which makes every unit of work serializable.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/matching"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/repositories"
)

type row[T any] struct {
	v   T
	seq int64
}

type state struct {
	seq          int64
	sponsors     map[uuid.UUID]row[models.Sponsor]
	campaigns    map[uuid.UUID]row[models.Campaign]
	participants map[uuid.UUID]row[models.Participant]
	submissions  map[uuid.UUID]row[models.Submission]
	payouts      map[uuid.UUID]row[models.Payout]
	audit        []models.AuditLog
}

func newState() *state {
	return &state{
		sponsors:     map[uuid.UUID]row[models.Sponsor]{},
		campaigns:    map[uuid.UUID]row[models.Campaign]{},
		participants: map[uuid.UUID]row[models.Participant]{},
		submissions:  map[uuid.UUID]row[models.Submission]{},
		payouts:      map[uuid.UUID]row[models.Payout]{},
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:          s.seq,
		sponsors:     make(map[uuid.UUID]row[models.Sponsor], len(s.sponsors)),
		campaigns:    make(map[uuid.UUID]row[models.Campaign], len(s.campaigns)),
		participants: make(map[uuid.UUID]row[models.Participant], len(s.participants)),
		submissions:  make(map[uuid.UUID]row[models.Submission], len(s.submissions)),
		payouts:      make(map[uuid.UUID]row[models.Payout], len(s.payouts)),
		audit:        append([]models.AuditLog(nil), s.audit...),
	}
	for k, v := range s.sponsors {
		c.sponsors[k] = v
	}
	for k, v := range s.campaigns {
		c.campaigns[k] = v
	}
	for k, v := range s.participants {
		c.participants[k] = v
	}
	for k, v := range s.submissions {
		c.submissions[k] = v
	}
	for k, v := range s.payouts {
		c.payouts[k] = v
	}
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

type Store struct {
	mu    sync.Mutex
	state *state
}

func NewStore() *Store {
	return &Store{state: newState()}
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// AuditEntries returns a copy of the committed audit trail.
func (s *Store) AuditEntries() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditLog(nil), s.state.audit...)
}

type tx struct {
	st *state
}

func (t *tx) Sponsors() repositories.SponsorRepository         { return sponsorRepo{t.st} }
func (t *tx) Campaigns() repositories.CampaignRepository       { return campaignRepo{t.st} }
func (t *tx) Participants() repositories.ParticipantRepository { return participantRepo{t.st} }
func (t *tx) Submissions() repositories.SubmissionRepository   { return submissionRepo{t.st} }
func (t *tx) Payouts() repositories.PayoutRepository           { return payoutRepo{t.st} }
func (t *tx) Audit() repositories.AuditRepository              { return auditRepo{t.st} }

func notFound(entity string, id uuid.UUID) error {
	return apperr.New(apperr.KindNotFound, "%s %s not found", entity, id)
}

// sorted orders rows by insertion; desc reverses it.
func sorted[T any](rows []row[T], desc bool) []T {
	sort.Slice(rows, func(i, j int) bool {
		if desc {
			return rows[i].seq > rows[j].seq
		}
		return rows[i].seq < rows[j].seq
	})
	out := make([]T, len(rows))
	for i, r := range rows {
		out[i] = r.v
	}
	return out
}

// --- sponsors ---

type sponsorRepo struct{ st *state }

func (r sponsorRepo) Create(_ context.Context, s *models.Sponsor) error {
	if _, ok := r.st.sponsors[s.ID]; ok {
		return apperr.New(apperr.KindConflict, "sponsor %s already exists", s.ID)
	}
	r.st.sponsors[s.ID] = row[models.Sponsor]{v: *s, seq: r.st.next()}
	return nil
}

func (r sponsorRepo) Get(_ context.Context, id uuid.UUID) (*models.Sponsor, error) {
	rw, ok := r.st.sponsors[id]
	if !ok {
		return nil, notFound("sponsor", id)
	}
	v := rw.v
	return &v, nil
}

func (r sponsorRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Sponsor, error) {
	return r.Get(ctx, id)
}

func (r sponsorRepo) Update(_ context.Context, s *models.Sponsor) error {
	rw, ok := r.st.sponsors[s.ID]
	if !ok {
		return notFound("sponsor", s.ID)
	}
	rw.v = *s
	r.st.sponsors[s.ID] = rw
	return nil
}

// --- campaigns ---

type campaignRepo struct{ st *state }

func cloneCampaign(c models.Campaign) models.Campaign {
	c.Targeting.Locations = append([]string(nil), c.Targeting.Locations...)
	c.Targeting.AgeRanges = append([]string(nil), c.Targeting.AgeRanges...)
	c.Targeting.Interests = append([]string(nil), c.Targeting.Interests...)
	return c
}

func (r campaignRepo) Create(_ context.Context, c *models.Campaign) error {
	if _, ok := r.st.campaigns[c.ID]; ok {
		return apperr.New(apperr.KindConflict, "campaign %s already exists", c.ID)
	}
	r.st.campaigns[c.ID] = row[models.Campaign]{v: cloneCampaign(*c), seq: r.st.next()}
	return nil
}

func (r campaignRepo) Get(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	rw, ok := r.st.campaigns[id]
	if !ok {
		return nil, notFound("campaign", id)
	}
	v := cloneCampaign(rw.v)
	return &v, nil
}

func (r campaignRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return r.Get(ctx, id)
}

func (r campaignRepo) Update(_ context.Context, c *models.Campaign) error {
	rw, ok := r.st.campaigns[c.ID]
	if !ok {
		return notFound("campaign", c.ID)
	}
	rw.v = cloneCampaign(*c)
	r.st.campaigns[c.ID] = rw
	return nil
}

func (r campaignRepo) ListByStatus(_ context.Context, status string) ([]models.Campaign, error) {
	return r.filter(func(c *models.Campaign) bool { return c.Status == status }), nil
}

func (r campaignRepo) ListBySponsor(_ context.Context, sponsorID uuid.UUID) ([]models.Campaign, error) {
	return r.filter(func(c *models.Campaign) bool { return c.SponsorID == sponsorID }), nil
}

func (r campaignRepo) filter(keep func(*models.Campaign) bool) []models.Campaign {
	var rows []row[models.Campaign]
	for _, rw := range r.st.campaigns {
		if keep(&rw.v) {
			rw.v = cloneCampaign(rw.v)
			rows = append(rows, rw)
		}
	}
	return sorted(rows, true)
}

// --- participants ---

type participantRepo struct{ st *state }

func cloneParticipant(p models.Participant) models.Participant {
	p.Interests = append([]string(nil), p.Interests...)
	return p
}

func (r participantRepo) Create(_ context.Context, p *models.Participant) error {
	if _, ok := r.st.participants[p.ID]; ok {
		return apperr.New(apperr.KindConflict, "participant %s already exists", p.ID)
	}
	r.st.participants[p.ID] = row[models.Participant]{v: cloneParticipant(*p), seq: r.st.next()}
	return nil
}

func (r participantRepo) Get(_ context.Context, id uuid.UUID) (*models.Participant, error) {
	rw, ok := r.st.participants[id]
	if !ok {
		return nil, notFound("participant", id)
	}
	v := cloneParticipant(rw.v)
	return &v, nil
}

func (r participantRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	return r.Get(ctx, id)
}

func (r participantRepo) Update(_ context.Context, p *models.Participant) error {
	rw, ok := r.st.participants[p.ID]
	if !ok {
		return notFound("participant", p.ID)
	}
	rw.v = cloneParticipant(*p)
	r.st.participants[p.ID] = rw
	return nil
}

func (r participantRepo) ListEligible(_ context.Context, t models.Targeting) ([]models.Participant, error) {
	var out []models.Participant
	for _, rw := range r.st.participants {
		if matching.Eligible(&t, &rw.v) {
			out = append(out, cloneParticipant(rw.v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// --- submissions ---

type submissionRepo struct{ st *state }

func (r submissionRepo) Create(_ context.Context, s *models.Submission) error {
	for _, rw := range r.st.submissions {
		if rw.v.ParticipantID == s.ParticipantID && rw.v.CampaignID == s.CampaignID {
			return apperr.New(apperr.KindConflict, "participant %s already claimed campaign %s", s.ParticipantID, s.CampaignID)
		}
	}
	r.st.submissions[s.ID] = row[models.Submission]{v: *s, seq: r.st.next()}
	return nil
}

func (r submissionRepo) Get(_ context.Context, id uuid.UUID) (*models.Submission, error) {
	rw, ok := r.st.submissions[id]
	if !ok {
		return nil, notFound("submission", id)
	}
	v := rw.v
	return &v, nil
}

func (r submissionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Submission, error) {
	return r.Get(ctx, id)
}

func (r submissionRepo) Update(_ context.Context, s *models.Submission) error {
	rw, ok := r.st.submissions[s.ID]
	if !ok {
		return notFound("submission", s.ID)
	}
	rw.v = *s
	r.st.submissions[s.ID] = rw
	return nil
}

func (r submissionRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.st.submissions[id]; !ok {
		return notFound("submission", id)
	}
	delete(r.st.submissions, id)
	return nil
}

func (r submissionRepo) Exists(_ context.Context, participantID, campaignID uuid.UUID) (bool, error) {
	for _, rw := range r.st.submissions {
		if rw.v.ParticipantID == participantID && rw.v.CampaignID == campaignID {
			return true, nil
		}
	}
	return false, nil
}

func (r submissionRepo) CountByCampaign(_ context.Context, campaignID uuid.UUID) (int, error) {
	n := 0
	for _, rw := range r.st.submissions {
		if rw.v.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

func (r submissionRepo) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]models.Submission, error) {
	return r.filter(true, func(s *models.Submission) bool { return s.CampaignID == campaignID }), nil
}

func (r submissionRepo) ListByParticipant(_ context.Context, participantID uuid.UUID) ([]models.Submission, error) {
	return r.filter(true, func(s *models.Submission) bool { return s.ParticipantID == participantID }), nil
}

func (r submissionRepo) ListFundable(_ context.Context, participantID uuid.UUID) ([]models.Submission, error) {
	return r.filter(false, func(s *models.Submission) bool {
		return s.ParticipantID == participantID && s.IsFundable()
	}), nil
}

func (r submissionRepo) ListByIDs(_ context.Context, ids []uuid.UUID) ([]models.Submission, error) {
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return r.filter(false, func(s *models.Submission) bool {
		_, ok := want[s.ID]
		return ok
	}), nil
}

func (r submissionRepo) filter(desc bool, keep func(*models.Submission) bool) []models.Submission {
	var rows []row[models.Submission]
	for _, rw := range r.st.submissions {
		if keep(&rw.v) {
			rows = append(rows, rw)
		}
	}
	return sorted(rows, desc)
}

// --- payouts ---

type payoutRepo struct{ st *state }

func clonePayout(p models.Payout) models.Payout {
	p.CoveredSubmissionIDs = append([]uuid.UUID(nil), p.CoveredSubmissionIDs...)
	return p
}

func (r payoutRepo) Create(_ context.Context, p *models.Payout) error {
	if _, ok := r.st.payouts[p.ID]; ok {
		return apperr.New(apperr.KindConflict, "payout %s already exists", p.ID)
	}
	r.st.payouts[p.ID] = row[models.Payout]{v: clonePayout(*p), seq: r.st.next()}
	return nil
}

func (r payoutRepo) Get(_ context.Context, id uuid.UUID) (*models.Payout, error) {
	rw, ok := r.st.payouts[id]
	if !ok {
		return nil, notFound("payout", id)
	}
	v := clonePayout(rw.v)
	return &v, nil
}

func (r payoutRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	return r.Get(ctx, id)
}

func (r payoutRepo) Update(_ context.Context, p *models.Payout) error {
	rw, ok := r.st.payouts[p.ID]
	if !ok {
		return notFound("payout", p.ID)
	}
	rw.v.Status = p.Status
	rw.v.TransactionRef = p.TransactionRef
	rw.v.FailureReason = p.FailureReason
	rw.v.ProcessingAt = p.ProcessingAt
	rw.v.ProcessedAt = p.ProcessedAt
	rw.v.UpdatedAt = p.UpdatedAt
	r.st.payouts[p.ID] = rw
	return nil
}

func (r payoutRepo) ListByParticipant(_ context.Context, participantID uuid.UUID) ([]models.Payout, error) {
	return r.filter(true, func(p *models.Payout) bool { return p.ParticipantID == participantID }), nil
}

func (r payoutRepo) ListByStatus(_ context.Context, status string, limit int) ([]models.Payout, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := r.filter(false, func(p *models.Payout) bool { return p.Status == status })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r payoutRepo) ListOpen(_ context.Context, participantID uuid.UUID) ([]models.Payout, error) {
	return r.filter(false, func(p *models.Payout) bool { return p.ParticipantID == participantID && p.IsOpen() }), nil
}

func (r payoutRepo) ListStuck(_ context.Context, cutoff time.Time) ([]models.Payout, error) {
	return r.filter(false, func(p *models.Payout) bool {
		switch p.Status {
		case models.PayoutStatusProcessing:
			return p.ProcessingAt != nil && p.ProcessingAt.Before(cutoff)
		case models.PayoutStatusPending:
			return p.CreatedAt.Before(cutoff)
		}
		return false
	}), nil
}

func (r payoutRepo) filter(desc bool, keep func(*models.Payout) bool) []models.Payout {
	var rows []row[models.Payout]
	for _, rw := range r.st.payouts {
		if keep(&rw.v) {
			rw.v = clonePayout(rw.v)
			rows = append(rows, rw)
		}
	}
	return sorted(rows, desc)
}

// --- audit ---

type auditRepo struct{ st *state }

func (r auditRepo) Log(_ context.Context, entry models.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	r.st.audit = append(r.st.audit, entry)
	return nil
}

func (r auditRepo) ListByEntity(_ context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.AuditLog
	for i := len(r.st.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.st.audit[i]
		if e.EntityType == entityType && e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}
