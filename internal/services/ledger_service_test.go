package services

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/events"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// earner sets up a participant with n verified submissions worth 5 each.
func earner(h *harness, n int) *models.Participant {
	h.t.Helper()
	sp := h.sponsor(models.SponsorKindBrand, "10000")
	p := h.participant(1000, models.TierBronze)
	for i := 0; i < n; i++ {
		c := h.campaign(sp.ID, campaignOpts{})
		h.verified(p, c, 500)
	}
	return p
}

func TestAvailableBalance(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 2)

	// A pending submission does not count.
	sp := h.sponsor(models.SponsorKindBrand, "100")
	h.claimWithMetrics(p, h.campaign(sp.ID, campaignOpts{}), 500)

	available, err := h.ledger.AvailableBalance(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", available.String())
}

func TestRequestPayoutBoundary(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   error
	}{
		{"exact balance", "10", nil},
		{"one micro-unit over", "10.000001", apperr.ErrInsufficientBalance},
		{"below minimum", "4.999999", apperr.ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			p := earner(h, 2)

			payout, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, tt.amount))
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.PayoutStatusPending, payout.Status)
			assert.Len(t, payout.CoveredSubmissionIDs, 2)
			assert.Equal(t, "10", payout.CoveredAmount.String())

			available, err := h.ledger.AvailableBalance(h.ctx, p.ID)
			require.NoError(t, err)
			assert.True(t, available.IsZero())
		})
	}
}

func TestRequestPayoutValidation(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 2)

	_, err := h.ledger.RequestPayout(h.ctx, PayoutRequest{ParticipantID: p.ID, Amount: usd("5"), Method: "CHEQUE"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = h.ledger.RequestPayout(h.ctx, PayoutRequest{ParticipantID: p.ID, Amount: usd("5"), Method: models.PayoutMethodBank})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	h.tx(func(tx repositories.Tx) error {
		p.IsBanned = true
		return tx.Participants().Update(h.ctx, p)
	})
	_, err = h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "5"))
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestRequestPayoutReservesOldestFirst(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 3)

	subs, err := h.submissions.ListByParticipant(h.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	oldest := subs[len(subs)-1]

	payout, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "5"))
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{oldest.ID}, payout.CoveredSubmissionIDs)
	assert.Equal(t, payout.ID, *h.getSubmission(oldest.ID).ReservedByPayoutID)

	available, err := h.ledger.AvailableBalance(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", available.String())
}

func TestRequestPayoutOverCovers(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 2)

	payout, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "7"))
	require.NoError(t, err)
	assert.Len(t, payout.CoveredSubmissionIDs, 2)
	assert.Equal(t, "10", payout.CoveredAmount.String())

	available, err := h.ledger.AvailableBalance(h.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, available.IsZero())

	_, err = h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "5"))
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)
}

func TestConcurrentPayoutsNeverOverdraw(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 10)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		accepted     int
		insufficient int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "5"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case apperr.KindOf(err) == apperr.KindInsufficientBalance:
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	assert.Equal(t, 15, insufficient)

	reserved := map[uuid.UUID]uuid.UUID{}
	payouts, err := h.ledger.ListPayouts(h.ctx, p.ID)
	require.NoError(t, err)
	for _, po := range payouts {
		for _, id := range po.CoveredSubmissionIDs {
			_, dup := reserved[id]
			assert.False(t, dup, "submission %s reserved twice", id)
			reserved[id] = po.ID
		}
	}
	assert.Len(t, reserved, 10)
}

func TestResolvePayoutCompleted(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 2)
	payout, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "10"))
	require.NoError(t, err)

	ref := "MP-123"
	done, err := h.ledger.ResolvePayout(h.ctx, PayoutResolution{
		PayoutID:       payout.ID,
		Outcome:        models.PayoutStatusCompleted,
		TransactionRef: &ref,
		Actor:          SystemActor,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusCompleted, done.Status)
	assert.Equal(t, testNow, *done.ProcessedAt)
	assert.Equal(t, "MP-123", *done.TransactionRef)

	for _, id := range payout.CoveredSubmissionIDs {
		assert.Equal(t, models.SubmissionStatusPaid, h.getSubmission(id).Status)
	}
	assert.Equal(t, "10", h.getParticipant(p.ID).TotalEarned.String())

	// Replaying the same outcome changes nothing.
	_, err = h.ledger.ResolvePayout(h.ctx, PayoutResolution{PayoutID: payout.ID, Outcome: models.PayoutStatusCompleted, Actor: SystemActor})
	require.NoError(t, err)
	assert.Equal(t, "10", h.getParticipant(p.ID).TotalEarned.String())

	_, err = h.ledger.ResolvePayout(h.ctx, PayoutResolution{PayoutID: payout.ID, Outcome: models.PayoutStatusFailed, Actor: SystemActor})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	stats, err := h.ledger.PayoutStats(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", stats.TotalPaidOut.String())
	assert.Equal(t, 1, stats.CompletedPayouts)
	assert.Contains(t, h.pub.types(), events.EventPayoutResolved)
}

func TestResolvePayoutFailedReleasesReservations(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 2)
	payout, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "10"))
	require.NoError(t, err)

	failed, err := h.ledger.ResolvePayout(h.ctx, PayoutResolution{PayoutID: payout.ID, Outcome: models.PayoutStatusFailed, Actor: SystemActor})
	require.NoError(t, err)
	assert.Equal(t, "unspecified", *failed.FailureReason)

	for _, id := range payout.CoveredSubmissionIDs {
		sub := h.getSubmission(id)
		assert.Equal(t, models.SubmissionStatusVerified, sub.Status)
		assert.Nil(t, sub.ReservedByPayoutID)
	}
	assert.True(t, h.getParticipant(p.ID).TotalEarned.IsZero())

	available, err := h.ledger.AvailableBalance(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", available.String())

	_, err = h.ledger.ResolvePayout(h.ctx, PayoutResolution{PayoutID: payout.ID, Outcome: models.PayoutStatusCompleted, Actor: SystemActor})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestTotalEarnedMatchesCompletedPayouts(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 4)

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		po, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "5"))
		require.NoError(t, err)
		ids = append(ids, po.ID)
	}
	outcomes := []string{models.PayoutStatusCompleted, models.PayoutStatusFailed, models.PayoutStatusCompleted, models.PayoutStatusCompleted}
	for i, id := range ids {
		_, err := h.ledger.ResolvePayout(h.ctx, PayoutResolution{PayoutID: id, Outcome: outcomes[i], Actor: SystemActor})
		require.NoError(t, err)
	}

	stats, err := h.ledger.PayoutStats(h.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, h.getParticipant(p.ID).TotalEarned.Equal(stats.TotalPaidOut))
	assert.Equal(t, "15", stats.TotalPaidOut.String())
	assert.Equal(t, 1, stats.FailedPayouts)
}

func TestMarkProcessingAndSweep(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 2)
	stuck, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "5"))
	require.NoError(t, err)
	fresh, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "5"))
	require.NoError(t, err)

	processing, err := h.ledger.MarkPayoutProcessing(h.ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusProcessing, processing.Status)
	again, err := h.ledger.MarkPayoutProcessing(h.ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, testNow, *again.ProcessingAt)

	h.ledger.now = func() time.Time { return testNow.Add(30 * time.Minute) }
	_, err = h.ledger.MarkPayoutProcessing(h.ctx, fresh.ID)
	require.NoError(t, err)

	h.ledger.now = func() time.Time { return testNow.Add(61 * time.Minute) }
	released, err := h.ledger.SweepStuckPayouts(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	swept, err := h.ledger.GetPayout(h.ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusFailed, swept.Status)
	assert.Contains(t, *swept.FailureReason, "processing timeout")

	still, err := h.ledger.GetPayout(h.ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusProcessing, still.Status)

	available, err := h.ledger.AvailableBalance(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "5", available.String())
}

func TestSweepReleasesPayoutNeverPickedUp(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 1)
	payout, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "5"))
	require.NoError(t, err)

	h.ledger.now = func() time.Time { return testNow.Add(59 * time.Minute) }
	released, err := h.ledger.SweepStuckPayouts(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, released)

	h.ledger.now = func() time.Time { return testNow.Add(61 * time.Minute) }
	released, err = h.ledger.SweepStuckPayouts(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	swept, err := h.ledger.GetPayout(h.ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusFailed, swept.Status)
	assert.Contains(t, *swept.FailureReason, "not picked up")

	available, err := h.ledger.AvailableBalance(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "5", available.String())

	late, err := h.ledger.MarkPayoutProcessing(h.ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusFailed, late.Status)
}

func TestForceFailPayout(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 1)
	payout, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "5"))
	require.NoError(t, err)

	failed, err := h.ledger.ForceFailPayout(h.ctx, payout.ID, "", AdminActor(uuid.New()))
	require.NoError(t, err)
	assert.Equal(t, "force-failed by operator", *failed.FailureReason)

	pending, err := h.ledger.ListPendingPayouts(h.ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCreditSponsor(t *testing.T) {
	h := newHarness(t)
	sp := h.sponsor(models.SponsorKindBrand, "1")

	_, err := h.sponsors.TopUp(h.ctx, sp.ID, usd("0"), SystemActor)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := h.sponsors.TopUp(h.ctx, sp.ID, usd("24.5"), SystemActor)
	require.NoError(t, err)
	assert.Equal(t, "25.5", updated.Balance.String())

	var actions []string
	for _, e := range h.store.AuditEntries() {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, "sponsor_topped_up")
}

func TestEarningsSummary(t *testing.T) {
	h := newHarness(t)
	p := earner(h, 3)
	po, err := h.ledger.RequestPayout(h.ctx, mpesa(p.ID, "5"))
	require.NoError(t, err)
	_, err = h.ledger.ResolvePayout(h.ctx, PayoutResolution{PayoutID: po.ID, Outcome: models.PayoutStatusCompleted, Actor: SystemActor})
	require.NoError(t, err)

	e, err := h.ledger.Earnings(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "5", e.TotalEarned.String())
	assert.Equal(t, "10", e.PendingEarnings.String())
	assert.Equal(t, "10", e.Available.String())
}
