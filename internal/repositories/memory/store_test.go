package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
	"github.com/repostpay/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailedTxLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	sponsor := &models.Sponsor{ID: uuid.New(), Kind: models.SponsorKindBrand, Balance: money.MustParse("10", money.USD)}

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx repositories.Tx) error {
		require.NoError(t, tx.Sponsors().Create(ctx, sponsor))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.WithTx(ctx, func(tx repositories.Tx) error {
		_, err := tx.Sponsors().Get(ctx, sponsor.ID)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDuplicateClaimConflicts(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	participantID, campaignID := uuid.New(), uuid.New()

	err := s.WithTx(ctx, func(tx repositories.Tx) error {
		if err := tx.Submissions().Create(ctx, &models.Submission{ID: uuid.New(), ParticipantID: participantID, CampaignID: campaignID}); err != nil {
			return err
		}
		return tx.Submissions().Create(ctx, &models.Submission{ID: uuid.New(), ParticipantID: participantID, CampaignID: campaignID})
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestListFundableOldestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	participantID := uuid.New()
	payoutID := uuid.New()

	var ids []uuid.UUID
	err := s.WithTx(ctx, func(tx repositories.Tx) error {
		for i := 0; i < 4; i++ {
			sub := &models.Submission{
				ID:            uuid.New(),
				ParticipantID: participantID,
				CampaignID:    uuid.New(),
				Status:        models.SubmissionStatusVerified,
			}
			if i == 1 {
				sub.ReservedByPayoutID = &payoutID
			}
			if i == 3 {
				sub.Status = models.SubmissionStatusPending
			}
			ids = append(ids, sub.ID)
			if err := tx.Submissions().Create(ctx, sub); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var fundable []models.Submission
	require.NoError(t, s.WithTx(ctx, func(tx repositories.Tx) error {
		var err error
		fundable, err = tx.Submissions().ListFundable(ctx, participantID)
		return err
	}))

	require.Len(t, fundable, 2)
	assert.Equal(t, ids[0], fundable[0].ID)
	assert.Equal(t, ids[2], fundable[1].ID)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := &models.Participant{ID: uuid.New(), Interests: []string{"tech"}}
	require.NoError(t, s.WithTx(ctx, func(tx repositories.Tx) error { return tx.Participants().Create(ctx, p) }))

	p.Interests[0] = "food"
	require.NoError(t, s.WithTx(ctx, func(tx repositories.Tx) error {
		got, err := tx.Participants().Get(ctx, p.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, []string{"tech"}, got.Interests)
		got.Interests[0] = "music"
		return nil
	}))

	require.NoError(t, s.WithTx(ctx, func(tx repositories.Tx) error {
		got, err := tx.Participants().Get(ctx, p.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, []string{"tech"}, got.Interests)
		return nil
	}))
}
