package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryOnConflictRecovers(t *testing.T) {
	calls := 0
	err := retryOnConflict(context.Background(), 3, zap.NewNop(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("settle: %w", &pgconn.PgError{Code: pgSerializationFailure})
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryOnConflictExhausts(t *testing.T) {
	calls := 0
	err := retryOnConflict(context.Background(), 2, zap.NewNop(), func() error {
		calls++
		return &pgconn.PgError{Code: pgDeadlockDetected}
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, apperr.IsRetryable(err))
}

func TestRetryOnConflictPassesOtherErrors(t *testing.T) {
	calls := 0
	boom := apperr.New(apperr.KindBudgetExceeded, "over budget")
	err := retryOnConflict(context.Background(), 5, zap.NewNop(), func() error {
		calls++
		return boom
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, apperr.ErrBudgetExceeded)
	assert.False(t, apperr.IsRetryable(err))
}

func TestRetryOnConflictHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retryOnConflict(ctx, 5, zap.NewNop(), func() error {
		return &pgconn.PgError{Code: pgSerializationFailure}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorMapping(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolation})))
	assert.False(t, isUniqueViolation(errors.New("23505")))

	err := notFound(pgx.ErrNoRows, "payout", "p-1")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "payout p-1 not found", err.Error())

	other := errors.New("conn reset")
	assert.Equal(t, other, notFound(other, "payout", "p-1"))
}
