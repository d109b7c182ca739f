package repositories

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/money"
	"github.com/repostpay/backend/internal/observability"
	"go.uber.org/zap"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// PGStore runs every unit of work in a SERIALIZABLE transaction and retries
// it when Postgres aborts on a read/write conflict.
type PGStore struct {
	pool       *pgxpool.Pool
	currency   money.Currency
	maxRetries int
	log        *zap.Logger
}

func NewPGStore(pool *pgxpool.Pool, currency money.Currency, maxRetries int, log *zap.Logger) *PGStore {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &PGStore{pool: pool, currency: currency, maxRetries: maxRetries, log: log}
}

func (s *PGStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return retryOnConflict(ctx, s.maxRetries, s.log, func() error {
		tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(&pgTx{q: tx, cur: s.currency}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// retryOnConflict re-runs op on serialization failures and deadlocks with a
// jittered backoff. Exhaustion surfaces as a retryable apperr.
func retryOnConflict(ctx context.Context, maxAttempts int, log *zap.Logger, op func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op()
		if err == nil || !isConflict(err) {
			return err
		}

		observability.Ledger().RecordTxConflict()
		log.Debug("transaction conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(attempt)*10*time.Millisecond + time.Duration(rand.Intn(10))*time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return apperr.Wrap(apperr.KindRetryable, err, "transaction aborted after %d attempts", maxAttempts)
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func notFound(err error, entity string, id any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.New(apperr.KindNotFound, "%s %v not found", entity, id)
	}
	return err
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type pgTx struct {
	q   querier
	cur money.Currency
}

func (t *pgTx) Sponsors() SponsorRepository         { return &SponsorRepo{q: t.q, cur: t.cur} }
func (t *pgTx) Campaigns() CampaignRepository       { return &CampaignRepo{q: t.q, cur: t.cur} }
func (t *pgTx) Participants() ParticipantRepository { return &ParticipantRepo{q: t.q, cur: t.cur} }
func (t *pgTx) Submissions() SubmissionRepository   { return &SubmissionRepo{q: t.q, cur: t.cur} }
func (t *pgTx) Payouts() PayoutRepository           { return &PayoutRepo{q: t.q, cur: t.cur} }
func (t *pgTx) Audit() AuditRepository              { return &AuditRepo{q: t.q} }

// tag stamps the store currency on amounts scanned from NUMERIC columns.
func tag(cur money.Currency, ms ...*money.Money) {
	for _, m := range ms {
		m.Currency = cur
	}
}

func conflict(format string, args ...any) error {
	return apperr.New(apperr.KindConflict, format, args...)
}

func notFoundID(entity string, id any) error {
	return apperr.New(apperr.KindNotFound, "%s %v not found", entity, id)
}
