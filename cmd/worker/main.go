package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/db"
	"github.com/repostpay/backend/internal/earnings"
	"github.com/repostpay/backend/internal/events"
	"github.com/repostpay/backend/internal/jobs"
	"github.com/repostpay/backend/internal/observability"
	"github.com/repostpay/backend/internal/repositories"
	"github.com/repostpay/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "worker", log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	store := repositories.NewPGStore(pool, cfg.Currency, cfg.TxMaxRetries, log)
	metrics := observability.Ledger()
	publisher := events.NewRedisPublisher(rdb, metrics, log)

	// Services
	ledger := services.NewLedgerService(store, publisher, metrics, cfg, log)
	submissions := services.NewSubmissionService(store, ledger, earnings.NewCalculator(), publisher, metrics, log)
	participants := services.NewParticipantService(store, cfg, log)
	settlement := services.NewSettlementClient(cfg.SettlementURL, cfg.SettlementTimeout, log)

	dispatcher := jobs.NewDispatcher(jobs.NewRedisQueue(rdb), cfg.JobMaxAttempts, metrics, log)
	dispatcher.Register(jobs.QueueVerification, jobs.NewVerificationHandler(submissions, participants, services.RulesVerifier{}, log))
	dispatcher.Register(jobs.QueuePayouts, jobs.NewPayoutHandler(ledger, settlement, log))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	log.Info("worker started", zap.Duration("sweep_interval", cfg.StuckPayoutSweep))

	sweepTicker := time.NewTicker(cfg.StuckPayoutSweep)
	defer sweepTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			runStuckPayoutSweep(ctx, ledger, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			wg.Wait()
			return
		case <-ctx.Done():
			wg.Wait()
			return
		}
	}
}

func runStuckPayoutSweep(ctx context.Context, ledger *services.LedgerService, log *zap.Logger) {
	released, err := ledger.SweepStuckPayouts(ctx)
	if err != nil {
		log.Error("stuck payout sweep failed", zap.Error(err))
		return
	}
	if released > 0 {
		log.Info("stuck payout sweep", zap.Int("released", released))
	}
}
