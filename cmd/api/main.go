package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/repostpay/backend/internal/cache"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/db"
	"github.com/repostpay/backend/internal/earnings"
	"github.com/repostpay/backend/internal/events"
	apphttp "github.com/repostpay/backend/internal/http"
	"github.com/repostpay/backend/internal/http/handlers"
	"github.com/repostpay/backend/internal/jobs"
	"github.com/repostpay/backend/internal/matching"
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

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "api", log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	store := repositories.NewPGStore(pool, cfg.Currency, cfg.TxMaxRetries, log)
	metrics := observability.Ledger()

	// Events
	publisher := events.NewRedisPublisher(rdb, metrics, log)
	subscriber := events.NewRedisSubscriber(rdb, metrics, log)

	// Services
	ledger := services.NewLedgerService(store, publisher, metrics, cfg, log)
	submissionService := services.NewSubmissionService(store, ledger, earnings.NewCalculator(), publisher, metrics, log)
	campaignService := services.NewCampaignService(store, matching.NewMatcher(), cache.NewMatchCache(rdb, cfg.MatchCacheTTL), publisher, cfg, log)
	sponsorService := services.NewSponsorService(store, ledger, cfg, log)
	participantService := services.NewParticipantService(store, cfg, log)

	enqueuer := jobs.NewEnqueuer(jobs.NewRedisQueue(rdb))

	// Handlers
	wsHub := handlers.NewWSHub(cfg, subscriber, log)
	wsHub.Start(ctx)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, apphttp.Handlers{
		Sponsor:     handlers.NewSponsorHandler(sponsorService, cfg, log),
		Participant: handlers.NewParticipantHandler(participantService, log),
		Campaign:    handlers.NewCampaignHandler(campaignService, submissionService, cfg, log),
		Submission:  handlers.NewSubmissionHandler(submissionService, enqueuer, log),
		Payout:      handlers.NewPayoutHandler(ledger, enqueuer, cfg, log),
		WS:          wsHub,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
