package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/http/handlers"
	"github.com/repostpay/backend/internal/middleware"
	"github.com/repostpay/backend/internal/rbac"
	"go.uber.org/zap"
)

type Handlers struct {
	Sponsor     *handlers.SponsorHandler
	Participant *handlers.ParticipantHandler
	Campaign    *handlers.CampaignHandler
	Submission  *handlers.SubmissionHandler
	Payout      *handlers.PayoutHandler
	WS          *handlers.WSHub
}

func SetupRouter(app *fiber.App, cfg *config.Config, log *zap.Logger, rdb *redis.Client, h Handlers) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1",
		middleware.AuthMiddleware(cfg, log),
		middleware.RateLimitMiddleware(rdb, cfg.RateLimitPerMinute, time.Minute, log),
	)

	perm := middleware.RequirePermission
	admin := perm(rbac.PermManageSponsors)

	// Sponsors
	api.Post("/sponsors", admin, h.Sponsor.CreateSponsor)
	api.Post("/sponsors/:id/top-up", admin, h.Sponsor.TopUp)
	api.Get("/sponsors/:id", perm(rbac.PermManageCampaign), h.Sponsor.GetSponsor)
	api.Get("/sponsors/:id/stats", perm(rbac.PermManageCampaign), h.Sponsor.GetStats)

	// Participants
	api.Post("/me/profile", perm(rbac.PermClaimCampaign), h.Participant.Register)
	api.Get("/me/profile", perm(rbac.PermClaimCampaign), h.Participant.GetMe)
	api.Put("/me/profile", perm(rbac.PermClaimCampaign), h.Participant.UpdateProfile)
	api.Get("/participants/:id", perm(rbac.PermManageStanding), h.Participant.GetParticipant)
	api.Put("/participants/:id/standing", perm(rbac.PermManageStanding), h.Participant.UpdateStanding)

	// Campaigns
	manage := perm(rbac.PermManageCampaign)
	api.Post("/campaigns", manage, h.Campaign.CreateCampaign)
	api.Get("/campaigns/available", h.Campaign.ListAvailable)
	api.Get("/campaigns/mine", manage, h.Campaign.ListMine)
	api.Get("/campaigns/:id", h.Campaign.GetCampaign)
	api.Put("/campaigns/:id", manage, h.Campaign.UpdateCampaign)
	api.Post("/campaigns/:id/status", manage, h.Campaign.SetStatus)
	api.Get("/campaigns/:id/stats", manage, h.Campaign.GetStats)
	api.Get("/campaigns/:id/matches", manage, h.Campaign.GetMatches)
	api.Get("/campaigns/:id/submissions", perm(rbac.PermViewSubmissions), h.Campaign.ListSubmissions)

	// Submissions
	verify := perm(rbac.PermVerifySubmission)
	api.Post("/submissions", perm(rbac.PermClaimCampaign), h.Submission.Claim)
	api.Get("/me/submissions", perm(rbac.PermReportMetrics), h.Submission.ListMine)
	api.Get("/submissions/:id", h.Submission.GetSubmission)
	api.Post("/submissions/:id/metrics", perm(rbac.PermReportMetrics), h.Submission.SubmitMetrics)
	api.Delete("/submissions/:id", perm(rbac.PermReportMetrics), h.Submission.DeleteSubmission)
	api.Post("/submissions/:id/verify", verify, h.Submission.Verify)
	api.Post("/submissions/:id/verification-job", verify, h.Submission.EnqueueVerification)

	// Payouts
	resolve := perm(rbac.PermResolvePayout)
	api.Get("/me/balance", perm(rbac.PermRequestPayout), h.Payout.GetBalance)
	api.Get("/me/payouts", perm(rbac.PermRequestPayout), h.Payout.ListMine)
	api.Get("/me/payouts/stats", perm(rbac.PermRequestPayout), h.Payout.MyStats)
	api.Post("/payouts", perm(rbac.PermRequestPayout), h.Payout.RequestPayout)
	api.Get("/payouts/pending", resolve, h.Payout.ListPending)
	api.Get("/payouts/:id", h.Payout.GetPayout)
	api.Post("/payouts/:id/resolve", resolve, h.Payout.Resolve)
	api.Post("/payouts/:id/force-fail", resolve, h.Payout.ForceFail)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(h.WS.HandleWS))
}
