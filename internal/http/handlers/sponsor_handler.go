package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/http/dto"
	"github.com/repostpay/backend/internal/middleware"
	"github.com/repostpay/backend/internal/services"
	"go.uber.org/zap"
)

type SponsorHandler struct {
	sponsorService *services.SponsorService
	cfg            *config.Config
	log            *zap.Logger
}

func NewSponsorHandler(sponsorService *services.SponsorService, cfg *config.Config, log *zap.Logger) *SponsorHandler {
	return &SponsorHandler{sponsorService: sponsorService, cfg: cfg, log: log}
}

func (h *SponsorHandler) CreateSponsor(c *fiber.Ctx) error {
	var req dto.CreateSponsorRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	sp, err := h.sponsorService.Create(c.UserContext(), req.Kind, req.Name, actorFor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: sp})
}

func (h *SponsorHandler) TopUp(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid sponsor id")
	}

	var req dto.TopUpRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	amount, err := parseAmount(req.Amount, h.cfg.Currency)
	if err != nil {
		return badRequest(c, err.Error())
	}

	sp, err := h.sponsorService.TopUp(c.UserContext(), id, amount, actorFor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: sp})
}

// GetSponsor serves admins and the sponsor account itself.
func (h *SponsorHandler) GetSponsor(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid sponsor id")
	}
	if !middleware.IsAdmin(c) && middleware.GetUserID(c) != id {
		return respondError(c, h.log, apperr.New(apperr.KindForbidden, "not your sponsor account"))
	}

	sp, err := h.sponsorService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: sp})
}

func (h *SponsorHandler) GetStats(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid sponsor id")
	}
	if !middleware.IsAdmin(c) && middleware.GetUserID(c) != id {
		return respondError(c, h.log, apperr.New(apperr.KindForbidden, "not your sponsor account"))
	}

	stats, err := h.sponsorService.Stats(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: stats})
}
