package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/repostpay/backend/internal/http/dto"
	"github.com/repostpay/backend/internal/middleware"
	"github.com/repostpay/backend/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ParticipantHandler struct {
	participantService *services.ParticipantService
	log                *zap.Logger
}

func NewParticipantHandler(participantService *services.ParticipantService, log *zap.Logger) *ParticipantHandler {
	return &ParticipantHandler{participantService: participantService, log: log}
}

func profilePatch(req dto.ProfileRequest) services.ProfilePatch {
	return services.ProfilePatch{
		ContactCount:    req.ContactCount,
		Interests:       req.Interests,
		AgeRange:        req.AgeRange,
		LocationCity:    req.LocationCity,
		LocationCountry: req.LocationCountry,
	}
}

// Register creates the participant profile for the authenticated user.
func (h *ParticipantHandler) Register(c *fiber.Ctx) error {
	var req dto.ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	p, err := h.participantService.Register(c.UserContext(), middleware.GetUserID(c), profilePatch(req))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *ParticipantHandler) GetMe(c *fiber.Ctx) error {
	p, err := h.participantService.Get(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *ParticipantHandler) UpdateProfile(c *fiber.Ctx) error {
	var req dto.ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	p, err := h.participantService.UpdateProfile(c.UserContext(), middleware.GetUserID(c), profilePatch(req))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *ParticipantHandler) GetParticipant(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid participant id")
	}

	p, err := h.participantService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}

func (h *ParticipantHandler) UpdateStanding(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid participant id")
	}

	var req dto.StandingRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	patch := services.StandingPatch{
		Tier:             req.Tier,
		WhatsappVerified: req.WhatsappVerified,
		IsBanned:         req.IsBanned,
	}
	if req.AvgViewRate != nil {
		d, err := decimal.NewFromString(*req.AvgViewRate)
		if err != nil {
			return badRequest(c, "invalid avg_view_rate")
		}
		patch.AvgViewRate = &d
	}
	if req.ReputationScore != nil {
		d, err := decimal.NewFromString(*req.ReputationScore)
		if err != nil {
			return badRequest(c, "invalid reputation_score")
		}
		patch.ReputationScore = &d
	}

	p, err := h.participantService.UpdateStanding(c.UserContext(), id, patch, actorFor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: p})
}
