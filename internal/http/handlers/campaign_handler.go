package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/http/dto"
	"github.com/repostpay/backend/internal/middleware"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/money"
	"github.com/repostpay/backend/internal/rbac"
	"github.com/repostpay/backend/internal/services"
	"go.uber.org/zap"
)

const (
	defaultMatchLimit = 20
	maxMatchLimit     = 100
)

type CampaignHandler struct {
	campaignService   *services.CampaignService
	submissionService *services.SubmissionService
	cfg               *config.Config
	log               *zap.Logger
}

func NewCampaignHandler(
	campaignService *services.CampaignService,
	submissionService *services.SubmissionService,
	cfg *config.Config,
	log *zap.Logger,
) *CampaignHandler {
	return &CampaignHandler{
		campaignService:   campaignService,
		submissionService: submissionService,
		cfg:               cfg,
		log:               log,
	}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	// Sponsor accounts act for themselves; admins name the sponsor.
	sponsorID := middleware.GetUserID(c)
	if middleware.IsAdmin(c) {
		id, err := uuid.Parse(req.SponsorID)
		if err != nil {
			return badRequest(c, "sponsor_id is required")
		}
		sponsorID = id
	}

	economics, err := h.economics(req.Economics)
	if err != nil {
		return badRequest(c, err.Error())
	}
	budget, err := parseAmount(req.TotalBudget, h.cfg.Currency)
	if err != nil {
		return badRequest(c, "invalid total_budget")
	}

	campaign, err := h.campaignService.Create(c.UserContext(), services.CreateCampaignCommand{
		SponsorID:         sponsorID,
		Name:              req.Name,
		Description:       req.Description,
		CreativeURL:       req.CreativeURL,
		CallToAction:      req.CallToAction,
		Targeting:         req.Targeting,
		Economics:         economics,
		TotalBudget:       budget,
		MaxParticipants:   req.MaxParticipants,
		TargetImpressions: req.TargetImpressions,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) UpdateCampaign(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid campaign id")
	}

	var req dto.UpdateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	patch := services.CampaignPatch{
		Name:              req.Name,
		Description:       req.Description,
		CreativeURL:       req.CreativeURL,
		CallToAction:      req.CallToAction,
		Targeting:         req.Targeting,
		MaxParticipants:   req.MaxParticipants,
		TargetImpressions: req.TargetImpressions,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
	}
	if req.Economics != nil {
		e, err := h.economics(*req.Economics)
		if err != nil {
			return badRequest(c, err.Error())
		}
		patch.Economics = &e
	}
	if req.TotalBudget != nil {
		b, err := parseAmount(*req.TotalBudget, h.cfg.Currency)
		if err != nil {
			return badRequest(c, "invalid total_budget")
		}
		patch.TotalBudget = &b
	}

	// The draft owner check needs a concrete sponsor; admins edit as the owner.
	sponsorID := middleware.GetUserID(c)
	if middleware.IsAdmin(c) {
		existing, err := h.campaignService.Get(c.UserContext(), id, nil)
		if err != nil {
			return respondError(c, h.log, err)
		}
		sponsorID = existing.SponsorID
	}

	campaign, err := h.campaignService.UpdateDraft(c.UserContext(), id, sponsorID, patch)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) SetStatus(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid campaign id")
	}

	var req dto.SetCampaignStatusRequest
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return badRequest(c, "status is required")
	}

	campaign, err := h.campaignService.SetStatus(c.UserContext(), id, sponsorScope(c), req.Status, actorFor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

// ListAvailable shows participants the campaigns open for claiming right now.
func (h *CampaignHandler) ListAvailable(c *fiber.Ctx) error {
	campaigns, err := h.campaignService.ListAvailable(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

func (h *CampaignHandler) ListMine(c *fiber.Ctx) error {
	campaigns, err := h.campaignService.ListBySponsor(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

// GetCampaign is open to every role. Participants need the creative and
// economics of campaigns they may claim.
func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid campaign id")
	}

	var scope *uuid.UUID
	if middleware.GetRole(c) != rbac.RoleParticipant {
		scope = sponsorScope(c)
	}
	campaign, err := h.campaignService.Get(c.UserContext(), id, scope)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetStats(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid campaign id")
	}

	stats, err := h.campaignService.Stats(c.UserContext(), id, sponsorScope(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: stats})
}

func (h *CampaignHandler) GetMatches(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid campaign id")
	}

	limit := defaultMatchLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return badRequest(c, "invalid limit")
		}
		limit = min(n, maxMatchLimit)
	}

	matches, err := h.campaignService.MatchParticipants(c.UserContext(), id, sponsorScope(c), limit)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: matches})
}

func (h *CampaignHandler) ListSubmissions(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid campaign id")
	}

	subs, err := h.submissionService.ListByCampaign(c.UserContext(), id, sponsorScope(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: subs})
}

func (h *CampaignHandler) economics(req dto.EconomicsRequest) (models.Economics, error) {
	var (
		e   models.Economics
		err error
	)
	fields := []struct {
		dst *money.Money
		src string
	}{
		{&e.CPMSponsor, req.CPMSponsor},
		{&e.CPMParticipant, req.CPMParticipant},
		{&e.FlatFee, req.FlatFee},
		{&e.ReshareBonus, req.ReshareBonus},
	}
	for _, f := range fields {
		if *f.dst, err = parseAmount(f.src, h.cfg.Currency); err != nil {
			return models.Economics{}, err
		}
	}
	return e, nil
}
