package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/http/dto"
	"github.com/repostpay/backend/internal/jobs"
	"github.com/repostpay/backend/internal/middleware"
	"github.com/repostpay/backend/internal/services"
	"go.uber.org/zap"
)

// JobEnqueuer hands work to the background worker.
type JobEnqueuer interface {
	EnqueueVerification(ctx context.Context, submissionID uuid.UUID) error
	EnqueuePayout(ctx context.Context, payoutID uuid.UUID) error
}

type SubmissionHandler struct {
	submissionService *services.SubmissionService
	enqueuer          JobEnqueuer
	log               *zap.Logger
}

func NewSubmissionHandler(submissionService *services.SubmissionService, enqueuer JobEnqueuer, log *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{submissionService: submissionService, enqueuer: enqueuer, log: log}
}

func (h *SubmissionHandler) Claim(c *fiber.Ctx) error {
	var req dto.ClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	campaignID, err := uuid.Parse(req.CampaignID)
	if err != nil {
		return badRequest(c, "invalid campaign_id")
	}

	cmd := services.ClaimCommand{
		ParticipantID: middleware.GetUserID(c),
		CampaignID:    campaignID,
		IsReshare:     req.IsReshare,
	}
	if req.OriginalSubmissionID != nil {
		orig, err := uuid.Parse(*req.OriginalSubmissionID)
		if err != nil {
			return badRequest(c, "invalid original_submission_id")
		}
		cmd.OriginalSubmissionID = &orig
	}

	sub, err := h.submissionService.Claim(c.UserContext(), cmd)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: sub})
}

func (h *SubmissionHandler) SubmitMetrics(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid submission id")
	}

	var req dto.SubmitMetricsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	sub, err := h.submissionService.SubmitMetrics(c.UserContext(), services.SubmitMetricsCommand{
		SubmissionID:  id,
		ParticipantID: middleware.GetUserID(c),
		Views:         req.Views,
		Reshares:      req.Reshares,
		ScreenshotURL: req.ScreenshotURL,
		PostedAt:      req.PostedAt,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: sub})
}

func (h *SubmissionHandler) DeleteSubmission(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid submission id")
	}

	if err := h.submissionService.Delete(c.UserContext(), id, middleware.GetUserID(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// GetSubmission lets participants read their own submissions and admins any.
func (h *SubmissionHandler) GetSubmission(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid submission id")
	}

	var owner *uuid.UUID
	if !middleware.IsAdmin(c) {
		uid := middleware.GetUserID(c)
		owner = &uid
	}
	sub, err := h.submissionService.Get(c.UserContext(), id, owner)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: sub})
}

func (h *SubmissionHandler) ListMine(c *fiber.Ctx) error {
	subs, err := h.submissionService.ListByParticipant(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: subs})
}

// Verify records an operator's verdict synchronously.
func (h *SubmissionHandler) Verify(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid submission id")
	}

	var req dto.VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	actor := actorFor(c)
	sub, err := h.submissionService.Verify(c.UserContext(), services.VerifyCommand{
		SubmissionID: id,
		Outcome:      strings.ToUpper(req.Outcome),
		VerifiedBy:   "admin:" + middleware.GetUserID(c).String(),
		Notes:        req.Notes,
		Actor:        actor,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: sub})
}

// EnqueueVerification hands the submission to the rules verifier in the worker.
func (h *SubmissionHandler) EnqueueVerification(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid submission id")
	}

	if _, err := h.submissionService.Get(c.UserContext(), id, nil); err != nil {
		return respondError(c, h.log, err)
	}
	if err := h.enqueuer.EnqueueVerification(c.UserContext(), id); err != nil {
		h.log.Error("enqueue verification failed", zap.String("submission_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "job queue unavailable"})
	}
	return c.Status(fiber.StatusAccepted).JSON(dto.SuccessResponse{OK: true, Data: dto.JobAcceptedResponse{
		Queue:    jobs.QueueVerification,
		EntityID: id.String(),
	}})
}
