package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/http/dto"
	"github.com/repostpay/backend/internal/middleware"
	"github.com/repostpay/backend/internal/money"
	"github.com/repostpay/backend/internal/rbac"
	"github.com/repostpay/backend/internal/services"
	"go.uber.org/zap"
)

var kindStatus = map[apperr.Kind]int{
	apperr.KindNotFound:            fiber.StatusNotFound,
	apperr.KindConflict:            fiber.StatusConflict,
	apperr.KindInvalidState:        fiber.StatusConflict,
	apperr.KindCampaignFull:        fiber.StatusConflict,
	apperr.KindBudgetExceeded:      fiber.StatusConflict,
	apperr.KindForbidden:           fiber.StatusForbidden,
	apperr.KindValidation:          fiber.StatusBadRequest,
	apperr.KindInsufficientBalance: fiber.StatusBadRequest,
	apperr.KindSuspiciousViews:     fiber.StatusBadRequest,
	apperr.KindRetryable:           fiber.StatusServiceUnavailable,
}

// respondError maps a service error onto a status and the error kind as code.
// Errors outside the taxonomy are logged and hidden behind a 500.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	kind := apperr.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		log.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error:     "internal error",
			Code:      string(apperr.KindInternal),
			RequestID: middleware.GetRequestID(c),
		})
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error(), Code: string(kind)})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg, Code: string(apperr.KindValidation)})
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// parseAmount reads a decimal string in the configured currency. An empty
// string is zero.
func parseAmount(s string, cur money.Currency) (money.Money, error) {
	if s == "" {
		return money.Zero(cur), nil
	}
	m, err := money.Parse(s, cur)
	if err != nil {
		return money.Money{}, err
	}
	if !m.FitsScale() {
		return money.Money{}, fmt.Errorf("amount %q has more than %d decimal places", s, money.Scale)
	}
	return m, nil
}

// sponsorScope returns nil for admins, who act on any sponsor, and the
// caller's id otherwise.
func sponsorScope(c *fiber.Ctx) *uuid.UUID {
	if middleware.IsAdmin(c) {
		return nil
	}
	id := middleware.GetUserID(c)
	return &id
}

func actorFor(c *fiber.Ctx) services.Actor {
	id := middleware.GetUserID(c)
	switch middleware.GetRole(c) {
	case rbac.RoleAdmin:
		return services.AdminActor(id)
	case rbac.RoleSponsor:
		return services.SponsorActor(id)
	default:
		return services.ParticipantActor(id)
	}
}
