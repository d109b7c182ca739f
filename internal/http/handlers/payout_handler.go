package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/http/dto"
	"github.com/repostpay/backend/internal/middleware"
	"github.com/repostpay/backend/internal/services"
	"go.uber.org/zap"
)

type PayoutHandler struct {
	ledger   *services.LedgerService
	enqueuer JobEnqueuer
	cfg      *config.Config
	log      *zap.Logger
}

func NewPayoutHandler(ledger *services.LedgerService, enqueuer JobEnqueuer, cfg *config.Config, log *zap.Logger) *PayoutHandler {
	return &PayoutHandler{ledger: ledger, enqueuer: enqueuer, cfg: cfg, log: log}
}

func (h *PayoutHandler) GetBalance(c *fiber.Ctx) error {
	earnings, err := h.ledger.Earnings(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.BalanceResponse{
		Available:       earnings.Available,
		TotalEarned:     earnings.TotalEarned,
		PendingEarnings: earnings.PendingEarnings,
		MinPayout:       h.cfg.MinPayout,
	}})
}

// RequestPayout reserves earnings and queues the payout for the rail. A
// queue outage does not undo the reservation; the sweeper releases it.
func (h *PayoutHandler) RequestPayout(c *fiber.Ctx) error {
	var req dto.PayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}
	amount, err := parseAmount(req.Amount, h.cfg.Currency)
	if err != nil {
		return badRequest(c, "invalid amount")
	}

	payout, err := h.ledger.RequestPayout(c.UserContext(), services.PayoutRequest{
		ParticipantID: middleware.GetUserID(c),
		Amount:        amount,
		Method:        strings.ToUpper(req.Method),
		WalletAddress: req.WalletAddress,
		PhoneNumber:   req.PhoneNumber,
		BankAccount:   req.BankAccount,
		Network:       req.Network,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}

	if err := h.enqueuer.EnqueuePayout(c.UserContext(), payout.ID); err != nil {
		h.log.Error("enqueue payout failed", zap.String("payout_id", payout.ID.String()), zap.Error(err))
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: payout})
}

func (h *PayoutHandler) ListMine(c *fiber.Ctx) error {
	payouts, err := h.ledger.ListPayouts(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: payouts})
}

func (h *PayoutHandler) MyStats(c *fiber.Ctx) error {
	stats, err := h.ledger.PayoutStats(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: stats})
}

func (h *PayoutHandler) GetPayout(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid payout id")
	}

	payout, err := h.ledger.GetPayout(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	if !middleware.IsAdmin(c) && payout.ParticipantID != middleware.GetUserID(c) {
		return respondError(c, h.log, apperr.New(apperr.KindNotFound, "payout %s not found", id))
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: payout})
}

func (h *PayoutHandler) ListPending(c *fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return badRequest(c, "invalid limit")
		}
		limit = min(n, 500)
	}

	payouts, err := h.ledger.ListPendingPayouts(c.UserContext(), limit)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: payouts})
}

func (h *PayoutHandler) Resolve(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid payout id")
	}

	var req dto.ResolvePayoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request")
	}

	payout, err := h.ledger.ResolvePayout(c.UserContext(), services.PayoutResolution{
		PayoutID:       id,
		Outcome:        strings.ToUpper(req.Outcome),
		TransactionRef: req.TransactionRef,
		FailureReason:  req.FailureReason,
		Actor:          actorFor(c),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: payout})
}

func (h *PayoutHandler) ForceFail(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid payout id")
	}

	var req dto.ForceFailRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request")
		}
	}

	payout, err := h.ledger.ForceFailPayout(c.UserContext(), id, req.Reason, actorFor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: payout})
}
