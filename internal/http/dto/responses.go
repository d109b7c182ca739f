package dto

import "github.com/repostpay/backend/internal/money"

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type BalanceResponse struct {
	Available       money.Money `json:"available"`
	TotalEarned     money.Money `json:"total_earned"`
	PendingEarnings money.Money `json:"pending_earnings"`
	MinPayout       money.Money `json:"min_payout"`
}

type JobAcceptedResponse struct {
	Queue    string `json:"queue"`
	EntityID string `json:"entity_id"`
}
