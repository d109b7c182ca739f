package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/models"
	"go.uber.org/zap"
)

// SettlementResult is the rail's answer to a payout submission. Status is
// COMPLETED, FAILED or PROCESSING when the rail settles asynchronously.
type SettlementResult struct {
	Status         string  `json:"status"`
	TransactionRef *string `json:"transaction_ref,omitempty"`
	FailureReason  *string `json:"failure_reason,omitempty"`
}

// SettlementProvider moves money to a participant. A nil result with a nil
// error means nothing was sent and an operator resolves the payout.
type SettlementProvider interface {
	Submit(ctx context.Context, p *models.Payout) (*SettlementResult, error)
}

// SettlementClient talks to the payment rail's HTTP API.
type SettlementClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewSettlementClient(baseURL string, timeout time.Duration, log *zap.Logger) *SettlementClient {
	return &SettlementClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type settlementRequest struct {
	PayoutID    string `json:"payout_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	Destination string `json:"destination"`
	Network     string `json:"network,omitempty"`
}

func (c *SettlementClient) Submit(ctx context.Context, p *models.Payout) (*SettlementResult, error) {
	if c.baseURL == "" {
		return nil, nil
	}

	body, err := json.Marshal(settlementRequest{
		PayoutID:    p.ID.String(),
		Amount:      p.Amount.String(),
		Currency:    string(p.Amount.Currency),
		Method:      p.Method,
		Destination: p.Destination(),
		Network:     models.DerefString(p.Network),
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/payouts", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", p.ID.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRetryable, err, "settlement rail unavailable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, apperr.New(apperr.KindRetryable, "settlement rail returned %d: %s", resp.StatusCode, string(b))
	case resp.StatusCode >= 400:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		reason := fmt.Sprintf("rejected by rail (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
		c.log.Warn("settlement rejected", zap.String("payout_id", p.ID.String()), zap.Int("status", resp.StatusCode))
		return &SettlementResult{Status: models.PayoutStatusFailed, FailureReason: &reason}, nil
	}

	var result SettlementResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.Wrap(apperr.KindRetryable, err, "decode settlement response")
	}
	switch result.Status {
	case models.PayoutStatusCompleted, models.PayoutStatusFailed, models.PayoutStatusProcessing:
	default:
		return nil, apperr.New(apperr.KindRetryable, "settlement rail returned unknown status %q", result.Status)
	}
	return &result, nil
}
