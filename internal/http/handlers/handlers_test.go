package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/apperr"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/earnings"
	"github.com/repostpay/backend/internal/matching"
	"github.com/repostpay/backend/internal/middleware"
	"github.com/repostpay/backend/internal/money"
	"github.com/repostpay/backend/internal/rbac"
	"github.com/repostpay/backend/internal/repositories/memory"
	"github.com/repostpay/backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEnqueuer struct {
	mu            sync.Mutex
	verifications []uuid.UUID
	payouts       []uuid.UUID
	err           error
}

func (f *fakeEnqueuer) EnqueueVerification(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifications = append(f.verifications, id)
	return f.err
}

func (f *fakeEnqueuer) EnqueuePayout(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payouts = append(f.payouts, id)
	return f.err
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

type testServer struct {
	app      *fiber.App
	enqueuer *fakeEnqueuer
	admin    uuid.UUID
}

// impersonate stands in for the JWT middleware: the caller is read from
// test headers.
func impersonate(c *fiber.Ctx) error {
	if id, err := uuid.Parse(c.Get("X-Test-User")); err == nil {
		c.Locals(middleware.CtxUserID, id)
	}
	c.Locals(middleware.CtxRole, c.Get("X-Test-Role"))
	return c.Next()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	cfg := &config.Config{
		Currency:                money.USD,
		MinPayout:               money.MustParse("5", money.USD),
		PayoutProcessingTimeout: time.Hour,
	}
	store := memory.NewStore()
	ledger := services.NewLedgerService(store, nil, nil, cfg, log)
	subs := services.NewSubmissionService(store, ledger, earnings.NewCalculator(), nil, nil, log)
	campaigns := services.NewCampaignService(store, matching.NewMatcher(), nil, nil, cfg, log)
	enq := &fakeEnqueuer{}

	sponsorH := NewSponsorHandler(services.NewSponsorService(store, ledger, cfg, log), cfg, log)
	participantH := NewParticipantHandler(services.NewParticipantService(store, cfg, log), log)
	campaignH := NewCampaignHandler(campaigns, subs, cfg, log)
	submissionH := NewSubmissionHandler(subs, enq, log)
	payoutH := NewPayoutHandler(ledger, enq, cfg, log)

	app := fiber.New()
	app.Use(middleware.RequestIDMiddleware())
	app.Use(impersonate)
	app.Post("/sponsors", sponsorH.CreateSponsor)
	app.Post("/sponsors/:id/top-up", sponsorH.TopUp)
	app.Get("/sponsors/:id", sponsorH.GetSponsor)
	app.Post("/me/profile", participantH.Register)
	app.Put("/participants/:id/standing", participantH.UpdateStanding)
	app.Post("/campaigns", campaignH.CreateCampaign)
	app.Post("/campaigns/:id/status", campaignH.SetStatus)
	app.Get("/campaigns/:id/matches", campaignH.GetMatches)
	app.Post("/submissions", submissionH.Claim)
	app.Post("/submissions/:id/metrics", submissionH.SubmitMetrics)
	app.Post("/submissions/:id/verify", submissionH.Verify)
	app.Post("/submissions/:id/verification-job", submissionH.EnqueueVerification)
	app.Get("/me/balance", payoutH.GetBalance)
	app.Post("/payouts", payoutH.RequestPayout)
	app.Get("/payouts/:id", payoutH.GetPayout)
	app.Post("/payouts/:id/force-fail", payoutH.ForceFail)
	app.Get("/boom/:kind", func(c *fiber.Ctx) error {
		if c.Params("kind") == "foreign" {
			return respondError(c, log, errors.New("driver exploded"))
		}
		return respondError(c, log, apperr.New(apperr.Kind(c.Params("kind")), "it failed"))
	})

	return &testServer{app: app, enqueuer: enq, admin: uuid.New()}
}

func (s *testServer) do(t *testing.T, method, path string, as uuid.UUID, role string, body any) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", as.String())
	req.Header.Set("X-Test-Role", role)

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type idOnly struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func TestRespondErrorMapping(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		kind   string
		status int
	}{
		{string(apperr.KindNotFound), fiber.StatusNotFound},
		{string(apperr.KindConflict), fiber.StatusConflict},
		{string(apperr.KindInvalidState), fiber.StatusConflict},
		{string(apperr.KindCampaignFull), fiber.StatusConflict},
		{string(apperr.KindBudgetExceeded), fiber.StatusConflict},
		{string(apperr.KindForbidden), fiber.StatusForbidden},
		{string(apperr.KindValidation), fiber.StatusBadRequest},
		{string(apperr.KindInsufficientBalance), fiber.StatusBadRequest},
		{string(apperr.KindSuspiciousViews), fiber.StatusBadRequest},
		{string(apperr.KindRetryable), fiber.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			status, env := s.do(t, "GET", "/boom/"+tt.kind, uuid.New(), rbac.RoleAdmin, nil)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, env.Code)
			assert.Equal(t, "it failed", env.Error)
		})
	}

	t.Run("foreign errors are hidden", func(t *testing.T) {
		status, env := s.do(t, "GET", "/boom/foreign", uuid.New(), rbac.RoleAdmin, nil)
		assert.Equal(t, fiber.StatusInternalServerError, status)
		assert.Equal(t, "internal error", env.Error)
		assert.NotContains(t, env.Error, "driver")
	})
}

func TestRepostFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, "POST", "/sponsors", s.admin, rbac.RoleAdmin, map[string]any{"kind": "brand", "name": "Acme"})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	sponsorID := decodeData[idOnly](t, env).ID

	status, env = s.do(t, "POST", "/sponsors/"+sponsorID.String()+"/top-up", s.admin, rbac.RoleAdmin, map[string]any{"amount": "1000"})
	require.Equal(t, fiber.StatusOK, status, env.Error)

	status, env = s.do(t, "POST", "/campaigns", sponsorID, rbac.RoleSponsor, map[string]any{
		"name":         "Launch",
		"creative_url": "https://cdn.example.com/c.png",
		"economics": map[string]any{
			"cpm_sponsor":     "15",
			"cpm_participant": "10",
			"flat_fee":        "0.5",
		},
		"total_budget":       "500",
		"max_participants":   10,
		"target_impressions": 10000,
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	campaignID := decodeData[idOnly](t, env).ID

	status, env = s.do(t, "POST", "/campaigns/"+campaignID.String()+"/status", sponsorID, rbac.RoleSponsor, map[string]any{"status": "ACTIVE"})
	require.Equal(t, fiber.StatusOK, status, env.Error)

	participantID := uuid.New()
	status, env = s.do(t, "POST", "/me/profile", participantID, rbac.RoleParticipant, map[string]any{"contact_count": 1000})
	require.Equal(t, fiber.StatusCreated, status, env.Error)

	status, env = s.do(t, "POST", "/submissions", participantID, rbac.RoleParticipant, map[string]any{"campaign_id": campaignID.String()})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	subID := decodeData[idOnly](t, env).ID

	status, env = s.do(t, "POST", "/submissions", participantID, rbac.RoleParticipant, map[string]any{"campaign_id": campaignID.String()})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, string(apperr.KindConflict), env.Code)

	status, env = s.do(t, "POST", "/submissions/"+subID.String()+"/metrics", participantID, rbac.RoleParticipant, map[string]any{
		"views":          951,
		"screenshot_url": "https://cdn.example.com/s.png",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, string(apperr.KindSuspiciousViews), env.Code)

	status, env = s.do(t, "POST", "/submissions/"+subID.String()+"/metrics", participantID, rbac.RoleParticipant, map[string]any{
		"views":          600,
		"screenshot_url": "https://cdn.example.com/s.png",
	})
	require.Equal(t, fiber.StatusOK, status, env.Error)

	status, env = s.do(t, "POST", "/submissions/"+subID.String()+"/verify", s.admin, rbac.RoleAdmin, map[string]any{"outcome": "verified"})
	require.Equal(t, fiber.StatusOK, status, env.Error)
	assert.Equal(t, "VERIFIED", decodeData[idOnly](t, env).Status)

	// 600 views at 10 per mille plus the 0.5 flat fee.
	status, env = s.do(t, "GET", "/me/balance", participantID, rbac.RoleParticipant, nil)
	require.Equal(t, fiber.StatusOK, status, env.Error)
	balance := decodeData[struct {
		Available money.Money `json:"available"`
		MinPayout money.Money `json:"min_payout"`
	}](t, env)
	assert.Equal(t, "6.5", balance.Available.String())
	assert.Equal(t, "5", balance.MinPayout.String())

	status, env = s.do(t, "POST", "/payouts", participantID, rbac.RoleParticipant, map[string]any{
		"amount":       "6.5",
		"method":       "mpesa",
		"phone_number": "+254700000000",
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	payoutID := decodeData[idOnly](t, env).ID
	assert.Equal(t, []uuid.UUID{payoutID}, s.enqueuer.payouts)

	status, _ = s.do(t, "GET", "/payouts/"+payoutID.String(), uuid.New(), rbac.RoleParticipant, nil)
	assert.Equal(t, fiber.StatusNotFound, status, "other participants cannot see the payout")

	status, env = s.do(t, "POST", "/payouts/"+payoutID.String()+"/force-fail", s.admin, rbac.RoleAdmin, nil)
	require.Equal(t, fiber.StatusOK, status, env.Error)
	assert.Equal(t, "FAILED", decodeData[idOnly](t, env).Status)

	status, env = s.do(t, "GET", "/me/balance", participantID, rbac.RoleParticipant, nil)
	require.Equal(t, fiber.StatusOK, status, env.Error)
	assert.Equal(t, "6.5", decodeData[struct {
		Available money.Money `json:"available"`
	}](t, env).Available.String())
}

func TestSponsorScoping(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, "POST", "/sponsors", s.admin, rbac.RoleAdmin, map[string]any{"kind": "ORGANIZATION", "name": "Food Bank"})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	sponsorID := decodeData[idOnly](t, env).ID

	status, _ = s.do(t, "GET", "/sponsors/"+sponsorID.String(), sponsorID, rbac.RoleSponsor, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env = s.do(t, "GET", "/sponsors/"+sponsorID.String(), uuid.New(), rbac.RoleSponsor, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, string(apperr.KindForbidden), env.Code)

	status, env = s.do(t, "POST", "/campaigns", s.admin, rbac.RoleAdmin, map[string]any{"name": "x"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "sponsor_id is required", env.Error)
}

func TestBadInput(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"bad submission id", "POST", "/submissions/nope/metrics", map[string]any{"views": 1}},
		{"bad campaign id", "POST", "/submissions", map[string]any{"campaign_id": "nope"}},
		{"bad amount", "POST", "/payouts", map[string]any{"amount": "12,5", "method": "BANK"}},
		{"amount below ledger scale", "POST", "/payouts", map[string]any{"amount": "12.0000001", "method": "BANK"}},
		{"bad limit", "GET", "/campaigns/" + uuid.NewString() + "/matches?limit=0", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := s.do(t, tt.method, tt.path, uuid.New(), rbac.RoleParticipant, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, string(apperr.KindValidation), env.Code)
		})
	}
}

func TestEnqueueVerification(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, "POST", "/submissions/"+uuid.NewString()+"/verification-job", s.admin, rbac.RoleAdmin, nil)
	assert.Equal(t, fiber.StatusNotFound, status, env.Error)
	assert.Empty(t, s.enqueuer.verifications)
}
