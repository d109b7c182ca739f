package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/auth"
	"github.com/repostpay/backend/internal/config"
	"github.com/repostpay/backend/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Use(AuthMiddleware(cfg, zap.NewNop()))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"role": GetRole(c), "user_id": GetUserID(c)})
	})
	app.Post("/payouts/:id/resolve", RequirePermission(rbac.PermResolvePayout), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func bearer(t *testing.T, cfg *config.Config, id uuid.UUID, role string) string {
	t.Helper()
	token, err := auth.GenerateJWT(cfg.JWTSecret, id, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	adminID := uuid.New()
	cfg := &config.Config{JWTSecret: "secret", AdminUserIDs: []uuid.UUID{adminID}}
	app := testApp(cfg)

	tests := []struct {
		name   string
		path   string
		method string
		header string
		status int
	}{
		{"no header", "/whoami", "GET", "", fiber.StatusUnauthorized},
		{"not bearer", "/whoami", "GET", "Token abc", fiber.StatusUnauthorized},
		{"participant", "/whoami", "GET", bearer(t, cfg, uuid.New(), rbac.RoleParticipant), fiber.StatusOK},
		{"self-declared admin", "/whoami", "GET", bearer(t, cfg, uuid.New(), rbac.RoleAdmin), fiber.StatusForbidden},
		{"unknown role", "/whoami", "GET", bearer(t, cfg, uuid.New(), "owner"), fiber.StatusForbidden},
		{"sponsor cannot resolve payouts", "/payouts/x/resolve", "POST", bearer(t, cfg, uuid.New(), rbac.RoleSponsor), fiber.StatusForbidden},
		{"configured admin resolves payouts", "/payouts/x/resolve", "POST", bearer(t, cfg, adminID, rbac.RoleParticipant), fiber.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		})
	}
}
