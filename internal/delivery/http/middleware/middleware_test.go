package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"skill-exchange/internal/pkg/jwt"
	"skill-exchange/internal/pkg/response"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthApp(t *testing.T, opts AuthOptions) (*fiber.App, jwt.Service) {
	t.Helper()
	svc := jwt.NewHMACService("mw-secret", "")
	app := fiber.New()
	app.Use(NewErrorMiddleware(zerolog.Nop()).Middleware())
	app.Get("/me", NewAuthMiddleware(svc, opts).Middleware(), func(c fiber.Ctx) error {
		id, ok := CurrentUserID(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(id.String())
	})
	return app, svc
}

func TestAuthMiddleware_BearerHeader(t *testing.T) {
	app, svc := newAuthApp(t, AuthOptions{})
	id := uuid.New()
	tok, err := svc.GenerateAccessToken(id, "", "", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+tok)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_QueryTokenOnlyForUpgrades(t *testing.T) {
	app, svc := newAuthApp(t, AuthOptions{AllowQueryToken: true})
	tok, err := svc.GenerateAccessToken(uuid.New(), "", "", time.Minute)
	require.NoError(t, err)

	plain := httptest.NewRequest(http.MethodGet, "/me?access_token="+tok, nil)
	resp, err := app.Test(plain)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	upgrade := httptest.NewRequest(http.MethodGet, "/me?access_token="+tok, nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	resp, err = app.Test(upgrade)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	var provisioned []uuid.UUID
	app, svc := newAuthApp(t, AuthOptions{
		OnAuthenticated: func(_ context.Context, c jwt.Claims) error {
			provisioned = append(provisioned, c.UserID)
			if c.Email == "broken@example.com" {
				return errors.New("store down")
			}
			return nil
		},
	})

	past := time.Now().Add(-time.Hour)
	expired, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwt.Claims{
		UserID:    uuid.New(),
		TokenType: jwt.TokenTypeAccess,
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(past),
			ExpiresAt: jwtlib.NewNumericDate(past.Add(time.Minute)),
		},
	}).SignedString([]byte("mw-secret"))
	require.NoError(t, err)
	broken, err := svc.GenerateAccessToken(uuid.New(), "broken@example.com", "", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{"missing", "", http.StatusUnauthorized, "Unauthorized"},
		{"not bearer", "Basic abc", http.StatusUnauthorized, "Unauthorized"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "Token expired"},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized, "Invalid token"},
		{"provision fails", "Bearer " + broken, http.StatusInternalServerError, response.MessageInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			var body response.SemanticResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.message, body.Message)
		})
	}
	assert.Len(t, provisioned, 1)
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"app error", BadRequest("name is required", nil), fiber.StatusBadRequest, "name is required"},
		{"app error default message", NewAppError(fiber.StatusConflict, "", nil, nil), fiber.StatusConflict, response.MessageConflict},
		{"fiber error", fiber.ErrNotFound, fiber.StatusNotFound, "Not Found"},
		{"hidden 5xx", NewAppError(fiber.StatusBadGateway, "upstream said no", nil, nil), fiber.StatusInternalServerError, response.MessageInternalServerError},
		{"timeout kept", NewAppError(fiber.StatusGatewayTimeout, "slow", nil, nil), fiber.StatusGatewayTimeout, response.MessageGatewayTimeout},
		{"plain error", errors.New("boom"), fiber.StatusInternalServerError, response.MessageInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg, _ := normalizeError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

func TestErrorMiddleware_RecoversPanics(t *testing.T) {
	app := fiber.New()
	app.Use(NewAccessLogMiddleware(zerolog.Nop()).Middleware())
	app.Use(NewErrorMiddleware(zerolog.Nop()).Middleware())
	app.Get("/panic", func(c fiber.Ctx) error { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "rid-1", resp.Header.Get("X-Request-ID"))
}
