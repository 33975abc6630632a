package middleware

import (
	"context"
	"errors"
	"strings"

	"skill-exchange/internal/pkg/jwt"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const (
	CtxUserIDKey = "user_id"
	CtxEmailKey  = "email"

	accessTokenQuery = "access_token"
)

type AuthOptions struct {
	// AllowQueryToken accepts ?access_token= on websocket upgrade requests
	// that carry no Authorization header. Browsers cannot set headers there.
	AllowQueryToken bool
	// OnAuthenticated runs after a token validates, before the handler.
	OnAuthenticated func(ctx context.Context, claims jwt.Claims) error
}

type AuthMiddleware struct {
	jwt  jwt.Service
	opts AuthOptions
}

func NewAuthMiddleware(jwtSvc jwt.Service, opts AuthOptions) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwtSvc, opts: opts}
}

func (m *AuthMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		token, ok := bearerTokenFromHeader(c.Get("Authorization"))
		if !ok && m.opts.AllowQueryToken && isWebsocketUpgrade(c) {
			token = strings.TrimSpace(c.Query(accessTokenQuery))
			ok = token != ""
		}
		if !ok {
			return Unauthorized("Unauthorized", nil)
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return Unauthorized("Token expired", err)
			}
			return Unauthorized("Invalid token", err)
		}

		if m.opts.OnAuthenticated != nil {
			if err := m.opts.OnAuthenticated(c.Context(), claims); err != nil {
				return NewAppError(fiber.StatusInternalServerError, "", nil, err)
			}
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxEmailKey, claims.Email)

		return c.Next()
	}
}

// CurrentUserID returns the authenticated user set by AuthMiddleware.
func CurrentUserID(c fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(CtxUserIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

func isWebsocketUpgrade(c fiber.Ctx) bool {
	return strings.EqualFold(strings.TrimSpace(c.Get("Upgrade")), "websocket")
}

func bearerTokenFromHeader(authHeader string) (string, bool) {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}
