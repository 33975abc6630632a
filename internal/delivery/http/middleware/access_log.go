package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const CtxRequestIDKey = "request_id"

type AccessLogMiddleware struct {
	log zerolog.Logger
}

func NewAccessLogMiddleware(log zerolog.Logger) *AccessLogMiddleware {
	return &AccessLogMiddleware{log: log.With().Str("component", "http_access").Logger()}
}

func (m *AccessLogMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		rid := c.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("X-Request-ID", rid)
		c.Locals(CtxRequestIDKey, rid)

		err := c.Next()

		status := c.Response().StatusCode()
		evt := m.log.Info()
		switch {
		case status >= 500:
			evt = m.log.Error()
		case status >= 400:
			evt = m.log.Warn()
		}

		evt.
			Str("rid", rid).
			Str("ip", c.IP()).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Int("req_bytes", c.Request().Header.ContentLength()).
			Int("resp_bytes", len(c.Response().Body())).
			Str("ua", c.Get("User-Agent")).
			Msg("http access")

		return err
	}
}
