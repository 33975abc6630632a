package middleware

import (
	"errors"

	"skill-exchange/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

// AppError carries the status and message a handler wants rendered. Cause is
// logged for 5xx responses and never sent to the client.
type AppError struct {
	StatusCode int
	Message    string
	Data       interface{}
	Cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewAppError(statusCode int, message string, data interface{}, cause error) *AppError {
	return &AppError{StatusCode: statusCode, Message: message, Data: data, Cause: cause}
}

func BadRequest(message string, cause error) *AppError {
	return NewAppError(fiber.StatusBadRequest, message, nil, cause)
}

func Unauthorized(message string, cause error) *AppError {
	return NewAppError(fiber.StatusUnauthorized, message, nil, cause)
}

type ErrorMiddleware struct {
	log zerolog.Logger
}

func NewErrorMiddleware(log zerolog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{log: log.With().Str("component", "http").Logger()}
}

func (m *ErrorMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				m.log.Error().
					Interface("panic", r).
					Str("rid", requestID(c)).
					Str("path", c.Path()).
					Msg("panic recovered")
				err = response.Error(c, fiber.StatusInternalServerError, "", nil)
			}
		}()

		err = c.Next()
		if err == nil {
			return nil
		}

		status, msg, data := normalizeError(err)
		if status >= 500 {
			m.log.Error().
				Err(err).
				Str("rid", requestID(c)).
				Int("status", status).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Msg("request failed")
		}
		return response.Error(c, status, msg, data)
	}
}

// normalizeError resolves err to what the client sees. 5xx details are
// hidden; 503 and 504 keep their status so clients can tell a slow store
// from a broken one.
func normalizeError(err error) (int, string, interface{}) {
	status := fiber.StatusInternalServerError
	msg := ""
	var data interface{}

	var appErr *AppError
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &appErr):
		if appErr.StatusCode > 0 {
			status, msg, data = appErr.StatusCode, appErr.Message, appErr.Data
		}
	case errors.As(err, &fiberErr):
		if fiberErr.Code > 0 {
			status, msg = fiberErr.Code, fiberErr.Message
		}
	}

	if status >= 500 {
		switch status {
		case fiber.StatusServiceUnavailable, fiber.StatusGatewayTimeout:
		default:
			status = fiber.StatusInternalServerError
		}
		return status, response.DefaultMessage(status), nil
	}
	if msg == "" {
		msg = response.DefaultMessage(status)
	}
	return status, msg, data
}

func requestID(c fiber.Ctx) string {
	rid, _ := c.Locals(CtxRequestIDKey).(string)
	return rid
}
