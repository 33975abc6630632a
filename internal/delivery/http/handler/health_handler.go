package handler

import (
	"context"
	"time"

	"skill-exchange/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

// HealthCheck probes one dependency. Optional checks report "degraded"
// without failing the endpoint.
type HealthCheck struct {
	Name     string
	Optional bool
	Check    func(ctx context.Context) error
}

type HealthHandler struct {
	checks []HealthCheck
	info   func() map[string]any
}

// NewHealthHandler builds the handler. info, when set, adds runtime figures
// such as pool and websocket counts to the payload.
func NewHealthHandler(info func() map[string]any, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, info: info}
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/health", h.Health)
}

func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	deps := make(map[string]string, len(h.checks))
	for _, chk := range h.checks {
		if chk.Check == nil {
			continue
		}
		if err := chk.Check(ctx); err != nil {
			if chk.Optional {
				deps[chk.Name] = "degraded"
				continue
			}
			deps[chk.Name] = "down"
			status = fiber.StatusServiceUnavailable
			continue
		}
		deps[chk.Name] = "ok"
	}

	data := map[string]any{"dependencies": deps}
	if h.info != nil {
		for k, v := range h.info() {
			data[k] = v
		}
	}

	if status != fiber.StatusOK {
		return response.Error(c, status, response.MessageServiceUnavailable, data)
	}
	return response.Success(c, status, response.MessageOK, data)
}
