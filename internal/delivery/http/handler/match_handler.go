package handler

import (
	"skill-exchange/internal/delivery/http/dto"
	"skill-exchange/internal/delivery/http/middleware"
	"skill-exchange/internal/domain/match"
	"skill-exchange/internal/pkg/response"
	"skill-exchange/internal/usecase"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type MatchHandler struct {
	matching  usecase.MatchingUsecase
	lifecycle usecase.MatchLifecycle
}

func NewMatchHandler(matching usecase.MatchingUsecase, lifecycle usecase.MatchLifecycle) *MatchHandler {
	return &MatchHandler{matching: matching, lifecycle: lifecycle}
}

func (h *MatchHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	me := r.Group("/me/matches")
	me.Get("/", h.List)
	me.Post("/discover", h.Discover)

	r.Patch("/matches/:id/status", h.UpdateStatus)
}

func (h *MatchHandler) List(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	items, err := h.matching.ListMatches(c.Context(), userID)
	if err != nil {
		return mapUsecaseError(err)
	}
	return h.render(c, fiber.StatusOK, response.MessageOK, userID, items)
}

// Discover runs candidate discovery for the caller and returns the matches
// it produced, including ones that already existed.
func (h *MatchHandler) Discover(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	items, err := h.matching.Discover(c.Context(), userID)
	if err != nil {
		return mapUsecaseError(err)
	}
	return h.render(c, fiber.StatusOK, "Discovery finished", userID, items)
}

func (h *MatchHandler) UpdateStatus(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	matchID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return middleware.BadRequest("Bad request", err)
	}

	var req dto.UpdateMatchStatusRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.BadRequest("Bad request", err)
	}
	status, ok := match.ParseStatus(req.Status)
	if !ok || !status.Terminal() {
		return middleware.BadRequest("status must be accepted or rejected", nil)
	}

	updated, err := h.lifecycle.SetStatus(c.Context(), userID, matchID, status)
	if err != nil {
		return mapUsecaseError(err)
	}

	details, err := h.matching.Describe(c.Context(), []match.Match{updated})
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, "Match updated", dto.NewMatchResponses(userID, details)[0])
}

func (h *MatchHandler) render(c fiber.Ctx, status int, msg string, viewer uuid.UUID, items []match.Match) error {
	details, err := h.matching.Describe(c.Context(), items)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, status, msg, dto.NewMatchResponses(viewer, details))
}
