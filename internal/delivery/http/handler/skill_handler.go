package handler

import (
	"strings"

	"skill-exchange/internal/delivery/http/dto"
	"skill-exchange/internal/delivery/http/middleware"
	"skill-exchange/internal/domain/skill"
	"skill-exchange/internal/pkg/response"
	"skill-exchange/internal/usecase"

	"github.com/gofiber/fiber/v3"
)

// SkillHandler serves the shared catalogue. Any authenticated user may add
// to it.
type SkillHandler struct {
	skills usecase.SkillUsecase
}

func NewSkillHandler(skills usecase.SkillUsecase) *SkillHandler {
	return &SkillHandler{skills: skills}
}

func (h *SkillHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	grp := r.Group("/skills")
	grp.Get("/", h.List)
	grp.Post("/", h.Ensure)
}

// List returns the catalogue ordered by name. ?category= keeps one category,
// compared case-insensitively.
func (h *SkillHandler) List(c fiber.Ctx) error {
	items, err := h.skills.ListSkills(c.Context())
	if err != nil {
		return mapUsecaseError(err)
	}

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		kept := make([]skill.Skill, 0, len(items))
		for _, it := range items {
			if strings.EqualFold(it.Category, category) {
				kept = append(kept, it)
			}
		}
		items = kept
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, dto.NewSkillResponses(items))
}

// Ensure returns the skill with the given name, creating it first if needed.
func (h *SkillHandler) Ensure(c fiber.Ctx) error {
	var req dto.CreateSkillRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.BadRequest("Bad request", err)
	}

	sk, err := h.skills.EnsureSkill(c.Context(), req.Name)
	if err != nil {
		return mapUsecaseError(err)
	}
	return response.Success(c, fiber.StatusOK, "Skill ready", dto.NewSkillResponse(sk))
}
