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

type UserSkillHandler struct {
	uc usecase.SkillUsecase
}

func NewUserSkillHandler(uc usecase.SkillUsecase) *UserSkillHandler {
	return &UserSkillHandler{uc: uc}
}

func (h *UserSkillHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}

	grp := r.Group("/me/skills")
	grp.Get("/", h.List)
	grp.Post("/", h.Add)
}

// List returns the caller's tags. ?direction= narrows to one side.
func (h *UserSkillHandler) List(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	dirs := []skill.Direction{skill.DirectionTeaching, skill.DirectionLearning}
	if raw := strings.TrimSpace(c.Query("direction")); raw != "" {
		dir, ok := skill.ParseDirection(raw)
		if !ok {
			return middleware.BadRequest("direction must be teaching or learning", nil)
		}
		dirs = []skill.Direction{dir}
	}

	res := make([]dto.UserSkillResponse, 0)
	for _, dir := range dirs {
		items, err := h.uc.ListTaggedSkills(c.Context(), userID, dir)
		if err != nil {
			return mapUsecaseError(err)
		}
		for _, it := range items {
			res = append(res, dto.UserSkillResponse{Skill: dto.NewSkillResponse(it), Direction: string(dir)})
		}
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, res)
}

// Add creates the skill by name if needed and tags it for the caller.
func (h *UserSkillHandler) Add(c fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req dto.AddUserSkillRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.BadRequest("Bad request", err)
	}
	dir, ok := skill.ParseDirection(req.Direction)
	if !ok {
		return middleware.BadRequest("direction must be teaching or learning", nil)
	}

	proficiency := strings.TrimSpace(req.ProficiencyLevel)
	if proficiency == "" {
		proficiency = usecase.DefaultProficiencyLevel
	}

	sk, err := h.uc.AddUserSkill(c.Context(), userID, req.Name, dir, proficiency)
	if err != nil {
		return mapUsecaseError(err)
	}

	return response.Success(c, fiber.StatusCreated, "Skill added", dto.UserSkillResponse{
		Skill:            dto.NewSkillResponse(sk),
		Direction:        string(dir),
		ProficiencyLevel: proficiency,
	})
}
