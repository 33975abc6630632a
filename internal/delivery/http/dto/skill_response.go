package dto

import (
	"time"

	"skill-exchange/internal/domain/skill"

	"github.com/google/uuid"
)

type SkillResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewSkillResponse(s skill.Skill) SkillResponse {
	return SkillResponse{ID: s.ID, Name: s.Name, Category: s.Category, CreatedAt: s.CreatedAt}
}

func NewSkillResponses(items []skill.Skill) []SkillResponse {
	out := make([]SkillResponse, 0, len(items))
	for _, it := range items {
		out = append(out, NewSkillResponse(it))
	}
	return out
}

type CreateSkillRequest struct {
	Name string `json:"name"`
}

type AddUserSkillRequest struct {
	Name             string `json:"name"`
	Direction        string `json:"direction"`
	ProficiencyLevel string `json:"proficiency_level"`
}

type UserSkillResponse struct {
	Skill            SkillResponse `json:"skill"`
	Direction        string        `json:"direction"`
	ProficiencyLevel string        `json:"proficiency_level,omitempty"`
}
