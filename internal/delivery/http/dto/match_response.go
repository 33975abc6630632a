package dto

import (
	"time"

	"skill-exchange/internal/usecase"

	"github.com/google/uuid"
)

type ParticipantResponse struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email,omitempty"`
	FullName string    `json:"full_name,omitempty"`
}

type MatchSkillResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type MatchResponse struct {
	ID            uuid.UUID           `json:"id"`
	Status        string              `json:"status"`
	Role          string              `json:"role"`
	Teacher       ParticipantResponse `json:"teacher"`
	Student       ParticipantResponse `json:"student"`
	TeachingSkill MatchSkillResponse  `json:"teaching_skill"`
	LearningSkill MatchSkillResponse  `json:"learning_skill"`
	CreatedAt     time.Time           `json:"created_at"`
}

type UpdateMatchStatusRequest struct {
	Status string `json:"status"`
}

// NewMatchResponses renders details from viewer's point of view; Role is
// "teacher" or "student".
func NewMatchResponses(viewer uuid.UUID, items []usecase.MatchDetail) []MatchResponse {
	out := make([]MatchResponse, 0, len(items))
	for _, d := range items {
		role := "student"
		if d.Match.TeacherID == viewer {
			role = "teacher"
		}
		out = append(out, MatchResponse{
			ID:            d.Match.ID,
			Status:        string(d.Match.Status),
			Role:          role,
			Teacher:       ParticipantResponse{ID: d.Teacher.ID, Email: d.Teacher.Email, FullName: d.Teacher.FullName},
			Student:       ParticipantResponse{ID: d.Student.ID, Email: d.Student.Email, FullName: d.Student.FullName},
			TeachingSkill: MatchSkillResponse{ID: d.TeachingSkill.ID, Name: d.TeachingSkill.Name},
			LearningSkill: MatchSkillResponse{ID: d.LearningSkill.ID, Name: d.LearningSkill.Name},
			CreatedAt:     d.Match.CreatedAt,
		})
	}
	return out
}
