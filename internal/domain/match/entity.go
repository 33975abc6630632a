package match

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusAccepted, StatusRejected:
		return Status(s), true
	default:
		return "", false
	}
}

func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// CanTransition reports whether a match in status s may move to next.
// Only pending matches move, and only to a terminal status.
func (s Status) CanTransition(next Status) bool {
	return s == StatusPending && next.Terminal()
}

type Match struct {
	ID              uuid.UUID `json:"id"`
	TeacherID       uuid.UUID `json:"teacher_id"`
	StudentID       uuid.UUID `json:"student_id"`
	TeachingSkillID uuid.UUID `json:"teaching_skill_id"`
	LearningSkillID uuid.UUID `json:"learning_skill_id"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// Key identifies a pairing regardless of status.
type Key struct {
	TeacherID       uuid.UUID
	StudentID       uuid.UUID
	TeachingSkillID uuid.UUID
	LearningSkillID uuid.UUID
}

func (m Match) Key() Key {
	return Key{
		TeacherID:       m.TeacherID,
		StudentID:       m.StudentID,
		TeachingSkillID: m.TeachingSkillID,
		LearningSkillID: m.LearningSkillID,
	}
}

func (m Match) IsParticipant(userID uuid.UUID) bool {
	return userID != uuid.Nil && (m.TeacherID == userID || m.StudentID == userID)
}
