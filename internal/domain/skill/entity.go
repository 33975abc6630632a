package skill

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionTeaching Direction = "teaching"
	DirectionLearning Direction = "learning"
)

// ParseDirection accepts "teaching" or "learning" in any case.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionTeaching:
		return DirectionTeaching, true
	case DirectionLearning:
		return DirectionLearning, true
	default:
		return "", false
	}
}

func (d Direction) Valid() bool {
	return d == DirectionTeaching || d == DirectionLearning
}

// IsTeaching maps the direction onto the is_teaching column.
func (d Direction) IsTeaching() bool {
	return d == DirectionTeaching
}

func DirectionFromTeaching(isTeaching bool) Direction {
	if isTeaching {
		return DirectionTeaching
	}
	return DirectionLearning
}

type Skill struct {
	ID        uuid.UUID
	Name      string
	Category  string
	CreatedAt time.Time
}

// UserSkill is a (user, skill, direction) tag.
type UserSkill struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	SkillID          uuid.UUID
	Direction        Direction
	ProficiencyLevel string
	CreatedAt        time.Time
}
