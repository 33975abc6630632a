// Package changefeed delivers insert/update/delete notifications on the
// matches collection to subscribers scoped by a single-column filter.
package changefeed

import (
	"context"
	"errors"

	"skill-exchange/internal/domain/match"

	"github.com/google/uuid"
)

const TableMatches = "matches"

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// EventMask selects which event types a subscription receives.
type EventMask uint8

const (
	MaskInsert EventMask = 1 << iota
	MaskUpdate
	MaskDelete

	MaskAll = MaskInsert | MaskUpdate | MaskDelete
)

func (m EventMask) Has(t EventType) bool {
	switch t {
	case EventInsert:
		return m&MaskInsert != 0
	case EventUpdate:
		return m&MaskUpdate != 0
	case EventDelete:
		return m&MaskDelete != 0
	default:
		return false
	}
}

type Event struct {
	Type   EventType   `json:"type"`
	Table  string      `json:"table"`
	Record match.Match `json:"record"`
}

type Column string

const (
	ColumnTeacherID Column = "teacher_id"
	ColumnStudentID Column = "student_id"
)

// Filter is an equality clause on one participant column.
type Filter struct {
	Column Column
	Value  uuid.UUID
}

func TeacherFilter(userID uuid.UUID) Filter {
	return Filter{Column: ColumnTeacherID, Value: userID}
}

func StudentFilter(userID uuid.UUID) Filter {
	return Filter{Column: ColumnStudentID, Value: userID}
}

func (f Filter) Valid() bool {
	return (f.Column == ColumnTeacherID || f.Column == ColumnStudentID) && f.Value != uuid.Nil
}

func (f Filter) Matches(m match.Match) bool {
	switch f.Column {
	case ColumnTeacherID:
		return m.TeacherID == f.Value
	case ColumnStudentID:
		return m.StudentID == f.Value
	default:
		return false
	}
}

func (f Filter) String() string {
	return string(f.Column) + "=eq." + f.Value.String()
}

// FiltersFor returns every filter an event on m must be delivered to.
func FiltersFor(m match.Match) []Filter {
	return []Filter{TeacherFilter(m.TeacherID), StudentFilter(m.StudentID)}
}

var (
	ErrInvalidFilter = errors.New("changefeed: invalid filter")
	ErrClosed        = errors.New("changefeed: closed")
)

// Subscription delivers events until Unsubscribe is called. After
// Unsubscribe returns the events channel is closed and receives nothing more.
type Subscription interface {
	Events() <-chan Event
	Unsubscribe() error
}

type Feed interface {
	Subscribe(ctx context.Context, filter Filter, mask EventMask) (Subscription, error)
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}
