package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skill-exchange/internal/changefeed"
	"skill-exchange/internal/domain/match"
	"skill-exchange/internal/domain/matching"
	"skill-exchange/internal/domain/user"
	"skill-exchange/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type MatchWriter interface {
	// CreateMatch persists p as a pending match. Writing the same proposal
	// twice returns the existing row instead of a duplicate.
	CreateMatch(ctx context.Context, p matching.Proposal) (match.Match, error)
}

type MatchRecords struct {
	matches   repository.MatchRepository
	publisher changefeed.Publisher
	log       zerolog.Logger
	timeout   time.Duration
	now       func() time.Time
}

func NewMatchWriter(matches repository.MatchRepository, publisher changefeed.Publisher, log zerolog.Logger, timeout time.Duration) *MatchRecords {
	return &MatchRecords{
		matches:   matches,
		publisher: publisher,
		log:       log.With().Str("component", "match_writer").Logger(),
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (w *MatchRecords) CreateMatch(ctx context.Context, p matching.Proposal) (match.Match, error) {
	if p.TeacherID == uuid.Nil || p.StudentID == uuid.Nil || p.TeachingSkillID == uuid.Nil || p.LearningSkillID == uuid.Nil {
		return match.Match{}, validationError("proposal has empty ids")
	}
	if p.TeacherID == p.StudentID {
		return match.Match{}, validationError("teacher and student are the same user")
	}

	storeCtx, cancel := withStoreTimeout(ctx, w.timeout)
	defer cancel()

	existing, err := w.matches.FindByKey(storeCtx, p.Key())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrMatchNotFound) {
		return match.Match{}, storeError("find match", err)
	}

	m, created, err := w.matches.Insert(storeCtx, match.Match{
		ID:              uuid.New(),
		TeacherID:       p.TeacherID,
		StudentID:       p.StudentID,
		TeachingSkillID: p.TeachingSkillID,
		LearningSkillID: p.LearningSkillID,
		Status:          match.StatusPending,
		CreatedAt:       w.now(),
	})
	if err != nil {
		switch {
		case isForeignKeyViolation(err), errors.Is(err, user.ErrNotFound), errors.Is(err, repository.ErrSkillNotFound):
			return match.Match{}, fmt.Errorf("%w: match references unknown user or skill: %w", ErrNotFound, err)
		case isCheckViolation(err):
			return match.Match{}, validationError("match rejected by store: %v", err)
		default:
			return match.Match{}, storeError("insert match", err)
		}
	}

	if created {
		w.log.Info().
			Str("match_id", m.ID.String()).
			Str("teacher_id", m.TeacherID.String()).
			Str("student_id", m.StudentID.String()).
			Msg("match created")
		publish(ctx, w.publisher, w.log, changefeed.EventInsert, m)
	}
	return m, nil
}

// publish emits a change event. The write has already committed, so a
// failed publish is logged and not returned.
func publish(ctx context.Context, p changefeed.Publisher, log zerolog.Logger, t changefeed.EventType, m match.Match) {
	if p == nil {
		return
	}
	evt := changefeed.Event{Type: t, Table: changefeed.TableMatches, Record: m}
	if err := p.Publish(context.WithoutCancel(ctx), evt); err != nil {
		log.Warn().Err(err).Str("match_id", m.ID.String()).Str("event", string(t)).Msg("change event publish failed")
	}
}
