package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skill-exchange/internal/changefeed"
	"skill-exchange/internal/domain/match"
	"skill-exchange/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type MatchLifecycle interface {
	// SetStatus moves matchID to status on behalf of actorID, who must be a
	// participant. Only pending matches can be accepted or rejected.
	SetStatus(ctx context.Context, actorID, matchID uuid.UUID, status match.Status) (match.Match, error)
}

type Lifecycle struct {
	matches   repository.MatchRepository
	publisher changefeed.Publisher
	log       zerolog.Logger
	timeout   time.Duration
}

func NewMatchLifecycle(matches repository.MatchRepository, publisher changefeed.Publisher, log zerolog.Logger, timeout time.Duration) *Lifecycle {
	return &Lifecycle{
		matches:   matches,
		publisher: publisher,
		log:       log.With().Str("component", "match_lifecycle").Logger(),
		timeout:   timeout,
	}
}

func (l *Lifecycle) SetStatus(ctx context.Context, actorID, matchID uuid.UUID, status match.Status) (match.Match, error) {
	if matchID == uuid.Nil {
		return match.Match{}, validationError("empty match id")
	}
	if actorID == uuid.Nil {
		return match.Match{}, validationError("empty actor id")
	}
	if _, ok := match.ParseStatus(string(status)); !ok {
		return match.Match{}, validationError("unknown status %q", status)
	}

	storeCtx, cancel := withStoreTimeout(ctx, l.timeout)
	defer cancel()

	current, err := l.matches.FindByID(storeCtx, matchID)
	if err != nil {
		if errors.Is(err, repository.ErrMatchNotFound) {
			return match.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
		}
		return match.Match{}, storeError("find match", err)
	}
	if !current.IsParticipant(actorID) {
		return match.Match{}, fmt.Errorf("%w: user %s on match %s", ErrAuthorization, actorID, matchID)
	}
	if !current.Status.CanTransition(status) {
		return match.Match{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	updated, err := l.matches.UpdateStatus(storeCtx, matchID, current.Status, status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			// another participant decided first
			return match.Match{}, fmt.Errorf("%w: match %s is no longer %s", ErrInvalidTransition, matchID, current.Status)
		case errors.Is(err, repository.ErrMatchNotFound):
			return match.Match{}, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
		case isCheckViolation(err):
			return match.Match{}, validationError("status rejected by store: %v", err)
		default:
			return match.Match{}, storeError("update match status", err)
		}
	}

	l.log.Info().
		Str("match_id", updated.ID.String()).
		Str("actor_id", actorID.String()).
		Str("status", string(updated.Status)).
		Msg("match status changed")
	publish(ctx, l.publisher, l.log, changefeed.EventUpdate, updated)
	return updated, nil
}
