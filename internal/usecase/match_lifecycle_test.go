package usecase

import (
	"context"
	"sync"
	"testing"

	"skill-exchange/internal/domain/match"
	"skill-exchange/internal/domain/matching"
	"skill-exchange/internal/domain/skill"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingMatch(t *testing.T, f *fixture) (match.Match, uuid.UUID, uuid.UUID) {
	t.Helper()
	a := f.user(t, "a@example.com")
	b := f.user(t, "b@example.com")
	guitar := f.tag(t, a, "Guitar", skill.DirectionTeaching)
	piano := f.tag(t, b, "Piano", skill.DirectionTeaching)
	m, err := f.writer.CreateMatch(context.Background(), matching.Proposal{TeacherID: a, StudentID: b, TeachingSkillID: guitar.ID, LearningSkillID: piano.ID})
	require.NoError(t, err)
	return m, a, b
}

func TestLifecycle_AcceptIsVisibleToBothParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, a, b := pendingMatch(t, f)

	updated, err := f.lifecycle.SetStatus(ctx, b, m.ID, match.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, match.StatusAccepted, updated.Status)

	for _, id := range []uuid.UUID{a, b} {
		items, err := f.matching.ListMatches(ctx, id)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, match.StatusAccepted, items[0].Status)
	}
}

func TestLifecycle_TerminalStatusIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, a, _ := pendingMatch(t, f)

	_, err := f.lifecycle.SetStatus(ctx, a, m.ID, match.StatusRejected)
	require.NoError(t, err)

	for _, next := range []match.Status{match.StatusAccepted, match.StatusRejected, match.StatusPending} {
		_, err := f.lifecycle.SetStatus(ctx, a, m.ID, next)
		assert.ErrorIs(t, err, ErrInvalidTransition, "rejected -> %s", next)
	}

	items, err := f.matching.ListMatches(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, match.StatusRejected, items[0].Status)
}

func TestLifecycle_RejectsNonParticipantAndBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m, a, _ := pendingMatch(t, f)
	outsider := f.user(t, "c@example.com")

	_, err := f.lifecycle.SetStatus(ctx, outsider, m.ID, match.StatusAccepted)
	assert.ErrorIs(t, err, ErrAuthorization)

	_, err = f.lifecycle.SetStatus(ctx, a, uuid.New(), match.StatusAccepted)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.lifecycle.SetStatus(ctx, a, m.ID, match.Status("maybe"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.lifecycle.SetStatus(ctx, a, uuid.Nil, match.StatusAccepted)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLifecycle_ConcurrentDecisionsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	m, a, b := pendingMatch(t, f)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, actor := range []uuid.UUID{a, b} {
		wg.Add(1)
		go func(i int, actor uuid.UUID, status match.Status) {
			defer wg.Done()
			_, errs[i] = f.lifecycle.SetStatus(context.Background(), actor, m.ID, status)
		}(i, actor, []match.Status{match.StatusAccepted, match.StatusRejected}[i])
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrInvalidTransition)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}
