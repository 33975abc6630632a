package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"skill-exchange/internal/domain/match"
	"skill-exchange/internal/domain/matching"
	"skill-exchange/internal/domain/skill"
	"skill-exchange/internal/domain/user"
	"skill-exchange/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const discoveryLockTTL = 30 * time.Second

type MatchingUsecase interface {
	// FindCandidates returns the unpersisted pairings touching userID.
	FindCandidates(ctx context.Context, userID uuid.UUID) ([]matching.Proposal, error)
	// Discover finds candidates for userID and persists each of them.
	Discover(ctx context.Context, userID uuid.UUID) ([]match.Match, error)
	ListMatches(ctx context.Context, userID uuid.UUID) ([]match.Match, error)
	// Describe resolves the participants and skills of each match.
	Describe(ctx context.Context, items []match.Match) ([]MatchDetail, error)
}

type Participant struct {
	ID       uuid.UUID
	Email    string
	FullName string
}

type MatchDetail struct {
	Match         match.Match
	Teacher       Participant
	Student       Participant
	TeachingSkill skill.Skill
	LearningSkill skill.Skill
}

type Matching struct {
	skills     SkillUsecase
	skillRepo  repository.SkillRepository
	userSkills repository.UserSkillRepository
	users      user.Repository
	matches    repository.MatchRepository
	writer     MatchWriter
	cache      Cache
	log        zerolog.Logger
	timeout    time.Duration
}

func NewMatchingUsecase(
	skills SkillUsecase,
	skillRepo repository.SkillRepository,
	userSkills repository.UserSkillRepository,
	users user.Repository,
	matches repository.MatchRepository,
	writer MatchWriter,
	cache Cache,
	log zerolog.Logger,
	timeout time.Duration,
) *Matching {
	return &Matching{
		skills:     skills,
		skillRepo:  skillRepo,
		userSkills: userSkills,
		users:      users,
		matches:    matches,
		writer:     writer,
		cache:      cache,
		log:        log.With().Str("component", "match_discovery").Logger(),
		timeout:    timeout,
	}
}

func (u *Matching) FindCandidates(ctx context.Context, userID uuid.UUID) ([]matching.Proposal, error) {
	if userID == uuid.Nil {
		return nil, validationError("empty user id")
	}

	teaching, err := u.skills.ListTaggedSkills(ctx, userID, skill.DirectionTeaching)
	if err != nil {
		return nil, err
	}
	learning, err := u.skills.ListTaggedSkills(ctx, userID, skill.DirectionLearning)
	if err != nil {
		return nil, err
	}

	t := skillIDs(teaching)
	l := skillIDs(learning)
	query := matching.QuerySkillIDs(t, l)
	if len(query) == 0 {
		return []matching.Proposal{}, nil
	}

	storeCtx, cancel := withStoreTimeout(ctx, u.timeout)
	defer cancel()

	counterparties, err := u.userSkills.FindCounterparties(storeCtx, query, userID)
	if err != nil {
		return nil, storeError("find counterparties", err)
	}
	return matching.FindCandidates(userID, t, l, counterparties), nil
}

func (u *Matching) Discover(ctx context.Context, userID uuid.UUID) ([]match.Match, error) {
	if userID == uuid.Nil {
		return nil, validationError("empty user id")
	}

	release, err := u.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	proposals, err := u.FindCandidates(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]match.Match, 0, len(proposals))
	for _, p := range proposals {
		m, err := u.writer.CreateMatch(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	u.log.Info().
		Str("user_id", userID.String()).
		Int("proposals", len(proposals)).
		Msg("match discovery finished")
	return out, nil
}

func (u *Matching) ListMatches(ctx context.Context, userID uuid.UUID) ([]match.Match, error) {
	if userID == uuid.Nil {
		return nil, validationError("empty user id")
	}

	ctx, cancel := withStoreTimeout(ctx, u.timeout)
	defer cancel()

	items, err := u.matches.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, storeError("list matches", err)
	}
	return items, nil
}

func (u *Matching) Describe(ctx context.Context, items []match.Match) ([]MatchDetail, error) {
	ctx, cancel := withStoreTimeout(ctx, u.timeout)
	defer cancel()

	people := make(map[uuid.UUID]Participant)
	person := func(id uuid.UUID) (Participant, error) {
		if p, ok := people[id]; ok {
			return p, nil
		}
		p := Participant{ID: id}
		usr, err := u.users.GetByID(ctx, id)
		switch {
		case err == nil:
			p.Email, p.FullName = usr.Email, usr.FullName
		case errors.Is(err, user.ErrNotFound):
		default:
			return Participant{}, storeError("load user", err)
		}
		people[id] = p
		return p, nil
	}

	skills := make(map[uuid.UUID]skill.Skill)
	skillByID := func(id uuid.UUID) (skill.Skill, error) {
		if sk, ok := skills[id]; ok {
			return sk, nil
		}
		sk, err := u.skillRepo.FindByID(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, repository.ErrSkillNotFound):
			sk = skill.Skill{ID: id}
		default:
			return skill.Skill{}, storeError("load skill", err)
		}
		skills[id] = sk
		return sk, nil
	}

	out := make([]MatchDetail, 0, len(items))
	for _, m := range items {
		d := MatchDetail{Match: m}
		var err error
		if d.Teacher, err = person(m.TeacherID); err != nil {
			return nil, err
		}
		if d.Student, err = person(m.StudentID); err != nil {
			return nil, err
		}
		if d.TeachingSkill, err = skillByID(m.TeachingSkillID); err != nil {
			return nil, err
		}
		if d.LearningSkill, err = skillByID(m.LearningSkillID); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// lock takes the per-user discovery lock. Without a reachable cache the run
// goes ahead unlocked; CreateMatch is idempotent either way.
func (u *Matching) lock(ctx context.Context, userID uuid.UUID) (func(), error) {
	noop := func() {}
	if u.cache == nil {
		return noop, nil
	}

	key := DiscoveryLockKey(userID)
	ok, err := u.cache.SetIfNotExists(ctx, key, strconv.FormatInt(time.Now().UnixNano(), 10), discoveryLockTTL)
	if err != nil {
		u.log.Debug().Err(err).Str("user_id", userID.String()).Msg("discovery lock unavailable, running unlocked")
		return noop, nil
	}
	if !ok {
		return nil, fmt.Errorf("%w: user %s", ErrDiscoveryInProgress, userID)
	}
	return func() {
		if err := u.cache.Delete(context.WithoutCancel(ctx), key); err != nil {
			u.log.Debug().Err(err).Str("user_id", userID.String()).Msg("discovery lock release failed")
		}
	}, nil
}

func skillIDs(items []skill.Skill) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
