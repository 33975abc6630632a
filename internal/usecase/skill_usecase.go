package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"skill-exchange/internal/domain/skill"
	"skill-exchange/internal/domain/user"
	"skill-exchange/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultProficiencyLevel = "intermediate"

	skillCacheTTL = 10 * time.Minute
)

type SkillUsecase interface {
	ListSkills(ctx context.Context) ([]skill.Skill, error)
	ListTaggedSkills(ctx context.Context, userID uuid.UUID, dir skill.Direction) ([]skill.Skill, error)
	EnsureSkill(ctx context.Context, name string) (skill.Skill, error)
	TagSkill(ctx context.Context, userID, skillID uuid.UUID, dir skill.Direction, proficiencyLevel string) error
	// AddUserSkill ensures the named skill exists and tags it for userID.
	AddUserSkill(ctx context.Context, userID uuid.UUID, name string, dir skill.Direction, proficiencyLevel string) (skill.Skill, error)
}

type Skill struct {
	skills     repository.SkillRepository
	userSkills repository.UserSkillRepository
	users      user.Repository
	cache      Cache
	log        zerolog.Logger
	timeout    time.Duration
}

func NewSkillUsecase(skills repository.SkillRepository, userSkills repository.UserSkillRepository, users user.Repository, cache Cache, log zerolog.Logger, timeout time.Duration) *Skill {
	return &Skill{
		skills:     skills,
		userSkills: userSkills,
		users:      users,
		cache:      cache,
		log:        log.With().Str("component", "skill_registry").Logger(),
		timeout:    timeout,
	}
}

func (u *Skill) ListSkills(ctx context.Context) ([]skill.Skill, error) {
	ctx, cancel := withStoreTimeout(ctx, u.timeout)
	defer cancel()

	items, err := u.skills.ListAll(ctx)
	if err != nil {
		return nil, storeError("list skills", err)
	}
	return items, nil
}

func (u *Skill) ListTaggedSkills(ctx context.Context, userID uuid.UUID, dir skill.Direction) ([]skill.Skill, error) {
	if userID == uuid.Nil {
		return nil, validationError("empty user id")
	}
	if !dir.Valid() {
		return nil, validationError("invalid direction %q", dir)
	}

	ctx, cancel := withStoreTimeout(ctx, u.timeout)
	defer cancel()

	items, err := u.userSkills.ListSkillsByUser(ctx, userID, dir)
	if err != nil {
		return nil, storeError("list tagged skills", err)
	}
	return items, nil
}

// EnsureSkill returns the skill named name, creating it on first use. The
// unique index on skills.name arbitrates concurrent creators: the loser of
// the insert race reloads the winner's row.
func (u *Skill) EnsureSkill(ctx context.Context, name string) (skill.Skill, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return skill.Skill{}, validationError("empty skill name")
	}

	key := SkillNameCacheKey(name)
	if u.cache != nil {
		var cached skill.Skill
		if ok, err := u.cache.GetJSON(ctx, key, &cached); err == nil && ok && cached.ID != uuid.Nil {
			return cached, nil
		}
	}

	ctx, cancel := withStoreTimeout(ctx, u.timeout)
	defer cancel()

	sk, err := u.skills.FindByName(ctx, name)
	if err != nil {
		if !errors.Is(err, repository.ErrSkillNotFound) {
			return skill.Skill{}, storeError("find skill", err)
		}
		sk, err = u.skills.CreateIfAbsent(ctx, name, "")
		if err != nil {
			return skill.Skill{}, storeError("create skill", err)
		}
		u.log.Debug().Str("skill_id", sk.ID.String()).Str("name", sk.Name).Msg("skill ensured")
	}

	if u.cache != nil {
		if err := u.cache.SetJSON(ctx, key, sk, skillCacheTTL); err != nil {
			u.log.Debug().Err(err).Msg("skill cache write failed")
		}
	}
	return sk, nil
}

func (u *Skill) TagSkill(ctx context.Context, userID, skillID uuid.UUID, dir skill.Direction, proficiencyLevel string) error {
	_, err := u.tag(ctx, userID, skillID, dir, proficiencyLevel)
	return err
}

func (u *Skill) AddUserSkill(ctx context.Context, userID uuid.UUID, name string, dir skill.Direction, proficiencyLevel string) (skill.Skill, error) {
	if userID == uuid.Nil {
		return skill.Skill{}, validationError("empty user id")
	}
	if !dir.Valid() {
		return skill.Skill{}, validationError("invalid direction %q", dir)
	}

	sk, err := u.EnsureSkill(ctx, name)
	if err != nil {
		return skill.Skill{}, err
	}
	if _, err := u.tag(ctx, userID, sk.ID, dir, proficiencyLevel); err != nil {
		return skill.Skill{}, err
	}
	return sk, nil
}

func (u *Skill) tag(ctx context.Context, userID, skillID uuid.UUID, dir skill.Direction, proficiencyLevel string) (skill.UserSkill, error) {
	if userID == uuid.Nil {
		return skill.UserSkill{}, validationError("empty user id")
	}
	if skillID == uuid.Nil {
		return skill.UserSkill{}, validationError("empty skill id")
	}
	if !dir.Valid() {
		return skill.UserSkill{}, validationError("invalid direction %q", dir)
	}
	proficiencyLevel = strings.TrimSpace(proficiencyLevel)
	if proficiencyLevel == "" {
		proficiencyLevel = DefaultProficiencyLevel
	}

	ctx, cancel := withStoreTimeout(ctx, u.timeout)
	defer cancel()

	exists, err := u.users.ExistsByID(ctx, userID)
	if err != nil {
		return skill.UserSkill{}, storeError("check user", err)
	}
	if !exists {
		return skill.UserSkill{}, validationError("unknown user %s", userID)
	}

	if _, err := u.skills.FindByID(ctx, skillID); err != nil {
		if errors.Is(err, repository.ErrSkillNotFound) {
			return skill.UserSkill{}, validationError("unknown skill %s", skillID)
		}
		return skill.UserSkill{}, storeError("check skill", err)
	}

	tagged, err := u.userSkills.Upsert(ctx, skill.UserSkill{
		UserID:           userID,
		SkillID:          skillID,
		Direction:        dir,
		ProficiencyLevel: proficiencyLevel,
	})
	if err != nil {
		// user or skill removed between the checks and the insert
		if isForeignKeyViolation(err) || errors.Is(err, user.ErrNotFound) || errors.Is(err, repository.ErrSkillNotFound) {
			return skill.UserSkill{}, validationError("unknown user or skill")
		}
		return skill.UserSkill{}, storeError("tag skill", err)
	}

	u.log.Debug().
		Str("user_id", userID.String()).
		Str("skill_id", skillID.String()).
		Str("direction", string(dir)).
		Msg("skill tagged")
	return tagged, nil
}
