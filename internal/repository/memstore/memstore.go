// Package memstore is an in-process implementation of the repositories, used
// with STORE_DRIVER=memory and as the store behind the usecase tests. It
// enforces the same uniqueness rules as the Postgres schema.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"skill-exchange/internal/domain/match"
	"skill-exchange/internal/domain/matching"
	"skill-exchange/internal/domain/skill"
	"skill-exchange/internal/domain/user"
	"skill-exchange/internal/repository"

	"github.com/google/uuid"
)

type tagKey struct {
	userID     uuid.UUID
	skillID    uuid.UUID
	isTeaching bool
}

type Store struct {
	mu sync.RWMutex

	users        map[uuid.UUID]user.User
	skills       map[uuid.UUID]skill.Skill
	skillsByName map[string]uuid.UUID
	tags         map[tagKey]skill.UserSkill
	matches      map[uuid.UUID]match.Match
	matchesByKey map[match.Key]uuid.UUID

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:        make(map[uuid.UUID]user.User),
		skills:       make(map[uuid.UUID]skill.Skill),
		skillsByName: make(map[string]uuid.UUID),
		tags:         make(map[tagKey]skill.UserSkill),
		matches:      make(map[uuid.UUID]match.Match),
		matchesByKey: make(map[match.Key]uuid.UUID),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// PutUser stands in for the identity service creating a user row.
func (s *Store) PutUser(u user.User) user.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return u
}

func (s *Store) Users() *Users           { return &Users{s: s} }
func (s *Store) Skills() *Skills         { return &Skills{s: s} }
func (s *Store) UserSkills() *UserSkills { return &UserSkills{s: s} }
func (s *Store) Matches() *Matches       { return &Matches{s: s} }

type Users struct{ s *Store }

var (
	_ user.Repository  = (*Users)(nil)
	_ user.Provisioner = (*Users)(nil)
)

func (r *Users) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *Users) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.users[id]
	return ok, nil
}

func (r *Users) Ensure(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if u.ID == uuid.Nil {
		return user.ErrNotFound
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.ID]; ok {
		return nil
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.s.now()
	}
	r.s.users[u.ID] = u
	return nil
}

// SeedSkills creates each named skill unless one with that name exists.
func (s *Store) SeedSkills(entries map[string]string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := 0
	for name, category := range entries {
		if _, ok := s.skillsByName[name]; ok {
			continue
		}
		sk := skill.Skill{ID: uuid.New(), Name: name, Category: category, CreatedAt: s.now()}
		s.skills[sk.ID] = sk
		s.skillsByName[name] = sk.ID
		created++
	}
	return created
}

type Skills struct{ s *Store }

var _ repository.SkillRepository = (*Skills)(nil)

func (r *Skills) ListAll(ctx context.Context) ([]skill.Skill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]skill.Skill, 0, len(r.s.skills))
	for _, sk := range r.s.skills {
		out = append(out, sk)
	}
	sortSkills(out)
	return out, nil
}

func (r *Skills) FindByID(ctx context.Context, id uuid.UUID) (skill.Skill, error) {
	if err := ctx.Err(); err != nil {
		return skill.Skill{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sk, ok := r.s.skills[id]
	if !ok {
		return skill.Skill{}, repository.ErrSkillNotFound
	}
	return sk, nil
}

func (r *Skills) FindByName(ctx context.Context, name string) (skill.Skill, error) {
	if err := ctx.Err(); err != nil {
		return skill.Skill{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.skillsByName[name]
	if !ok {
		return skill.Skill{}, repository.ErrSkillNotFound
	}
	return r.s.skills[id], nil
}

func (r *Skills) CreateIfAbsent(ctx context.Context, name, category string) (skill.Skill, error) {
	if err := ctx.Err(); err != nil {
		return skill.Skill{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if id, ok := r.s.skillsByName[name]; ok {
		return r.s.skills[id], nil
	}
	sk := skill.Skill{ID: uuid.New(), Name: name, Category: category, CreatedAt: r.s.now()}
	r.s.skills[sk.ID] = sk
	r.s.skillsByName[name] = sk.ID
	return sk, nil
}

type UserSkills struct{ s *Store }

var _ repository.UserSkillRepository = (*UserSkills)(nil)

func (r *UserSkills) ListSkillsByUser(ctx context.Context, userID uuid.UUID, dir skill.Direction) ([]skill.Skill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]skill.Skill, 0)
	for k := range r.s.tags {
		if k.userID != userID || k.isTeaching != dir.IsTeaching() {
			continue
		}
		if sk, ok := r.s.skills[k.skillID]; ok {
			out = append(out, sk)
		}
	}
	sortSkills(out)
	return out, nil
}

func (r *UserSkills) Upsert(ctx context.Context, us skill.UserSkill) (skill.UserSkill, error) {
	if err := ctx.Err(); err != nil {
		return skill.UserSkill{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// foreign keys
	if _, ok := r.s.users[us.UserID]; !ok {
		return skill.UserSkill{}, user.ErrNotFound
	}
	if _, ok := r.s.skills[us.SkillID]; !ok {
		return skill.UserSkill{}, repository.ErrSkillNotFound
	}

	k := tagKey{userID: us.UserID, skillID: us.SkillID, isTeaching: us.Direction.IsTeaching()}
	if existing, ok := r.s.tags[k]; ok {
		existing.ProficiencyLevel = us.ProficiencyLevel
		r.s.tags[k] = existing
		return existing, nil
	}
	if us.ID == uuid.Nil {
		us.ID = uuid.New()
	}
	us.CreatedAt = r.s.now()
	r.s.tags[k] = us
	return us, nil
}

func (r *UserSkills) FindCounterparties(ctx context.Context, skillIDs []uuid.UUID, excludeUserID uuid.UUID) ([]matching.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[uuid.UUID]struct{}, len(skillIDs))
	for _, id := range skillIDs {
		want[id] = struct{}{}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]matching.Tag, 0)
	for k := range r.s.tags {
		if k.userID == excludeUserID {
			continue
		}
		if _, ok := want[k.skillID]; !ok {
			continue
		}
		out = append(out, matching.Tag{
			UserID:    k.userID,
			SkillID:   k.skillID,
			Direction: skill.DirectionFromTeaching(k.isTeaching),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].UserID[:], out[j].UserID[:]); c != 0 {
			return c < 0
		}
		if c := bytes.Compare(out[i].SkillID[:], out[j].SkillID[:]); c != 0 {
			return c < 0
		}
		return out[i].Direction < out[j].Direction
	})
	return out, nil
}

type Matches struct{ s *Store }

var _ repository.MatchRepository = (*Matches)(nil)

func (r *Matches) FindByID(ctx context.Context, id uuid.UUID) (match.Match, error) {
	if err := ctx.Err(); err != nil {
		return match.Match{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.matches[id]
	if !ok {
		return match.Match{}, repository.ErrMatchNotFound
	}
	return m, nil
}

func (r *Matches) FindByKey(ctx context.Context, key match.Key) (match.Match, error) {
	if err := ctx.Err(); err != nil {
		return match.Match{}, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.matchesByKey[key]
	if !ok {
		return match.Match{}, repository.ErrMatchNotFound
	}
	return r.s.matches[id], nil
}

func (r *Matches) Insert(ctx context.Context, m match.Match) (match.Match, bool, error) {
	if err := ctx.Err(); err != nil {
		return match.Match{}, false, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if id, ok := r.s.matchesByKey[m.Key()]; ok {
		return r.s.matches[id], false, nil
	}
	for _, id := range []uuid.UUID{m.TeacherID, m.StudentID} {
		if _, ok := r.s.users[id]; !ok {
			return match.Match{}, false, user.ErrNotFound
		}
	}
	for _, id := range []uuid.UUID{m.TeachingSkillID, m.LearningSkillID} {
		if _, ok := r.s.skills[id]; !ok {
			return match.Match{}, false, repository.ErrSkillNotFound
		}
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = match.StatusPending
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.s.now()
	}
	r.s.matches[m.ID] = m
	r.s.matchesByKey[m.Key()] = m.ID
	return m, true, nil
}

func (r *Matches) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]match.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]match.Match, 0)
	for _, m := range r.s.matches {
		if m.TeacherID == userID || m.StudentID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out, nil
}

func (r *Matches) UpdateStatus(ctx context.Context, id uuid.UUID, from, to match.Status) (match.Match, error) {
	if err := ctx.Err(); err != nil {
		return match.Match{}, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return match.Match{}, repository.ErrMatchNotFound
	}
	if m.Status != from {
		return m, repository.ErrStatusConflict
	}
	m.Status = to
	r.s.matches[id] = m
	return m, nil
}

func sortSkills(s []skill.Skill) {
	sort.Slice(s, func(i, j int) bool {
		if c := strings.Compare(s[i].Name, s[j].Name); c != 0 {
			return c < 0
		}
		return bytes.Compare(s[i].ID[:], s[j].ID[:]) < 0
	})
}
