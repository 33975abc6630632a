package repository

import (
	"context"
	"time"

	"skill-exchange/internal/database"
	"skill-exchange/internal/domain/matching"
	"skill-exchange/internal/domain/skill"

	"github.com/google/uuid"
)

type UserSkillRepository interface {
	// ListSkillsByUser returns the skills userID tagged with dir, ordered by name.
	ListSkillsByUser(ctx context.Context, userID uuid.UUID, dir skill.Direction) ([]skill.Skill, error)
	// Upsert records the tag; re-tagging the same (user, skill, direction)
	// replaces the proficiency level instead of adding a row.
	Upsert(ctx context.Context, us skill.UserSkill) (skill.UserSkill, error)
	// FindCounterparties returns tags on any of skillIDs owned by users other than excludeUserID.
	FindCounterparties(ctx context.Context, skillIDs []uuid.UUID, excludeUserID uuid.UUID) ([]matching.Tag, error)
}

type PostgresUserSkillRepository struct {
	db database.DB
}

func NewPostgresUserSkillRepository(db database.DB) *PostgresUserSkillRepository {
	return &PostgresUserSkillRepository{db: db}
}

func (r *PostgresUserSkillRepository) ListSkillsByUser(ctx context.Context, userID uuid.UUID, dir skill.Direction) ([]skill.Skill, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.id, s.name, COALESCE(s.category, ''), s.created_at
		 FROM user_skills us
		 JOIN skills s ON s.id = us.skill_id
		 WHERE us.user_id = $1 AND us.is_teaching = $2
		 ORDER BY s.name ASC, s.id ASC`,
		userID, dir.IsTeaching(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]skill.Skill, 0)
	for rows.Next() {
		s, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresUserSkillRepository) Upsert(ctx context.Context, us skill.UserSkill) (skill.UserSkill, error) {
	if us.ID == uuid.Nil {
		us.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO user_skills (id, user_id, skill_id, is_teaching, proficiency_level)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, skill_id, is_teaching) DO UPDATE SET
			proficiency_level = EXCLUDED.proficiency_level
		 RETURNING id, user_id, skill_id, is_teaching, proficiency_level, created_at`,
		us.ID, us.UserID, us.SkillID, us.Direction.IsTeaching(), us.ProficiencyLevel,
	)

	var (
		out        skill.UserSkill
		isTeaching bool
		createdAt  time.Time
	)
	if err := row.Scan(&out.ID, &out.UserID, &out.SkillID, &isTeaching, &out.ProficiencyLevel, &createdAt); err != nil {
		return skill.UserSkill{}, err
	}
	out.Direction = skill.DirectionFromTeaching(isTeaching)
	out.CreatedAt = createdAt
	return out, nil
}

func (r *PostgresUserSkillRepository) FindCounterparties(ctx context.Context, skillIDs []uuid.UUID, excludeUserID uuid.UUID) ([]matching.Tag, error) {
	if len(skillIDs) == 0 {
		return []matching.Tag{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT user_id, skill_id, is_teaching
		 FROM user_skills
		 WHERE skill_id = ANY($1::uuid[]) AND user_id <> $2
		 ORDER BY user_id ASC, skill_id ASC, is_teaching ASC`,
		uuidStrings(skillIDs), excludeUserID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]matching.Tag, 0)
	for rows.Next() {
		var (
			t          matching.Tag
			isTeaching bool
		)
		if err := rows.Scan(&t.UserID, &t.SkillID, &isTeaching); err != nil {
			return nil, err
		}
		t.Direction = skill.DirectionFromTeaching(isTeaching)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
