package repository

import (
	"context"
	"database/sql"
	"errors"

	"skill-exchange/internal/database"
	"skill-exchange/internal/domain/skill"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrSkillNotFound = errors.New("skill not found")

type SkillRepository interface {
	ListAll(ctx context.Context) ([]skill.Skill, error)
	FindByID(ctx context.Context, id uuid.UUID) (skill.Skill, error)
	FindByName(ctx context.Context, name string) (skill.Skill, error)
	// CreateIfAbsent inserts a skill unless one with the same name exists and
	// returns whichever row holds the name afterwards.
	CreateIfAbsent(ctx context.Context, name, category string) (skill.Skill, error)
}

type PostgresSkillRepository struct {
	db database.DB
}

func NewPostgresSkillRepository(db database.DB) *PostgresSkillRepository {
	return &PostgresSkillRepository{db: db}
}

const skillColumns = `id, name, COALESCE(category, ''), created_at`

func (r *PostgresSkillRepository) ListAll(ctx context.Context) ([]skill.Skill, error) {
	rows, err := r.db.Query(ctx, `SELECT `+skillColumns+` FROM skills ORDER BY name ASC, id ASC`)
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

func (r *PostgresSkillRepository) FindByID(ctx context.Context, id uuid.UUID) (skill.Skill, error) {
	return scanSkill(r.db.QueryRow(ctx, `SELECT `+skillColumns+` FROM skills WHERE id = $1`, id))
}

func (r *PostgresSkillRepository) FindByName(ctx context.Context, name string) (skill.Skill, error) {
	return scanSkill(r.db.QueryRow(ctx, `SELECT `+skillColumns+` FROM skills WHERE name = $1`, name))
}

func (r *PostgresSkillRepository) CreateIfAbsent(ctx context.Context, name, category string) (skill.Skill, error) {
	var cat any
	if category != "" {
		cat = category
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO skills (id, name, category) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING `+skillColumns,
		uuid.New(), name, cat,
	)
	s, err := scanSkill(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrSkillNotFound) {
		return skill.Skill{}, err
	}

	// lost the race: the name is already taken, reload it
	return r.FindByName(ctx, name)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSkill(row scanner) (skill.Skill, error) {
	var s skill.Skill
	if err := row.Scan(&s.ID, &s.Name, &s.Category, &s.CreatedAt); err != nil {
		if isNoRows(err) {
			return skill.Skill{}, ErrSkillNotFound
		}
		return skill.Skill{}, err
	}
	return s, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
