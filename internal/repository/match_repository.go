package repository

import (
	"context"
	"errors"
	"time"

	"skill-exchange/internal/database"
	"skill-exchange/internal/domain/match"

	"github.com/google/uuid"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	// ErrStatusConflict means the match exists but was not in the expected status.
	ErrStatusConflict = errors.New("match status conflict")
)

type MatchRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (match.Match, error)
	FindByKey(ctx context.Context, key match.Key) (match.Match, error)
	// Insert stores m unless a match with the same key exists. It returns the
	// stored row and whether this call created it.
	Insert(ctx context.Context, m match.Match) (match.Match, bool, error)
	// ListByParticipant returns matches where userID is teacher or student, newest first.
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]match.Match, error)
	// UpdateStatus moves a match from one status to another only if it is
	// still in from. It returns ErrMatchNotFound or ErrStatusConflict otherwise.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to match.Status) (match.Match, error)
}

type PostgresMatchRepository struct {
	db database.DB
}

func NewPostgresMatchRepository(db database.DB) *PostgresMatchRepository {
	return &PostgresMatchRepository{db: db}
}

const matchColumns = `id, teacher_id, student_id, teaching_skill_id, learning_skill_id, status, created_at`

func (r *PostgresMatchRepository) FindByID(ctx context.Context, id uuid.UUID) (match.Match, error) {
	return scanMatch(r.db.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id))
}

func (r *PostgresMatchRepository) FindByKey(ctx context.Context, key match.Key) (match.Match, error) {
	return scanMatch(r.db.QueryRow(ctx,
		`SELECT `+matchColumns+`
		 FROM matches
		 WHERE teacher_id = $1 AND student_id = $2 AND teaching_skill_id = $3 AND learning_skill_id = $4`,
		key.TeacherID, key.StudentID, key.TeachingSkillID, key.LearningSkillID,
	))
}

func (r *PostgresMatchRepository) Insert(ctx context.Context, m match.Match) (match.Match, bool, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = match.StatusPending
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	created, err := scanMatch(r.db.QueryRow(ctx,
		`INSERT INTO matches (id, teacher_id, student_id, teaching_skill_id, learning_skill_id, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (teacher_id, student_id, teaching_skill_id, learning_skill_id) DO NOTHING
		 RETURNING `+matchColumns,
		m.ID, m.TeacherID, m.StudentID, m.TeachingSkillID, m.LearningSkillID, string(m.Status), m.CreatedAt,
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, ErrMatchNotFound) {
		return match.Match{}, false, err
	}

	existing, err := r.FindByKey(ctx, m.Key())
	if err != nil {
		return match.Match{}, false, err
	}
	return existing, false, nil
}

func (r *PostgresMatchRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]match.Match, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+matchColumns+`
		 FROM matches
		 WHERE teacher_id = $1 OR student_id = $1
		 ORDER BY created_at DESC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]match.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresMatchRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to match.Status) (match.Match, error) {
	updated, err := scanMatch(r.db.QueryRow(ctx,
		`UPDATE matches SET status = $1
		 WHERE id = $2 AND status = $3
		 RETURNING `+matchColumns,
		string(to), id, string(from),
	))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, ErrMatchNotFound) {
		return match.Match{}, err
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return match.Match{}, err
	}
	return current, ErrStatusConflict
}

func scanMatch(row scanner) (match.Match, error) {
	var (
		m      match.Match
		status string
	)
	if err := row.Scan(&m.ID, &m.TeacherID, &m.StudentID, &m.TeachingSkillID, &m.LearningSkillID, &status, &m.CreatedAt); err != nil {
		if isNoRows(err) {
			return match.Match{}, ErrMatchNotFound
		}
		return match.Match{}, err
	}
	m.Status = match.Status(status)
	return m, nil
}
