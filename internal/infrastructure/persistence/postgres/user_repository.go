package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"skill-exchange/internal/database"
	"skill-exchange/internal/domain/user"

	"github.com/google/uuid"
)

// UserRepository reads the users table written by the identity service.
type UserRepository struct {
	stmtGetByID  *sql.Stmt
	stmtExistsID *sql.Stmt
	stmtEnsure   *sql.Stmt
}

var (
	_ user.Repository  = (*UserRepository)(nil)
	_ user.Provisioner = (*UserRepository)(nil)
)

func NewUserRepository(ctx context.Context, db database.DB) (*UserRepository, error) {
	sqlDB := db.SQLDB()
	if sqlDB == nil {
		return nil, errors.New("user repository: nil sql db")
	}

	r := &UserRepository{}

	var err error
	r.stmtGetByID, err = sqlDB.PrepareContext(ctx,
		`SELECT id, email, COALESCE(full_name, ''), created_at FROM users WHERE id = $1`,
	)
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	r.stmtExistsID, err = sqlDB.PrepareContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`,
	)
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	r.stmtEnsure, err = sqlDB.PrepareContext(ctx,
		`INSERT INTO users (id, email, full_name) VALUES ($1, $2, NULLIF($3, '')) ON CONFLICT DO NOTHING`,
	)
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	return r, nil
}

func (r *UserRepository) Close() error {
	var firstErr error
	closeStmt := func(s *sql.Stmt) {
		if s == nil {
			return
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	closeStmt(r.stmtGetByID)
	closeStmt(r.stmtExistsID)
	closeStmt(r.stmtEnsure)

	return firstErr
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	var u user.User
	err := r.stmtGetByID.QueryRowContext(ctx, id.String()).Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UserRepository) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.stmtExistsID.QueryRowContext(ctx, id.String()).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *UserRepository) Ensure(ctx context.Context, u user.User) error {
	if u.ID == uuid.Nil {
		return user.ErrNotFound
	}
	email := strings.TrimSpace(u.Email)
	if email == "" {
		// users.email is NOT NULL UNIQUE.
		email = u.ID.String() + "@users.invalid"
	}
	_, err := r.stmtEnsure.ExecContext(ctx, u.ID.String(), email, u.FullName)
	return err
}
