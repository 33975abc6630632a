package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("user not found")

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
}

// Provisioner records a user the identity service vouched for, so the
// foreign keys on user_skills and matches resolve. Existing rows are kept.
type Provisioner interface {
	Ensure(ctx context.Context, u User) error
}
