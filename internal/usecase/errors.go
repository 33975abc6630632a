package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error kinds. Every error returned by this package wraps exactly one of
// them so callers can branch with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrStore             = errors.New("store error")
	ErrAuthorization     = errors.New("not a participant")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTimeout           = errors.New("store timeout")

	ErrDiscoveryInProgress = errors.New("match discovery already running")
)

const DefaultStoreTimeout = 5 * time.Second

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// storeError classifies a failure from a repository call made under op.
func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
	}
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == "23503"
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == "23514"
}
