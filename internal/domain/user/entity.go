package user

import (
	"time"

	"github.com/google/uuid"
)

// User rows mirror the identity service. This service only inserts missing
// rows from token claims and never updates them.
type User struct {
	ID        uuid.UUID
	Email     string
	FullName  string
	CreatedAt time.Time
}
