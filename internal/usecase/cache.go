package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Cache is the subset of the Redis adapter the usecases use. A nil Cache
// disables caching and locking.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	SetIfNotExists(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
}

// SkillNameCacheKey hashes the exact name; skill names are case-sensitive.
func SkillNameCacheKey(name string) string {
	sum := sha256.Sum256([]byte(name))
	return "skills:name:" + hex.EncodeToString(sum[:])
}

func DiscoveryLockKey(userID uuid.UUID) string {
	return "discover:lock:" + userID.String()
}
