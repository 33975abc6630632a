package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"skill-exchange/internal/changefeed"
	"skill-exchange/internal/domain/match"
	"skill-exchange/internal/domain/skill"
	"skill-exchange/internal/domain/user"
	"skill-exchange/internal/repository/memstore"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *memstore.Store
	feed      *changefeed.Broker
	cache     *memoryCache
	skills    *Skill
	writer    *MatchRecords
	lifecycle *Lifecycle
	matching  *Matching
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zerolog.Nop()
	store := memstore.New()
	feed := changefeed.NewBroker(16, log)
	cache := newMemoryCache()
	t.Cleanup(func() { _ = feed.Close() })

	skills := NewSkillUsecase(store.Skills(), store.UserSkills(), store.Users(), cache, log, time.Second)
	writer := NewMatchWriter(store.Matches(), feed, log, time.Second)
	return &fixture{
		store:     store,
		feed:      feed,
		cache:     cache,
		skills:    skills,
		writer:    writer,
		lifecycle: NewMatchLifecycle(store.Matches(), feed, log, time.Second),
		matching:  NewMatchingUsecase(skills, store.Skills(), store.UserSkills(), store.Users(), store.Matches(), writer, cache, log, time.Second),
	}
}

func (f *fixture) user(t *testing.T, email string) uuid.UUID {
	t.Helper()
	return f.store.PutUser(user.User{Email: email, FullName: email}).ID
}

func (f *fixture) tag(t *testing.T, userID uuid.UUID, name string, dir skill.Direction) skill.Skill {
	t.Helper()
	sk, err := f.skills.AddUserSkill(context.Background(), userID, name, dir, "")
	require.NoError(t, err)
	return sk
}

// memoryCache mimics the Redis adapter. When down is set every call fails
// the way an unreachable Redis does.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	down bool
}

var errCacheDown = errors.New("cache unavailable")

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) GetJSON(_ context.Context, key string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return false, errCacheDown
	}
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func (c *memoryCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return errCacheDown
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return errCacheDown
	}
	delete(c.data, key)
	return nil
}

func (c *memoryCache) SetIfNotExists(_ context.Context, key string, value string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.down {
		return false, errCacheDown
	}
	if _, ok := c.data[key]; ok {
		return false, nil
	}
	c.data[key] = []byte(value)
	return true, nil
}

func (c *memoryCache) setDown(down bool) {
	c.mu.Lock()
	c.down = down
	c.mu.Unlock()
}

// failingMatches wraps a match repository and fails selected calls.
type failingMatches struct {
	*memstore.Matches
	listErr error
	// block makes ListByParticipant wait for the context to end.
	block bool
}

func (r *failingMatches) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]match.Match, error) {
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.Matches.ListByParticipant(ctx, userID)
}
