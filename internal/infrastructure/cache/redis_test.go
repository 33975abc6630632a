package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis_UnavailableReportsError(t *testing.T) {
	ctx := context.Background()
	var r *Redis

	assert.False(t, r.Available())
	_, err := r.GetJSON(ctx, "k", &struct{}{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, r.SetJSON(ctx, "k", 1, 0), ErrUnavailable)
	assert.ErrorIs(t, r.Delete(ctx, "k"), ErrUnavailable)
	ok, err := r.SetIfNotExists(ctx, "k", "v", 0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NoError(t, r.Close())
}

func testRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("SKILLX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SKILLX_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	r := NewRedisWithClient(client, zerolog.Nop(), time.Minute)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedis_JSONRoundTripAndLock(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	prefix := "test:" + uuid.NewString()
	t.Cleanup(func() { _ = r.DeleteByPattern(context.Background(), prefix+":*") })

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, r.SetJSON(ctx, prefix+":skill", payload{Name: "Go"}, 0))

	var got payload
	ok, err := r.GetJSON(ctx, prefix+":skill", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Go", got.Name)

	ok, err = r.GetJSON(ctx, prefix+":missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.SetIfNotExists(ctx, prefix+":lock", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.SetIfNotExists(ctx, prefix+":lock", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
