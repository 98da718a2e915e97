package cache

import (
	"context"
	"os"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenithAPI/internal/challenge"
	"zenithAPI/internal/ledger"
)

type countingStore struct {
	ledger.ChallengeStore
	gets int
}

func (s *countingStore) GetChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	s.gets++
	return s.ChallengeStore.GetChallenge(ctx, id)
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	return rdb
}

func TestChallengeCacheReadThrough(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	store := &countingStore{ChallengeStore: ledger.NewMemory()}
	c := NewChallengeCache(store, rdb)

	created, err := c.CreateChallenge(ctx, &challenge.Challenge{Title: "Read 20 pages", CategoryID: 3, Points: 20})
	require.NoError(t, err)

	got, err := c.GetChallenge(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Read 20 pages", got.Title)
	assert.Equal(t, 0, store.gets, "create primes the cache")

	list, err := c.ListChallenges(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = c.CreateChallenge(ctx, &challenge.Challenge{Title: "Walk", CategoryID: 3, Points: 10})
	require.NoError(t, err)
	list, err = c.ListChallenges(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, list, 2, "create invalidates the category list")
}

func TestChallengeCacheFallsThroughWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()
	created, err := mem.CreateChallenge(ctx, &challenge.Challenge{Title: "Stretch", CategoryID: 1, Points: 5})
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	c := NewChallengeCache(mem, rdb)

	got, err := c.GetChallenge(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = c.GetChallenge(ctx, "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
