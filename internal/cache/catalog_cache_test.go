package cache

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenithAPI/internal/category"
	"zenithAPI/internal/chat"
	"zenithAPI/internal/ledger"
	"zenithAPI/internal/user"
)

type countingCategoryStore struct {
	ledger.CategoryStore
	lists int
}

func (s *countingCategoryStore) ListCategories(ctx context.Context) ([]*category.Category, error) {
	s.lists++
	return s.CategoryStore.ListCategories(ctx)
}

func TestCategoryCacheInvalidatesOnCreate(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	store := &countingCategoryStore{CategoryStore: ledger.NewMemory()}
	c := NewCategoryCache(store, rdb)

	_, err := c.CreateCategory(ctx, &category.Category{Name: "Fitness", Description: "Move every day"})
	require.NoError(t, err)

	for range 3 {
		list, err := c.ListCategories(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}
	assert.Equal(t, 1, store.lists)

	_, err = c.CreateCategory(ctx, &category.Category{Name: "Reading", Description: "Books and articles"})
	require.NoError(t, err)
	list, err := c.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 2, store.lists)
}

func TestChatHistoryCacheSeesNewMessages(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	mem := ledger.NewMemory()
	u, err := mem.CreateUser(ctx, &user.User{ClerkID: "user_chat"})
	require.NoError(t, err)
	c := NewChatHistoryCache(mem, rdb)

	history, err := c.ListChatMessages(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = c.CreateChatMessage(ctx, &chat.Message{UserID: u.ID, Query: "hi", Response: "hello", QueryType: chat.QueryGeneral})
	require.NoError(t, err)

	history, err = c.ListChatMessages(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Response)
}

func TestCategoryCacheFallsThroughWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	c := NewCategoryCache(mem, rdb)

	_, err := c.CreateCategory(ctx, &category.Category{Name: "Mindfulness", Description: "Breathe and reflect"})
	require.NoError(t, err)
	list, err := c.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
