package cache

import (
	"context"

	"github.com/go-redis/redis/v8"

	"zenithAPI/internal/category"
	"zenithAPI/internal/ledger"
)

const categoryListKey = "categories:all"

// CategoryCache keeps the full category list in Redis. Lookups by id go
// straight to the store.
type CategoryCache struct {
	ledger.CategoryStore
	rdb *redis.Client
}

var _ ledger.CategoryStore = (*CategoryCache)(nil)

func NewCategoryCache(store ledger.CategoryStore, rdb *redis.Client) *CategoryCache {
	return &CategoryCache{CategoryStore: store, rdb: rdb}
}

func (c *CategoryCache) ListCategories(ctx context.Context) ([]*category.Category, error) {
	var cached []*category.Category
	if get(ctx, c.rdb, categoryListKey, &cached) {
		return cached, nil
	}

	list, err := c.CategoryStore.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	set(ctx, c.rdb, categoryListKey, list, listTTL)
	return list, nil
}

func (c *CategoryCache) CreateCategory(ctx context.Context, cat *category.Category) (*category.Category, error) {
	created, err := c.CategoryStore.CreateCategory(ctx, cat)
	if err != nil {
		return nil, err
	}
	del(ctx, c.rdb, "category list", categoryListKey)
	return created, nil
}
