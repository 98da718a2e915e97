package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"zenithAPI/internal/chat"
	"zenithAPI/internal/ledger"
)

const chatHistoryTTL = time.Hour

// ChatHistoryCache caches each user's conversation. A new message drops the
// user's entry so the next read sees it.
type ChatHistoryCache struct {
	ledger.ChatStore
	rdb *redis.Client
}

var _ ledger.ChatStore = (*ChatHistoryCache)(nil)

func NewChatHistoryCache(store ledger.ChatStore, rdb *redis.Client) *ChatHistoryCache {
	return &ChatHistoryCache{ChatStore: store, rdb: rdb}
}

func chatHistoryKey(userID string) string { return "chats:" + userID }

func (c *ChatHistoryCache) ListChatMessages(ctx context.Context, userID string) ([]*chat.Message, error) {
	var cached []*chat.Message
	if get(ctx, c.rdb, chatHistoryKey(userID), &cached) {
		return cached, nil
	}

	list, err := c.ChatStore.ListChatMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	set(ctx, c.rdb, chatHistoryKey(userID), list, chatHistoryTTL)
	return list, nil
}

func (c *ChatHistoryCache) CreateChatMessage(ctx context.Context, msg *chat.Message) (*chat.Message, error) {
	created, err := c.ChatStore.CreateChatMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	del(ctx, c.rdb, "chat history", chatHistoryKey(msg.UserID))
	return created, nil
}
