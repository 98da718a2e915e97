// Package cache puts a Redis read-through layer in front of catalog and
// chat history reads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/challenge"
	"zenithAPI/internal/ledger"
)

const (
	challengeTTL = 24 * time.Hour
	listTTL      = 5 * time.Minute
)

// ChallengeCache serves challenge reads from Redis and falls through to the
// wrapped store on a miss or when Redis is unavailable. Challenges are
// immutable after creation, so single-item entries only expire.
type ChallengeCache struct {
	ledger.ChallengeStore
	rdb *redis.Client
}

var _ ledger.ChallengeStore = (*ChallengeCache)(nil)

func NewChallengeCache(store ledger.ChallengeStore, rdb *redis.Client) *ChallengeCache {
	return &ChallengeCache{ChallengeStore: store, rdb: rdb}
}

func challengeKey(id string) string { return "challenge:" + id }
func challengeListKey(category int) string { return fmt.Sprintf("challenges:category:%d", category) }

func (c *ChallengeCache) GetChallenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	var cached challenge.Challenge
	if get(ctx, c.rdb, challengeKey(id), &cached) {
		return &cached, nil
	}

	ch, err := c.ChallengeStore.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	set(ctx, c.rdb, challengeKey(id), ch, challengeTTL)
	return ch, nil
}

func (c *ChallengeCache) ListChallenges(ctx context.Context, categoryID int) ([]*challenge.Challenge, error) {
	var cached []*challenge.Challenge
	if get(ctx, c.rdb, challengeListKey(categoryID), &cached) {
		return cached, nil
	}

	list, err := c.ChallengeStore.ListChallenges(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	set(ctx, c.rdb, challengeListKey(categoryID), list, listTTL)
	return list, nil
}

func (c *ChallengeCache) CreateChallenge(ctx context.Context, ch *challenge.Challenge) (*challenge.Challenge, error) {
	created, err := c.ChallengeStore.CreateChallenge(ctx, ch)
	if err != nil {
		return nil, err
	}
	keys := []string{challengeListKey(0), challengeListKey(created.CategoryID)}
	del(ctx, c.rdb, "challenge lists", keys...)
	set(ctx, c.rdb, challengeKey(created.ID), created, challengeTTL)
	return created, nil
}

func get(ctx context.Context, rdb *redis.Client, key string, dest any) bool {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.WithError(err).WithField("key", key).Warn("Cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.WithError(err).WithField("key", key).Warn("Dropping undecodable cache entry")
		rdb.Del(ctx, key)
		return false
	}
	return true
}

func set(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		log.WithError(err).WithField("key", key).Warn("Cache write failed")
	}
}

func del(ctx context.Context, rdb *redis.Client, what string, keys ...string) {
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		log.WithError(err).Warnf("Failed to invalidate %s", what)
	}
}
