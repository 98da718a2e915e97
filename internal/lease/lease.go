// Package lease provides named, expiring mutual exclusion so a background
// sweep never runs twice at once, even across processes.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var (
	// ErrHeld is returned by Acquire when another holder owns the lease.
	ErrHeld = errors.New("lease is held")
	// ErrLost is returned by Extend once the lease expired or changed hands.
	ErrLost = errors.New("lease lost")
)

type Lease interface {
	// Extend pushes the expiry to ttl from now while the lease is still ours.
	Extend(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// Redis ----------------------------------------------------------------------

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only if the key still carries our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "lease:"}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	key := l.prefix + name
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrHeld)
	}
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to extend lease %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", l.key, ErrLost)
	}
	return nil
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}
	return nil
}

// In-process ------------------------------------------------------------------

// MemoryLocker is a Locker for single-instance deployments and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryHold
	nowFn func() time.Time
}

type memoryHold struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryHold), nowFn: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if h, ok := l.held[name]; ok && now.Before(h.expires) {
		return nil, fmt.Errorf("%s: %w", name, ErrHeld)
	}
	token := uuid.NewString()
	l.held[name] = memoryHold{token: token, expires: now.Add(ttl)}
	return &memoryLease{locker: l, name: name, token: token}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	name   string
	token  string
}

func (l *memoryLease) Extend(_ context.Context, ttl time.Duration) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	now := l.locker.nowFn()
	h, ok := l.locker.held[l.name]
	if !ok || h.token != l.token || !now.Before(h.expires) {
		return fmt.Errorf("%s: %w", l.name, ErrLost)
	}
	h.expires = now.Add(ttl)
	l.locker.held[l.name] = h
	return nil
}

func (l *memoryLease) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()

	if h, ok := l.locker.held[l.name]; ok && h.token == l.token {
		delete(l.locker.held, l.name)
	}
	return nil
}
