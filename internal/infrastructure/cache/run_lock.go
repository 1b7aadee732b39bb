package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/erli-connector/internal/domain/integration"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// InMemoryRunLock implements RunLock inside one process
type InMemoryRunLock struct {
	mu    sync.Mutex
	held  map[string]lockEntry
	nowFn func() time.Time
}

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// NewInMemoryRunLock creates an in-process run lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{
		held:  make(map[string]lockEntry),
		nowFn: time.Now,
	}
}

// TryAcquire takes the named lock unless a live holder exists
func (l *InMemoryRunLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if e, ok := l.held[name]; ok && now.Before(e.expiresAt) {
		return nil, integration.ErrRunInProgress
	}

	token := uuid.NewString()
	l.held[name] = lockEntry{token: token, expiresAt: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.held[name]; ok && e.token == token {
			delete(l.held, name)
		}
	}, nil
}

// releaseScript deletes the key only when it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements RunLock with SET NX so that several connector
// instances never poll the inbox at the same time
type RedisRunLock struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRunLock creates a distributed run lock
func NewRedisRunLock(client *redis.Client, keyPrefix string) *RedisRunLock {
	if keyPrefix == "" {
		keyPrefix = "erli:run-lock:"
	}
	return &RedisRunLock{client: client, keyPrefix: keyPrefix}
}

// TryAcquire takes the named lock for at most ttl
func (l *RedisRunLock) TryAcquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := l.keyPrefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock %s: %w", name, err)
	}
	if !ok {
		return nil, integration.ErrRunInProgress
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}, nil
}

var (
	_ integration.RunLock = (*InMemoryRunLock)(nil)
	_ integration.RunLock = (*RedisRunLock)(nil)
)
