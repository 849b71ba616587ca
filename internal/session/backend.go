package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "portfolio-session||"

var ErrNoToken = errors.New("no token in session")

var _ Backend = (*RedisBackend)(nil)
var _ Backend = (*MemoryBackend)(nil)

// Backend keeps the current token of each session, keyed by session id
type Backend interface {
	Get(ctx context.Context, sessionID string) (string, error)
	Set(ctx context.Context, sessionID, token string) error
	Clear(ctx context.Context, sessionID string) error
}

type RedisBackend struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewRedisBackend(redisClient *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func (b *RedisBackend) Get(ctx context.Context, sessionID string) (string, error) {
	cmd := b.redisClient.Get(ctx, sessionKeyPrefix+sessionID)
	if err := cmd.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoToken
		}
		return "", err
	}

	token := cmd.Val()
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (b *RedisBackend) Set(ctx context.Context, sessionID, token string) error {
	return b.redisClient.Set(ctx, sessionKeyPrefix+sessionID, token, b.ttl).Err()
}

// Clear removes the token from the session. The token itself stays valid until it expires.
func (b *RedisBackend) Clear(ctx context.Context, sessionID string) error {
	return b.redisClient.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryBackend is used in tests and local development, when redis is not around
type MemoryBackend struct {
	mutex    sync.RWMutex
	ttl      time.Duration
	sessions map[string]memoryEntry
	// Now can be replaced in tests
	Now func() time.Time
}

func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	return &MemoryBackend{
		ttl:      ttl,
		sessions: make(map[string]memoryEntry),
		Now:      time.Now,
	}
}

func (b *MemoryBackend) Get(_ context.Context, sessionID string) (string, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	entry, ok := b.sessions[sessionID]
	if !ok || entry.token == "" || !b.Now().Before(entry.expiresAt) {
		return "", ErrNoToken
	}
	return entry.token, nil
}

func (b *MemoryBackend) Set(_ context.Context, sessionID, token string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.sessions[sessionID] = memoryEntry{
		token:     token,
		expiresAt: b.Now().Add(b.ttl),
	}
	return nil
}

func (b *MemoryBackend) Clear(_ context.Context, sessionID string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	delete(b.sessions, sessionID)
	return nil
}
