// Package usercache keeps short-lived copies of "who am I" answers keyed by
// session credential, so page loads do not all hit GET /auth/me.
package usercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aioptimizer/frontend/internal/models"
)

// ErrMiss is returned by Get when no fresh entry exists
var ErrMiss = errors.New("user cache miss")

// Cache stores users by key
type Cache interface {
	Get(ctx context.Context, key string) (*models.User, error)
	Set(ctx context.Context, key string, user *models.User) error
	Delete(ctx context.Context, key string) error
}

// Key derives the cache key for a session credential; the raw credential is never stored
func Key(credential string) string {
	if credential == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// RedisCache implements Cache using Redis
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: "aiopt:me:",
		ttl:    ttl,
	}
}

// Get implements Cache
func (r *RedisCache) Get(ctx context.Context, key string) (*models.User, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrMiss
		}
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		r.client.Del(ctx, r.prefix+key)
		return nil, fmt.Errorf("failed to unmarshal cached user: %w", err)
	}
	return &user, nil
}

// Set implements Cache
func (r *RedisCache) Set(ctx context.Context, key string, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return r.client.Set(ctx, r.prefix+key, data, r.ttl).Err()
}

// Delete implements Cache
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

type memoryEntry struct {
	user      models.User
	expiresAt time.Time
}

// MemoryCache implements Cache in process, for single-instance deployments
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-process cache
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get implements Cache
func (m *MemoryCache) Get(_ context.Context, key string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, ErrMiss
	}
	user := entry.user
	return &user, nil
}

// Set implements Cache
func (m *MemoryCache) Set(_ context.Context, key string, user *models.User) error {
	if user == nil {
		return fmt.Errorf("cannot cache a nil user")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Sweep expired entries opportunistically
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}

	m.entries[key] = memoryEntry{user: *user, expiresAt: now.Add(m.ttl)}
	return nil
}

// Delete implements Cache
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Noop never stores anything; used by the CLI, which makes one call per run
type Noop struct{}

func (Noop) Get(context.Context, string) (*models.User, error) { return nil, ErrMiss }

func (Noop) Set(context.Context, string, *models.User) error { return nil }

func (Noop) Delete(context.Context, string) error { return nil }
