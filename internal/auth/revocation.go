package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore remembers token ids that must no longer be accepted.
type RevocationStore interface {
	// Revoke rejects jti until the token would have expired anyway.
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevocations keeps revoked ids in process memory.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations creates an empty in-memory revocation list.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{revoked: make(map[string]time.Time), now: time.Now}
}

// Revoke implements RevocationStore. Expired entries are pruned on each call.
func (m *MemoryRevocations) Revoke(_ context.Context, jti string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, exp := range m.revoked {
		if !exp.After(now) {
			delete(m.revoked, id)
		}
	}
	m.revoked[jti] = until
	return nil
}

// IsRevoked implements RevocationStore.
func (m *MemoryRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.revoked[jti]
	return ok && until.After(m.now()), nil
}

const revokedKeyPrefix = "revoked:"

// RedisRevocations shares revoked ids between server instances. Keys expire
// together with the tokens they reject.
type RedisRevocations struct {
	client *redis.Client
}

// NewRedisRevocations connects to Redis and verifies the connection.
func NewRedisRevocations(addr, password string, db int) (*RedisRevocations, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return &RedisRevocations{client: client}, nil
}

// Revoke implements RevocationStore.
func (r *RedisRevocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked implements RevocationStore.
func (r *RedisRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}

// Close closes the Redis connection.
func (r *RedisRevocations) Close() error {
	return r.client.Close()
}
