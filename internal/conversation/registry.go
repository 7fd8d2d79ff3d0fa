package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/healthjournal/internal/assistant"
)

const sweepInterval = 5 * time.Minute

// EvictCallback is called after a workspace is evicted by the sweeper.
type EvictCallback func(userID string)

// Registry hands out one Manager per user, creating it on first use.
type Registry struct {
	replier assistant.Replier
	opts    []Option
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	managers map[string]*Manager
}

// NewRegistry creates a registry. opts are applied to every Manager it creates.
func NewRegistry(replier assistant.Replier, ttl time.Duration, opts ...Option) *Registry {
	return &Registry{
		replier:  replier,
		opts:     opts,
		ttl:      ttl,
		now:      time.Now,
		managers: make(map[string]*Manager),
	}
}

// Get returns the user's workspace, creating it if needed.
func (r *Registry) Get(userID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[userID]; ok {
		return m
	}
	m := NewManager(userID, r.replier, r.opts...)
	r.managers[userID] = m
	slog.Info("Workspace created", "user_id", userID)
	return m
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}

// Evict closes and forgets a user's workspace. It reports whether one existed.
func (r *Registry) Evict(userID string) bool {
	r.mu.Lock()
	m, ok := r.managers[userID]
	delete(r.managers, userID)
	r.mu.Unlock()

	if ok {
		m.Close()
	}
	return ok
}

// Sweep evicts workspaces idle for longer than the TTL and returns their owners.
func (r *Registry) Sweep() []string {
	threshold := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Manager
	for userID, m := range r.managers {
		if m.LastActive().Before(threshold) {
			expired = append(expired, m)
			delete(r.managers, userID)
		}
	}
	r.mu.Unlock()

	users := make([]string, 0, len(expired))
	for _, m := range expired {
		m.Close()
		users = append(users, m.UserID())
	}
	return users
}

// StartSweeper runs a background goroutine that periodically evicts idle
// workspaces until ctx is cancelled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration, onEvict EvictCallback) {
	if interval <= 0 {
		interval = sweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Workspace sweeper started", "interval", interval, "ttl", r.ttl)

		for {
			select {
			case <-ticker.C:
				evicted := r.Sweep()
				if len(evicted) == 0 {
					continue
				}
				for _, userID := range evicted {
					if onEvict != nil {
						onEvict(userID)
					}
				}
				slog.Info("Workspace sweeper evicted idle workspaces", "count", len(evicted))
			case <-ctx.Done():
				slog.Info("Workspace sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Close closes every workspace.
func (r *Registry) Close() {
	r.mu.Lock()
	managers := r.managers
	r.managers = make(map[string]*Manager)
	r.mu.Unlock()

	for _, m := range managers {
		m.Close()
	}
}
