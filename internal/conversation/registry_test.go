package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/ashureev/healthjournal/internal/assistant"
)

func TestRegistryReturnsSameWorkspacePerUser(t *testing.T) {
	t.Parallel()

	r := NewRegistry(assistant.NewEchoReplier(0), time.Hour)
	defer r.Close()

	a := r.Get("user-1")
	if r.Get("user-1") != a {
		t.Fatal("expected the same manager for the same user")
	}
	if r.Get("user-2") == a {
		t.Fatal("users share a workspace")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 workspaces, got %d", r.Len())
	}
}

func TestRegistrySweepEvictsIdleWorkspaces(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	r := NewRegistry(assistant.NewEchoReplier(0), 30*time.Minute, WithClock(clock))
	r.now = clock
	defer r.Close()

	r.Get("idle")
	now = now.Add(20 * time.Minute)
	r.Get("busy")
	now = now.Add(15 * time.Minute)

	evicted := r.Sweep()
	if len(evicted) != 1 || evicted[0] != "idle" {
		t.Fatalf("expected only idle workspace evicted, got %v", evicted)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 workspace left, got %d", r.Len())
	}
}

func TestRegistryEvictClosesWorkspace(t *testing.T) {
	t.Parallel()

	r := NewRegistry(assistant.NewEchoReplier(0), time.Hour)
	m := r.Get("user-1")

	if !r.Evict("user-1") {
		t.Fatal("expected eviction")
	}
	if r.Evict("user-1") {
		t.Fatal("second eviction should report nothing evicted")
	}
	if _, err := m.Create(); err == nil {
		t.Fatal("evicted workspace still accepts work")
	}
	if r.Get("user-1") == m {
		t.Fatal("expected a fresh workspace after eviction")
	}
}

func TestSweeperCallsEvictCallback(t *testing.T) {
	t.Parallel()

	r := NewRegistry(assistant.NewEchoReplier(0), time.Nanosecond)
	defer r.Close()
	r.Get("user-1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evicted := make(chan string, 1)
	r.StartSweeper(ctx, 10*time.Millisecond, func(userID string) {
		select {
		case evicted <- userID:
		default:
		}
	})

	select {
	case got := <-evicted:
		if got != "user-1" {
			t.Fatalf("unexpected evicted user %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never evicted the idle workspace")
	}
}
