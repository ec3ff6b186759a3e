package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/ecosync/internal/weather"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestManagerLifecycle(t *testing.T) {
	f := newGatedFetcher()
	m := newTestManager(f)

	c, err := m.Create(context.Background(), Change{Center: &karachi})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.next(t); got.coord != karachi {
		t.Fatalf("initial fetch should use the requested center, got %+v", got.coord)
	}

	got, err := m.Get(c.ID())
	if err != nil || got != c {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if err := m.Delete(c.ID()); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := m.Get(c.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.Delete(c.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestManagerCreateRejectsInvalidChange(t *testing.T) {
	f := newGatedFetcher()
	m := newTestManager(f)

	_, err := m.Create(context.Background(), Change{Parameters: []weather.ParameterCode{"NOPE"}})
	var vErr *weather.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if m.Len() != 0 || f.pending() != 0 {
		t.Fatal("invalid session must not be registered or fetched")
	}
}

func TestEvictIdle(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	f := newGatedFetcher()
	m := newTestManager(f, func(cfg *Config) { cfg.Now = clock.Now })

	idle, _ := m.Create(context.Background(), Change{})
	f.next(t).reply <- reply{}
	clock.Advance(20 * time.Minute)

	active, _ := m.Create(context.Background(), Change{})
	f.next(t).reply <- reply{}
	m.Wait()

	clock.Advance(15 * time.Minute)
	if n := m.EvictIdle(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if _, err := m.Get(idle.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatal("idle session should be gone")
	}
	if _, err := m.Get(active.ID()); err != nil {
		t.Fatal("active session should remain")
	}
}
