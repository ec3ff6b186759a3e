package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePruner struct {
	cutoff time.Time
	calls  int
	err    error
}

func (p *fakePruner) Prune(_ context.Context, cutoff time.Time) (int, error) {
	p.calls++
	p.cutoff = cutoff
	return 3, p.err
}

type fakeEvictor struct {
	ttl   time.Duration
	calls int
}

func (e *fakeEvictor) EvictIdle(ttl time.Duration) int {
	e.calls++
	e.ttl = ttl
	return 1
}

func TestRunOnce(t *testing.T) {
	now := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{}
	evictor := &fakeEvictor{}

	s := New(Config{HistoryAge: 720 * time.Hour, SessionTTL: 30 * time.Minute}, pruner, evictor)
	s.now = func() time.Time { return now }
	s.RunOnce()

	if pruner.calls != 1 || !pruner.cutoff.Equal(now.Add(-720*time.Hour)) {
		t.Fatalf("unexpected prune call: %+v", pruner)
	}
	if evictor.calls != 1 || evictor.ttl != 30*time.Minute {
		t.Fatalf("unexpected eviction call: %+v", evictor)
	}
}

func TestRunOnceSkipsDisabledTasks(t *testing.T) {
	pruner := &fakePruner{err: errors.New("disk full")}
	evictor := &fakeEvictor{}

	s := New(Config{HistoryAge: time.Hour}, pruner, evictor)
	s.RunOnce()

	if pruner.calls != 1 {
		t.Fatal("prune should run and tolerate its error")
	}
	if evictor.calls != 0 {
		t.Fatal("eviction is disabled without a TTL")
	}

	New(Config{}, nil, nil).RunOnce()
}

func TestStartStop(t *testing.T) {
	s := New(Config{Interval: time.Hour}, &fakePruner{}, &fakeEvictor{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.Stop()
}
