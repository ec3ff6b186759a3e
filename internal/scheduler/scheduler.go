package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// DefaultInterval is used when no positive interval is configured.
const DefaultInterval = 5 * time.Minute

// HistoryPruner drops query history older than a cutoff.
type HistoryPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionEvictor drops sessions idle for longer than ttl.
type SessionEvictor interface {
	EvictIdle(ttl time.Duration) int
}

// Config controls housekeeping. Zero retention values disable the matching task.
type Config struct {
	Interval   time.Duration
	HistoryAge time.Duration
	SessionTTL time.Duration
}

// Scheduler periodically prunes query history and evicts idle sessions.
type Scheduler struct {
	scheduler *gocron.Scheduler
	history   HistoryPruner
	sessions  SessionEvictor
	cfg       Config
	now       func() time.Time
}

// New creates a new Scheduler. Either dependency may be nil.
func New(cfg Config, history HistoryPruner, sessions SessionEvictor) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		history:   history,
		sessions:  sessions,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Start schedules the housekeeping job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.cfg.Interval).WaitForSchedule().Do(s.RunOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log.Printf("INFO: scheduler: housekeeping every %s", s.cfg.Interval)
	return nil
}

// RunOnce performs one housekeeping pass.
func (s *Scheduler) RunOnce() {
	if s.history != nil && s.cfg.HistoryAge > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := s.history.Prune(ctx, s.now().Add(-s.cfg.HistoryAge))
		if err != nil {
			log.Printf("ERROR: scheduler: history prune failed: %v", err)
		} else if n > 0 {
			log.Printf("INFO: scheduler: pruned %d query records", n)
		}
	}

	if s.sessions != nil && s.cfg.SessionTTL > 0 {
		if n := s.sessions.EvictIdle(s.cfg.SessionTTL); n > 0 {
			log.Printf("INFO: scheduler: evicted %d idle sessions", n)
		}
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
