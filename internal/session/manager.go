package session

import (
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/ecosync/internal/observability"
	"github.com/i474232898/ecosync/internal/viz"
	"github.com/i474232898/ecosync/internal/weather"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// DefaultZoom is the zoom of a new session.
const DefaultZoom = 6.0

// DefaultCenter is where a new session starts (Lahore).
var DefaultCenter = weather.Coordinate{Lat: 31.5497, Lon: 74.3436}

// DefaultParameters are selected in a new session.
var DefaultParameters = []weather.ParameterCode{weather.ParamTemperature, weather.ParamHumidity, weather.ParamAerosol}

// Config holds the dependencies shared by all sessions.
type Config struct {
	Fetcher      Fetcher
	Resolver     Resolver
	Sampler      *viz.Sampler
	Metrics      *observability.Collector
	FetchTimeout time.Duration
	Now          func() time.Time
}

// Manager tracks live sessions by id.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*Controller
}

// NewManager creates an empty manager.
func NewManager(cfg Config) *Manager {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sampler == nil {
		cfg.Sampler = viz.NewSampler(nil)
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Controller),
	}
}

// Create starts a session from the defaults overlaid with initial and
// schedules its first fetch.
func (m *Manager) Create(ctx context.Context, initial Change) (*Controller, error) {
	c := &Controller{
		id:       uuid.NewString(),
		fetcher:  m.cfg.Fetcher,
		resolver: m.cfg.Resolver,
		sampler:  m.cfg.Sampler,
		metrics:  m.cfg.Metrics,
		timeout:  m.cfg.FetchTimeout,
		now:      m.cfg.Now,
		state: State{
			Center:     DefaultCenter,
			Zoom:       DefaultZoom,
			City:       "Lahore",
			Parameters: slices.Clone(DefaultParameters),
			Layers:     viz.DefaultToggles(),
		},
	}

	if err := c.prepare(ctx, &initial); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.applyLocked(initial, true)
	center := c.state.Center
	c.mu.Unlock()

	m.mu.Lock()
	m.sessions[c.id] = c
	m.mu.Unlock()

	log.Printf("INFO: session %s created at (%.4f, %.4f)", c.id, center.Lat, center.Lon)
	return c, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Delete forgets the session. In-flight fetches settle into the detached controller.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// EvictIdle drops sessions untouched for longer than ttl and returns how many were dropped.
func (m *Manager) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := m.cfg.Now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, c := range m.sessions {
		if c.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Printf("INFO: evicted %d idle sessions", evicted)
	}
	return evicted
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Wait blocks until all fetches of live sessions have settled.
func (m *Manager) Wait() {
	m.mu.RLock()
	live := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		live = append(live, c)
	}
	m.mu.RUnlock()

	for _, c := range live {
		c.Wait()
	}
}
