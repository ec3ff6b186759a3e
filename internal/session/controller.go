package session

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/i474232898/ecosync/internal/ai"
	"github.com/i474232898/ecosync/internal/observability"
	"github.com/i474232898/ecosync/internal/viz"
	"github.com/i474232898/ecosync/internal/weather"
)

// DefaultFetchTimeout bounds a session fetch so a hung upstream cannot hold
// the loading flag forever.
const DefaultFetchTimeout = 45 * time.Second

// Fetcher is the part of the gateway a session uses.
type Fetcher interface {
	FetchPoint(ctx context.Context, coord weather.Coordinate, params []weather.ParameterCode, rng *weather.DateRange) (weather.PointResult, error)
}

// Resolver turns a city name into a coordinate.
type Resolver interface {
	Resolve(ctx context.Context, name string) (weather.Coordinate, error)
}

// State is the view owned by a Controller.
type State struct {
	Center     weather.Coordinate       `json:"center"`
	Zoom       float64                  `json:"zoom"`
	City       string                   `json:"city,omitempty"`
	Parameters []weather.ParameterCode  `json:"parameters"`
	Layers     viz.LayerToggles         `json:"layers"`
	Series     weather.NormalizedSeries `json:"series"`
	Grid       viz.SampleGrid           `json:"-"`
	LayerSpecs []viz.LayerSpec          `json:"layerSpecs"`
	Loading    bool                     `json:"loading"`
	Generation uint64                   `json:"generation"`
	Notice     string                   `json:"notice,omitempty"`
	UpdatedAt  time.Time                `json:"updatedAt"`
}

// Change is a user edit. Nil or empty fields are left alone. City is
// resolved to a coordinate unless Center is also given.
type Change struct {
	Center     *weather.Coordinate
	City       string
	Zoom       *float64
	Parameters []weather.ParameterCode
	Layers     viz.LayerToggles
}

// Controller reconciles changes to one session with fetches, sampling and
// layer composition. Location or parameter changes start exactly one fetch;
// only the newest fetch may update state.
type Controller struct {
	id       string
	fetcher  Fetcher
	resolver Resolver
	sampler  *viz.Sampler
	metrics  *observability.Collector
	timeout  time.Duration
	now      func() time.Time

	generation atomic.Uint64
	inflight   sync.WaitGroup

	mu         sync.Mutex
	state      State
	lastActive time.Time
}

// ID returns the session id.
func (c *Controller) ID() string {
	return c.id
}

// Apply validates and applies change, returning the generation that now owns
// the session data. It returns before any fetch completes.
func (c *Controller) Apply(ctx context.Context, change Change) (uint64, error) {
	if err := c.prepare(ctx, &change); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(change, false), nil
}

// prepare resolves a city-only location and validates the change.
func (c *Controller) prepare(ctx context.Context, change *Change) error {
	if change.Center == nil && change.City != "" {
		if c.resolver == nil {
			return &weather.ValidationError{Field: "city", Reason: "city lookup is not available"}
		}
		coord, err := c.resolver.Resolve(ctx, change.City)
		if err != nil {
			return err
		}
		change.Center = &coord
	}
	if change.Center != nil {
		if err := change.Center.Validate(); err != nil {
			return err
		}
	}
	if change.Parameters != nil {
		if err := weather.ValidateParameters(change.Parameters); err != nil {
			return err
		}
	}
	return nil
}

// ApplyInterpretation moves the session to a resolved query result. An
// unresolved interpretation only posts its message as a notice.
func (c *Controller) ApplyInterpretation(ctx context.Context, in *ai.Interpretation) (uint64, error) {
	if !in.Resolved() || in.Visualization == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.state.Notice = in.Message
		c.touchLocked()
		return c.generation.Load(), nil
	}

	zoom := float64(in.Visualization.Zoom)
	change := Change{
		Center:     in.Intent.Coordinates,
		City:       in.Intent.City,
		Zoom:       &zoom,
		Parameters: in.Intent.Parameters,
	}
	if len(in.Intent.Layers) > 0 {
		layers, err := viz.ParseToggles(in.Intent.Layers)
		if err != nil {
			log.Printf("WARN: session %s ignoring layer hint: %v", c.id, err)
		} else {
			change.Layers = layers
		}
	}
	return c.Apply(ctx, change)
}

// Refresh refetches the current location and parameters.
func (c *Controller) Refresh() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(Change{}, true)
}

func (c *Controller) applyLocked(change Change, force bool) uint64 {
	refetch := force
	if change.Center != nil && *change.Center != c.state.Center {
		c.state.Center = *change.Center
		refetch = true
	}
	if change.Center != nil {
		c.state.City = change.City
	}
	if change.Zoom != nil {
		c.state.Zoom = *change.Zoom
	}
	if change.Parameters != nil && !slices.Equal(change.Parameters, c.state.Parameters) {
		c.state.Parameters = slices.Clone(change.Parameters)
		refetch = true
	}
	relayer := false
	if change.Layers != nil {
		merged := c.state.Layers.Merge(change.Layers)
		relayer = !merged.Equal(c.state.Layers)
		c.state.Layers = merged
	}
	c.touchLocked()

	if refetch {
		c.state.Series = nil
		c.state.Grid = nil
		c.state.Notice = ""
		c.state.LayerSpecs = viz.Compose(nil, c.state.Layers, c.state.Center)
		return c.startFetchLocked()
	}
	if relayer {
		c.state.LayerSpecs = viz.Compose(c.state.Grid, c.state.Layers, c.state.Center)
	}
	return c.generation.Load()
}

type fetchRequest struct {
	generation uint64
	center     weather.Coordinate
	parameters []weather.ParameterCode
}

func (c *Controller) startFetchLocked() uint64 {
	gen := c.generation.Inc()
	c.state.Generation = gen
	c.state.Loading = true

	req := fetchRequest{
		generation: gen,
		center:     c.state.Center,
		parameters: slices.Clone(c.state.Parameters),
	}
	c.inflight.Add(1)
	go c.fetch(req)
	return gen
}

func (c *Controller) fetch(req fetchRequest) {
	defer c.inflight.Done()

	var (
		result weather.PointResult
		err    error
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
		c.settle(req, result, err)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	result, err = c.fetcher.FetchPoint(ctx, req.center, req.parameters, nil)
}

func (c *Controller) settle(req fetchRequest, result weather.PointResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if req.generation != c.generation.Load() {
		log.Printf("DEBUG: session %s dropping superseded fetch %d", c.id, req.generation)
		c.metrics.IncSessionFetch(observability.OutcomeSuperseded)
		return
	}

	c.state.Loading = false
	c.state.UpdatedAt = c.now()
	if err != nil {
		log.Printf("WARN: session %s fetch %d failed: %v", c.id, req.generation, err)
		c.state.Notice = fmt.Sprintf("Could not load data for (%.4f, %.4f): %v", req.center.Lat, req.center.Lon, err)
		c.metrics.IncSessionFetch(observability.OutcomeFailure)
		return
	}

	c.state.Series = result.Series
	if result.Series.Empty() {
		c.state.Notice = fmt.Sprintf("No data available for (%.4f, %.4f) in the selected window", req.center.Lat, req.center.Lon)
	}
	c.state.Grid = c.sampler.SynthesizeFrom(req.center, result.Series, req.parameters[0], viz.SampleOptions{})
	c.state.LayerSpecs = viz.Compose(c.state.Grid, c.state.Layers, req.center)
	c.metrics.IncSessionFetch(observability.OutcomeApplied)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Parameters = slices.Clone(s.Parameters)
	s.Layers = s.Layers.Clone()
	s.LayerSpecs = slices.Clone(s.LayerSpecs)
	return s
}

// Wait blocks until every started fetch has settled.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// LastActive is the time of the latest change.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Controller) touchLocked() {
	c.lastActive = c.now()
	c.state.UpdatedAt = c.lastActive
}
