package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/ecosync/internal/observability"
)

const (
	// DefaultRangeDays is the trailing window used when no date range is given.
	DefaultRangeDays = 30
	// EnrichmentRangeDays is the trailing window used to enrich interpreted queries.
	EnrichmentRangeDays = 7
	// DefaultRegionalGridSize yields a 6x6 lattice.
	DefaultRegionalGridSize = 5
	// DefaultRegionalConcurrency caps concurrent regional legs.
	DefaultRegionalConcurrency = 8
)

// PointResult is a normalized point fetch together with what was requested.
type PointResult struct {
	Coordinate Coordinate       `json:"coordinates"`
	Parameters []ParameterCode  `json:"parameters"`
	Range      DateRange        `json:"dateRange"`
	Series     NormalizedSeries `json:"series"`
}

// RegionalPoint is one successful lattice leg.
type RegionalPoint struct {
	Coordinate Coordinate       `json:"coordinates"`
	Series     NormalizedSeries `json:"data"`
}

// RegionalResult holds the successful legs of a regional fetch in lattice order.
// Failed legs are absent; Requested minus len(Points) legs failed.
type RegionalResult struct {
	Bounds    Bounds          `json:"region"`
	GridSize  int             `json:"gridSize"`
	Range     DateRange       `json:"dateRange"`
	Requested int             `json:"requestedPoints"`
	Points    []RegionalPoint `json:"points"`
}

// Complete reports whether every lattice leg succeeded.
func (r RegionalResult) Complete() bool {
	return len(r.Points) == r.Requested
}

// Gateway fetches and normalizes point and regional series from a Provider.
type Gateway struct {
	provider    Provider
	metrics     *observability.Collector
	now         func() time.Time
	gridSize    int
	concurrency int
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithMetrics reports upstream calls and regional legs to c.
func WithMetrics(c *observability.Collector) GatewayOption {
	return func(g *Gateway) { g.metrics = c }
}

// WithClock overrides the clock used for default date ranges.
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) { g.now = now }
}

// WithRegionalGrid sets the lattice divisions and the leg concurrency limit.
func WithRegionalGrid(gridSize, concurrency int) GatewayOption {
	return func(g *Gateway) {
		if gridSize > 0 {
			g.gridSize = gridSize
		}
		if concurrency > 0 {
			g.concurrency = concurrency
		}
	}
}

// NewGateway creates a Gateway over the given provider.
func NewGateway(provider Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider:    provider,
		now:         time.Now,
		gridSize:    DefaultRegionalGridSize,
		concurrency: DefaultRegionalConcurrency,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ProviderName returns the name of the underlying provider.
func (g *Gateway) ProviderName() string {
	return g.provider.Name()
}

// FetchPoint fetches the daily series for one coordinate. A nil rng means the
// trailing DefaultRangeDays. Exactly one provider call is made.
func (g *Gateway) FetchPoint(ctx context.Context, coord Coordinate, params []ParameterCode, rng *DateRange) (PointResult, error) {
	if err := coord.Validate(); err != nil {
		return PointResult{}, err
	}
	if err := ValidateParameters(params); err != nil {
		return PointResult{}, err
	}

	window := g.TrailingRange(DefaultRangeDays)
	if rng != nil {
		if err := rng.Validate(); err != nil {
			return PointResult{}, err
		}
		window = *rng
	}

	series, err := g.fetch(ctx, PointRequest{Coordinate: coord, Parameters: params, Range: window})
	if err != nil {
		return PointResult{}, err
	}

	return PointResult{
		Coordinate: coord,
		Parameters: params,
		Range:      window,
		Series:     series,
	}, nil
}

// FetchRecent fetches the trailing number of days ending now.
func (g *Gateway) FetchRecent(ctx context.Context, coord Coordinate, params []ParameterCode, days int) (PointResult, error) {
	window := g.TrailingRange(days)
	return g.FetchPoint(ctx, coord, params, &window)
}

// TrailingRange is the window of the given number of days ending now.
func (g *Gateway) TrailingRange(days int) DateRange {
	return TrailingDays(g.now(), days)
}

// FetchRegional fetches every point of a (gridSize+1)x(gridSize+1) lattice
// spanning b concurrently. Failed legs are logged and dropped, never retried,
// and never fail the call.
func (g *Gateway) FetchRegional(ctx context.Context, b Bounds, params []ParameterCode) (RegionalResult, error) {
	if err := b.Validate(); err != nil {
		return RegionalResult{}, err
	}
	if err := ValidateParameters(params); err != nil {
		return RegionalResult{}, err
	}

	window := g.TrailingRange(DefaultRangeDays)
	lattice := Lattice(b, g.gridSize)
	legs := make([]*RegionalPoint, len(lattice))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, coord := range lattice {
		eg.Go(func() error {
			series, err := g.fetch(egCtx, PointRequest{Coordinate: coord, Parameters: params, Range: window})
			if err != nil {
				// Leg isolation: a failed point is dropped, the join continues.
				log.Printf("WARN: regional leg (%.4f, %.4f) dropped: %v", coord.Lat, coord.Lon, err)
				return nil
			}
			legs[i] = &RegionalPoint{Coordinate: coord, Series: series}
			return nil
		})
	}
	_ = eg.Wait()

	points := make([]RegionalPoint, 0, len(legs))
	for _, leg := range legs {
		if leg != nil {
			points = append(points, *leg)
		}
	}
	g.metrics.AddRegionalLegs(len(points), len(lattice)-len(points))

	if len(points) < len(lattice) {
		log.Printf("INFO: regional fetch returned %d of %d points", len(points), len(lattice))
	}

	return RegionalResult{
		Bounds:    b,
		GridSize:  g.gridSize,
		Range:     window,
		Requested: len(lattice),
		Points:    points,
	}, nil
}

// Lattice enumerates the inclusive (gridSize+1)^2 grid over b, latitude-major.
func Lattice(b Bounds, gridSize int) []Coordinate {
	if gridSize <= 0 {
		gridSize = DefaultRegionalGridSize
	}
	latStep := (b.LatMax - b.LatMin) / float64(gridSize)
	lonStep := (b.LonMax - b.LonMin) / float64(gridSize)

	out := make([]Coordinate, 0, (gridSize+1)*(gridSize+1))
	for i := 0; i <= gridSize; i++ {
		for j := 0; j <= gridSize; j++ {
			out = append(out, Coordinate{
				Lat: b.LatMin + float64(i)*latStep,
				Lon: b.LonMin + float64(j)*lonStep,
			})
		}
	}
	return out
}

func (g *Gateway) fetch(ctx context.Context, req PointRequest) (NormalizedSeries, error) {
	start := time.Now()
	raw, err := g.provider.FetchDaily(ctx, req)
	g.metrics.ObserveUpstream(g.provider.Name(), time.Since(start), err)
	if err != nil {
		var upErr *UpstreamError
		if errors.As(err, &upErr) {
			return nil, err
		}
		return nil, &UpstreamError{Source: g.provider.Name(), Err: fmt.Errorf("fetch daily series: %w", err)}
	}
	return Normalize(raw), nil
}
