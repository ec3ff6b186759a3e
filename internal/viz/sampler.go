package viz

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/i474232898/ecosync/internal/weather"
)

const (
	// DefaultGridSize gives a 20x20 sample grid.
	DefaultGridSize = 20
	// DefaultSpread is the side of the sampled square, in degrees.
	DefaultSpread = 2.0
	// valueJitter is the full width of the value draw as a fraction of the base;
	// centred on the base it yields +/-10%.
	valueJitter = 0.2
)

// SamplePoint is a synthetic sample: a randomized perturbation of a real
// center carrying a jittered copy of one measured value. It is illustrative,
// not a measurement.
type SamplePoint struct {
	Position  weather.Coordinate    `json:"position"`
	Value     float64               `json:"value"`
	Weight    float64               `json:"weight"`
	Parameter weather.ParameterCode `json:"parameter"`
	Date      string                `json:"date"`
}

// SampleGrid is a fixed-size set of sample points sharing parameter and date.
type SampleGrid []SamplePoint

// SampleOptions shapes a grid. Zero fields take the defaults.
type SampleOptions struct {
	GridSize int
	Spread   float64
}

func (o SampleOptions) withDefaults() SampleOptions {
	if o.GridSize <= 0 {
		o.GridSize = DefaultGridSize
	}
	if o.Spread <= 0 {
		o.Spread = DefaultSpread
	}
	return o
}

// Sampler synthesizes sample grids. It is safe for concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSampler creates a sampler drawing from src, or from a time-seeded PCG when src is nil.
func NewSampler(src rand.Source) *Sampler {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>32|1)
	}
	return &Sampler{rng: rand.New(src)}
}

// Synthesize returns exactly GridSize^2 points. Each axis of each position is
// drawn uniformly within Spread/2 of center and each value within 10% of base.
// Positions are clamped to valid latitude and longitude.
func (s *Sampler) Synthesize(center weather.Coordinate, base float64, param weather.ParameterCode, date string, opts SampleOptions) SampleGrid {
	opts = opts.withDefaults()
	n := opts.GridSize * opts.GridSize

	s.mu.Lock()
	defer s.mu.Unlock()

	grid := make(SampleGrid, 0, n)
	for i := 0; i < n; i++ {
		lat := center.Lat + (s.rng.Float64()-0.5)*opts.Spread
		lon := center.Lon + (s.rng.Float64()-0.5)*opts.Spread
		value := base + (s.rng.Float64()-0.5)*base*valueJitter

		grid = append(grid, SamplePoint{
			Position:  weather.Coordinate{Lat: clamp(lat, -90, 90), Lon: clamp(lon, -180, 180)},
			Value:     value,
			Weight:    math.Abs(value),
			Parameter: param,
			Date:      date,
		})
	}
	return grid
}

// SynthesizeFrom builds a grid from the latest valid sample of param in
// series. No data yields an empty grid.
func (s *Sampler) SynthesizeFrom(center weather.Coordinate, series weather.NormalizedSeries, param weather.ParameterCode, opts SampleOptions) SampleGrid {
	base, date, ok := BaseValue(series, param)
	if !ok {
		return SampleGrid{}
	}
	return s.Synthesize(center, base, param, date, opts)
}

// BaseValue returns the latest valid value of param and its date.
func BaseValue(series weather.NormalizedSeries, param weather.ParameterCode) (float64, string, bool) {
	o, ok := series.Latest(param)
	if !ok || weather.IsFill(o.Value) {
		return 0, "", false
	}
	return o.Value, o.Date, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
