package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/i474232898/ecosync/internal/observability"
	"github.com/i474232898/ecosync/internal/weather"
)

// VisualizationZoom is the map zoom suggested for a resolved query.
const VisualizationZoom = 10

const unresolvedMessage = "Could not identify specific location or parameters"

// PointFetcher is the part of the gateway used for enrichment.
type PointFetcher interface {
	FetchRecent(ctx context.Context, coord weather.Coordinate, params []weather.ParameterCode, days int) (weather.PointResult, error)
}

// Visualization is the view-state hint for a resolved query.
type Visualization struct {
	Center     [2]float64              `json:"center"`
	Zoom       int                     `json:"zoom"`
	Parameters []weather.ParameterCode `json:"parameters"`
}

// Interpretation is the outcome of one query. Series and Visualization are
// only set for a resolved intent; Series stays nil when enrichment failed.
type Interpretation struct {
	Query         string
	Intent        Intent
	Message       string
	Enriched      bool
	Series        weather.NormalizedSeries
	Visualization *Visualization
}

// Resolved reports whether the intent carried a location and parameters.
func (i *Interpretation) Resolved() bool {
	return i.Intent.Resolved()
}

// Interpreter turns free-text queries into intents.
type Interpreter struct {
	model   Model
	fetcher PointFetcher
	cities  weather.CityCatalog
	now     func() time.Time
	metrics *observability.Collector
}

// Option customizes an Interpreter.
type Option func(*Interpreter)

// WithClock overrides the time stated in prompts.
func WithClock(now func() time.Time) Option {
	return func(in *Interpreter) { in.now = now }
}

// WithMetrics reports model calls and interpretation outcomes to c.
func WithMetrics(c *observability.Collector) Option {
	return func(in *Interpreter) { in.metrics = c }
}

// NewInterpreter creates an Interpreter. model may be nil, in which case every
// query fails with ErrModelUnavailable.
func NewInterpreter(model Model, fetcher PointFetcher, cities weather.CityCatalog, opts ...Option) *Interpreter {
	in := &Interpreter{
		model:   model,
		fetcher: fetcher,
		cities:  cities,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Interpret resolves query into an Intent and, when it is resolved, enriches
// the summary with the latest figures from a trailing-week fetch.
func (in *Interpreter) Interpret(ctx context.Context, query string) (*Interpretation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &weather.ValidationError{Field: "query", Reason: "query is required"}
	}

	raw, err := in.generate(ctx, query)
	if err != nil {
		in.metrics.IncInterpretation(observability.OutcomeFailure)
		return nil, err
	}

	intent, err := parseIntent(raw)
	if err != nil {
		log.Printf("ERROR: failed to parse model response: %v", err)
		in.metrics.IncInterpretation(observability.OutcomeFailure)
		return nil, err
	}

	out := &Interpretation{Query: query, Intent: intent}
	if !intent.Resolved() {
		out.Message = unresolvedMessage
		in.metrics.IncInterpretation(observability.OutcomeDegraded)
		return out, nil
	}

	out.Visualization = &Visualization{
		Center:     intent.Coordinates.LonLat(),
		Zoom:       VisualizationZoom,
		Parameters: intent.Parameters,
	}

	result, err := in.fetcher.FetchRecent(ctx, *intent.Coordinates, intent.Parameters, weather.EnrichmentRangeDays)
	if err != nil {
		log.Printf("WARN: enrichment fetch for %q failed; keeping model summary: %v", intent.City, err)
		in.metrics.IncInterpretation(observability.OutcomeSuccess)
		return out, nil
	}

	out.Series = result.Series
	out.Intent.Summary += "\n\n" + LatestFigures(result.Series, intent.Parameters)
	out.Enriched = true
	in.metrics.IncInterpretation(observability.OutcomeSuccess)
	return out, nil
}

func (in *Interpreter) generate(ctx context.Context, query string) (string, error) {
	if in.model == nil {
		return "", &weather.UpstreamError{Source: "model", Err: fmt.Errorf("%w: no model configured", ErrModelUnavailable)}
	}

	prompt, err := buildPrompt(query, in.cities, in.now())
	if err != nil {
		return "", err
	}

	start := time.Now()
	raw, err := in.model.Generate(ctx, prompt)
	in.metrics.ObserveUpstream("model", time.Since(start), err)
	if err != nil {
		log.Printf("ERROR: model request failed: %v", err)
		if errors.Is(err, ErrModelUnavailable) {
			return "", &weather.UpstreamError{Source: "model", Err: err}
		}
		return "", &weather.UpstreamError{Source: "model", Err: fmt.Errorf("%w: %v", ErrModelUnavailable, err)}
	}
	return raw, nil
}

// LatestFigures renders "Latest data (<date>): T2M: 25.3°C, RH2M: 61.20" using
// the newest date of the first parameter that has data. When no parameter has
// data the line is "Latest data: T2M: No data, ...".
func LatestFigures(series weather.NormalizedSeries, params []weather.ParameterCode) string {
	var date string
	for _, p := range params {
		if o, ok := series.Latest(p); ok {
			date = o.Date
			break
		}
	}

	figures := make([]string, 0, len(params))
	for _, p := range params {
		figures = append(figures, FormatFigure(p, series[p], date))
	}
	if date == "" {
		return "Latest data: " + strings.Join(figures, ", ")
	}
	return fmt.Sprintf("Latest data (%s): %s", date, strings.Join(figures, ", "))
}

// FormatFigure renders one parameter's value on date.
func FormatFigure(p weather.ParameterCode, s weather.Series, date string) string {
	v, ok := s.At(date)
	if !ok || weather.IsFill(v) {
		return fmt.Sprintf("%s: No data", p)
	}
	if p.IsTemperature() {
		return fmt.Sprintf("%s: %.1f°C", p, v)
	}
	return fmt.Sprintf("%s: %.2f", p, v)
}
