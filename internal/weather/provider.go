package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/i474232898/ecosync/internal/common"
)

// DateRange is an inclusive YYYYMMDD window.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TrailingDays returns the window ending at now and starting days earlier.
func TrailingDays(now time.Time, days int) DateRange {
	return DateRange{
		Start: common.DateKey(now.Add(-time.Duration(days) * 24 * time.Hour)),
		End:   common.DateKey(now),
	}
}

// Validate checks both keys parse and start does not follow end.
func (r DateRange) Validate() error {
	start, err := common.ParseDateKey(r.Start)
	if err != nil {
		return &ValidationError{Field: "start", Reason: err.Error()}
	}
	end, err := common.ParseDateKey(r.End)
	if err != nil {
		return &ValidationError{Field: "end", Reason: err.Error()}
	}
	if start.After(end) {
		return &ValidationError{Field: "start", Reason: fmt.Sprintf("%s is after end %s", r.Start, r.End)}
	}
	return nil
}

// PointRequest is one daily time-series request for a single coordinate.
type PointRequest struct {
	Coordinate Coordinate
	Parameters []ParameterCode
	Range      DateRange
}

// Provider abstracts an atmospheric data source (NASA POWER, Open-Meteo archive).
// FetchDaily must issue exactly one logical request and return the raw,
// un-normalized series, or an *UpstreamError.
type Provider interface {
	Name() string
	FetchDaily(ctx context.Context, req PointRequest) (TimeSeries, error)
}
