package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/ecosync/internal/weather"
)

// ErrNotFound is returned when no query record has the requested id.
var ErrNotFound = errors.New("query record not found")

// MaxListLimit caps how many records List returns.
const MaxListLimit = 50

// AnonymousUser is recorded when a query carries no user id.
const AnonymousUser = "anonymous"

// Location is where a query resolved to, if anywhere.
type Location struct {
	City        string              `json:"city,omitempty"`
	Coordinates *weather.Coordinate `json:"coordinates,omitempty"`
}

// QueryRecord is one entry of the query history.
type QueryRecord struct {
	ID         string                   `json:"id"`
	UserID     string                   `json:"userId"`
	Query      string                   `json:"query"`
	Location   Location                 `json:"location"`
	Parameters []weather.ParameterCode  `json:"parameters"`
	Response   json.RawMessage          `json:"response,omitempty"`
	Series     weather.NormalizedSeries `json:"nasaData,omitempty"`
	Timestamp  time.Time                `json:"timestamp"`
}

// Store persists query history.
type Store interface {
	Save(ctx context.Context, rec QueryRecord) (QueryRecord, error)
	Get(ctx context.Context, id string) (QueryRecord, error)
	// List returns up to limit records, newest first. limit <= 0 or above
	// MaxListLimit means MaxListLimit.
	List(ctx context.Context, limit int) ([]QueryRecord, error)
	// Prune deletes records older than cutoff and returns how many went.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
	Close() error
}

// prepare fills defaults and rejects records without query text.
func prepare(rec QueryRecord, now time.Time) (QueryRecord, error) {
	rec.Query = strings.TrimSpace(rec.Query)
	if rec.Query == "" {
		return QueryRecord{}, &weather.ValidationError{Field: "query", Reason: "query is required"}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.UserID == "" {
		rec.UserID = AnonymousUser
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
