package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/i474232898/ecosync/internal/weather"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "queries.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(0, 0),
		"sqlite": sqlite,
	}
}

func TestSaveGetAndList(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	lahore := weather.Coordinate{Lat: 31.5497, Lon: 74.3436}

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			saved, err := s.Save(ctx, QueryRecord{
				Query:      "temperature in Lahore",
				Location:   Location{City: "Lahore", Coordinates: &lahore},
				Parameters: []weather.ParameterCode{weather.ParamTemperature},
				Response:   json.RawMessage(`{"city":"Lahore"}`),
				Series:     weather.NormalizedSeries{weather.ParamTemperature: {{Date: "20250101", Value: 25.3}}},
				Timestamp:  base,
			})
			if err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if saved.ID == "" || saved.UserID != AnonymousUser {
				t.Fatalf("defaults not applied: %+v", saved)
			}

			for i := 1; i <= 3; i++ {
				if _, err := s.Save(ctx, QueryRecord{Query: "later", Timestamp: base.Add(time.Duration(i) * time.Hour)}); err != nil {
					t.Fatalf("Save failed: %v", err)
				}
			}

			got, err := s.Get(ctx, saved.ID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Location.Coordinates == nil || *got.Location.Coordinates != lahore {
				t.Fatalf("coordinates not round-tripped: %+v", got.Location)
			}
			if v, ok := got.Series[weather.ParamTemperature].At("20250101"); !ok || v != 25.3 {
				t.Fatalf("series not round-tripped: %+v", got.Series)
			}
			if !got.Timestamp.Equal(base) {
				t.Fatalf("timestamp %v, want %v", got.Timestamp, base)
			}

			list, err := s.List(ctx, 2)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(list) != 2 || !list[0].Timestamp.Equal(base.Add(3*time.Hour)) || !list[1].Timestamp.Equal(base.Add(2*time.Hour)) {
				t.Fatalf("expected newest two first, got %+v", list)
			}

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSaveRequiresQuery(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(context.Background(), QueryRecord{Query: "  "})
			var vErr *weather.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestPrune(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 4; i++ {
				if _, err := s.Save(ctx, QueryRecord{Query: "q", Timestamp: base.Add(time.Duration(i) * 24 * time.Hour)}); err != nil {
					t.Fatalf("Save failed: %v", err)
				}
			}

			n, err := s.Prune(ctx, base.Add(48*time.Hour))
			if err != nil {
				t.Fatalf("Prune failed: %v", err)
			}
			if n != 2 {
				t.Fatalf("expected 2 pruned, got %d", n)
			}
			list, _ := s.List(ctx, 0)
			if len(list) != 2 {
				t.Fatalf("expected 2 remaining, got %d", len(list))
			}
		})
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(3, 48*time.Hour)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = s.Save(ctx, QueryRecord{Query: "too old", Timestamp: now.Add(-72 * time.Hour)})
	for i := 0; i < 4; i++ {
		_, _ = s.Save(ctx, QueryRecord{Query: "recent", Timestamp: now.Add(-time.Duration(i) * time.Hour)})
	}

	list, _ := s.List(ctx, 0)
	if len(list) != 3 {
		t.Fatalf("expected 3 records after count retention, got %d", len(list))
	}
	for _, rec := range list {
		if rec.Query != "recent" {
			t.Fatalf("stale record survived: %+v", rec)
		}
	}
	if !list[0].Timestamp.Equal(now) {
		t.Fatalf("expected newest first, got %v", list[0].Timestamp)
	}
}
