package weather

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubGeocoder struct {
	coord Coordinate
	err   error
	calls int
}

func (s *stubGeocoder) Geocode(context.Context, string, string) (Coordinate, error) {
	s.calls++
	return s.coord, s.err
}

func TestCityResolverCatalogFirst(t *testing.T) {
	geo := &stubGeocoder{coord: Coordinate{1, 1}}
	r := NewCityResolver(DefaultCities(), geo)

	coord, err := r.Resolve(context.Background(), "  KARACHI ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coord != (Coordinate{24.8607, 67.0011}) {
		t.Fatalf("unexpected coordinate %v", coord)
	}
	if geo.calls != 0 {
		t.Fatal("catalog hit must not geocode")
	}
}

func TestCityResolverFallsBackToGeocoder(t *testing.T) {
	geo := &stubGeocoder{coord: Coordinate{-1.2921, 36.8219}}
	r := NewCityResolver(DefaultCities(), geo)

	coord, err := r.Resolve(context.Background(), "Nairobi")
	if err != nil || coord != geo.coord {
		t.Fatalf("expected geocoded coordinate, got %v (%v)", coord, err)
	}

	geo.err = errors.New("quota exceeded")
	_, err = r.Resolve(context.Background(), "Nairobi")
	var upErr *UpstreamError
	if !errors.As(err, &upErr) || upErr.Source != "geocoder" {
		t.Fatalf("expected geocoder upstream error, got %v", err)
	}
}

func TestCityResolverUnknownWithoutGeocoder(t *testing.T) {
	r := NewCityResolver(DefaultCities(), nil)

	for _, name := range []string{"Atlantis", "  "} {
		_, err := r.Resolve(context.Background(), name)
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "city" {
			t.Fatalf("%q: expected city validation error, got %v", name, err)
		}
	}
}

func TestLoadCityOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cities.yaml")
	content := "cities:\n  Nairobi: {lat: -1.2921, lon: 36.8219, country: Kenya}\n  lahore: {lat: 31.55, lon: 74.34, country: Pakistan}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	overlay, err := LoadCityOverlay(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	catalog := DefaultCities()
	catalog.Merge(overlay)

	if city, ok := catalog.Lookup("nairobi"); !ok || city.Country != "Kenya" {
		t.Fatalf("expected nairobi from overlay, got %+v", city)
	}
	if city, _ := catalog.Lookup("Lahore"); city.Lat != 31.55 {
		t.Fatalf("expected overlay to replace lahore, got %+v", city)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("cities:\n  nowhere: {lat: 120, lon: 0}\n"), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	if _, err := LoadCityOverlay(bad); err == nil {
		t.Fatal("expected error for out of range city")
	}
}
