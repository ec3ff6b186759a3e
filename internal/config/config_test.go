package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "ATMOS_PROVIDER", "HTTP_TIMEOUT", "QUERY_STORE", "CITIES_FILE", "STORE_MAX_AGE", "REGIONAL_GRID_SIZE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "5000" || cfg.Provider != ProviderPower || cfg.QueryStore != StoreMemory {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.HTTPTimeout != 30*time.Second || cfg.StoreMaxAge != 720*time.Hour || cfg.RegionalGridSize != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, ok := cfg.Cities.Lookup("Lahore"); !ok {
		t.Fatal("built-in cities missing")
	}
}

func TestLoadCityOverlay(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "cities.yaml")
	overlay := "cities:\n  Reykjavik: {lat: 64.1466, lon: -21.9426, country: Iceland}\n"
	if err := os.WriteFile(path, []byte(overlay), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CITIES_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	city, ok := cfg.Cities.Lookup("reykjavik")
	if !ok || city.Country != "Iceland" {
		t.Fatalf("overlay city missing: %+v", city)
	}
	if _, ok := cfg.Cities.Lookup("tokyo"); !ok {
		t.Fatal("overlay must extend, not replace, the built-in table")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"ATMOS_PROVIDER": "openweather",
		"QUERY_STORE":    "mongo",
		"HTTP_TIMEOUT":   "soon",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}
