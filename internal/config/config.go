package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/ecosync/internal/weather"
)

// Provider names accepted by ATMOS_PROVIDER.
const (
	ProviderPower     = "power"
	ProviderOpenMeteo = "openmeteo"
)

// Query store backends accepted by QUERY_STORE.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type AppConfig struct {
	Port string

	GeminiAPIKey string
	GeminiModel  string

	// Atmospheric data provider.
	Provider           string
	PowerBaseURL       string
	OpenMeteoBaseURL   string
	HTTPTimeout        time.Duration
	ProviderMaxRetries int

	// Regional lattice.
	RegionalGridSize    int
	RegionalConcurrency int

	// Sessions.
	SessionFetchTimeout time.Duration
	SessionIdleTTL      time.Duration

	// Housekeeping.
	HousekeepingInterval time.Duration

	// Query history.
	QueryStore      string
	QueryDBPath     string
	StoreMaxHistory int           // max number of records kept (0 = unlimited)
	StoreMaxAge     time.Duration // max age of records (0 = unlimited)

	// City lookup.
	Cities         weather.CityCatalog
	GeocoderAPIKey string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "5000")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getenvDefault("GEMINI_MODEL", "gemini-2.0-flash")

	cfg.Provider = strings.ToLower(getenvDefault("ATMOS_PROVIDER", ProviderPower))
	if cfg.Provider != ProviderPower && cfg.Provider != ProviderOpenMeteo {
		return nil, fmt.Errorf("invalid ATMOS_PROVIDER %q: use %s or %s", cfg.Provider, ProviderPower, ProviderOpenMeteo)
	}
	cfg.PowerBaseURL = os.Getenv("POWER_BASE_URL")
	cfg.OpenMeteoBaseURL = os.Getenv("OPENMETEO_BASE_URL")
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	cfg.ProviderMaxRetries = getenvInt("PROVIDER_MAX_RETRIES", 0)

	cfg.RegionalGridSize = getenvInt("REGIONAL_GRID_SIZE", weather.DefaultRegionalGridSize)
	cfg.RegionalConcurrency = getenvInt("REGIONAL_CONCURRENCY", weather.DefaultRegionalConcurrency)

	if cfg.SessionFetchTimeout, err = getenvDuration("SESSION_FETCH_TIMEOUT", "45s"); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = getenvDuration("SESSION_IDLE_TTL", "30m"); err != nil {
		return nil, err
	}
	if cfg.HousekeepingInterval, err = getenvDuration("HOUSEKEEPING_INTERVAL", "5m"); err != nil {
		return nil, err
	}

	cfg.QueryStore = strings.ToLower(getenvDefault("QUERY_STORE", StoreMemory))
	if cfg.QueryStore != StoreMemory && cfg.QueryStore != StoreSQLite {
		return nil, fmt.Errorf("invalid QUERY_STORE %q: use %s or %s", cfg.QueryStore, StoreMemory, StoreSQLite)
	}
	cfg.QueryDBPath = getenvDefault("QUERY_DB_PATH", "ecosync.db")
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 50)
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "720h"); err != nil {
		return nil, err
	}

	cfg.Cities = weather.DefaultCities()
	if path := os.Getenv("CITIES_FILE"); path != "" {
		overlay, err := weather.LoadCityOverlay(path)
		if err != nil {
			return nil, err
		}
		cfg.Cities.Merge(overlay)
		log.Printf("INFO: loaded %d cities from %s", len(overlay), path)
	}
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		log.Printf("WARN: ignoring invalid %s=%q", key, v)
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
