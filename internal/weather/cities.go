package weather

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// City is a known location used to ground interpreted queries.
type City struct {
	Lat     float64 `json:"lat" yaml:"lat"`
	Lon     float64 `json:"lon" yaml:"lon"`
	Country string  `json:"country" yaml:"country"`
}

// Coordinate returns the city's position.
func (c City) Coordinate() Coordinate {
	return Coordinate{Lat: c.Lat, Lon: c.Lon}
}

// CityCatalog maps lower-cased city names to their coordinates.
type CityCatalog map[string]City

// DefaultCities returns the built-in lookup table.
func DefaultCities() CityCatalog {
	return CityCatalog{
		"lahore":      {Lat: 31.5497, Lon: 74.3436, Country: "Pakistan"},
		"karachi":     {Lat: 24.8607, Lon: 67.0011, Country: "Pakistan"},
		"islamabad":   {Lat: 33.6844, Lon: 73.0479, Country: "Pakistan"},
		"new york":    {Lat: 40.7128, Lon: -74.0060, Country: "USA"},
		"london":      {Lat: 51.5074, Lon: -0.1278, Country: "UK"},
		"tokyo":       {Lat: 35.6762, Lon: 139.6503, Country: "Japan"},
		"dubai":       {Lat: 25.2048, Lon: 55.2708, Country: "UAE"},
		"paris":       {Lat: 48.8566, Lon: 2.3522, Country: "France"},
		"beijing":     {Lat: 39.9042, Lon: 116.4074, Country: "China"},
		"delhi":       {Lat: 28.7041, Lon: 77.1025, Country: "India"},
		"los angeles": {Lat: 34.0522, Lon: -118.2437, Country: "USA"},
		"sydney":      {Lat: -33.8688, Lon: 151.2093, Country: "Australia"},
	}
}

// Lookup finds a city by name, ignoring case and surrounding space.
func (c CityCatalog) Lookup(name string) (City, bool) {
	city, ok := c[normalizeCityName(name)]
	return city, ok
}

// Names returns the catalog keys in sorted order.
func (c CityCatalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge adds or replaces entries from other.
func (c CityCatalog) Merge(other CityCatalog) {
	for name, city := range other {
		c[normalizeCityName(name)] = city
	}
}

type cityOverlayFile struct {
	Cities map[string]City `yaml:"cities"`
}

// LoadCityOverlay reads a YAML file of the form
//
//	cities:
//	  karachi: {lat: 24.86, lon: 67.0, country: Pakistan}
func LoadCityOverlay(path string) (CityCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read city file %s: %w", path, err)
	}

	var file cityOverlayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse city file %s: %w", path, err)
	}

	out := make(CityCatalog, len(file.Cities))
	for name, city := range file.Cities {
		if err := city.Coordinate().Validate(); err != nil {
			return nil, fmt.Errorf("city %q: %w", name, err)
		}
		out[normalizeCityName(name)] = city
	}
	return out, nil
}

func normalizeCityName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Geocoder resolves free-form place names to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, city, country string) (Coordinate, error)
}

// CityResolver resolves names from the catalog first, then the geocoder.
type CityResolver struct {
	catalog  CityCatalog
	geocoder Geocoder
}

// NewCityResolver creates a resolver; geocoder may be nil.
func NewCityResolver(catalog CityCatalog, geocoder Geocoder) *CityResolver {
	return &CityResolver{catalog: catalog, geocoder: geocoder}
}

// Resolve returns the coordinate for name.
func (r *CityResolver) Resolve(ctx context.Context, name string) (Coordinate, error) {
	if strings.TrimSpace(name) == "" {
		return Coordinate{}, &ValidationError{Field: "city", Reason: "city name is required"}
	}
	if city, ok := r.catalog.Lookup(name); ok {
		return city.Coordinate(), nil
	}
	if r.geocoder == nil {
		return Coordinate{}, &ValidationError{Field: "city", Reason: fmt.Sprintf("unknown city %q", name)}
	}

	coord, err := r.geocoder.Geocode(ctx, name, "")
	if err != nil {
		return Coordinate{}, &UpstreamError{Source: "geocoder", Err: err}
	}
	if err := coord.Validate(); err != nil {
		return Coordinate{}, err
	}
	return coord, nil
}
