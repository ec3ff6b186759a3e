package weather

import (
	"context"

	"github.com/kelvins/geocoder"
)

// GoogleGeocoder resolves place names through the Google geocoding API.
type GoogleGeocoder struct{}

// NewGoogleGeocoder configures the geocoding client with apiKey.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{}
}

// Geocode looks up the city. The underlying client has no context support,
// so cancellation only stops the wait.
func (g *GoogleGeocoder) Geocode(ctx context.Context, city, country string) (Coordinate, error) {
	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return Coordinate{}, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return Coordinate{}, r.err
		}
		return Coordinate{Lat: r.loc.Latitude, Lon: r.loc.Longitude}, nil
	}
}
