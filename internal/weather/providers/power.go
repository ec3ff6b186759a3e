package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/ecosync/internal/weather"
)

// DefaultPowerBaseURL is the NASA POWER daily point endpoint.
const DefaultPowerBaseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"

// PowerProvider implements weather.Provider for the NASA POWER daily point API.
type PowerProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewPowerProvider creates a provider against baseURL (DefaultPowerBaseURL when empty).
func NewPowerProvider(client *http.Client, baseURL string, maxRetries int) *PowerProvider {
	if baseURL == "" {
		baseURL = DefaultPowerBaseURL
	}
	return &PowerProvider{
		name:    "nasa-power",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      maxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newCircuitBreaker("nasa-power"),
	}
}

func (p *PowerProvider) Name() string {
	return p.name
}

// powerResponse is the subset of the POWER GeoJSON feature we read.
type powerResponse struct {
	Properties struct {
		Parameter weather.TimeSeries `json:"parameter"`
	} `json:"properties"`
}

func (p *PowerProvider) FetchDaily(ctx context.Context, req weather.PointRequest) (weather.TimeSeries, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("parameters", weather.JoinParameters(req.Parameters))
		values.Set("community", "RE")
		values.Set("longitude", strconv.FormatFloat(req.Coordinate.Lon, 'f', -1, 64))
		values.Set("latitude", strconv.FormatFloat(req.Coordinate.Lat, 'f', -1, 64))
		values.Set("start", req.Range.Start)
		values.Set("end", req.Range.End)
		values.Set("format", "JSON")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload powerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &weather.UpstreamError{Source: p.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	return payload.Properties.Parameter, nil
}
