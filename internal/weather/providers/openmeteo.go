package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/ecosync/internal/common"
	"github.com/i474232898/ecosync/internal/weather"
)

// DefaultOpenMeteoBaseURL is the Open-Meteo historical archive endpoint.
const DefaultOpenMeteoBaseURL = "https://archive-api.open-meteo.com/v1/archive"

// openMeteoVariable maps a catalog code onto an Open-Meteo daily variable.
type openMeteoVariable struct {
	name  string
	scale float64
}

// Open-Meteo reports pressure in hPa; the catalog displays kPa.
var openMeteoVariables = map[weather.ParameterCode]openMeteoVariable{
	weather.ParamTemperature:   {name: "temperature_2m_mean", scale: 1},
	weather.ParamHumidity:      {name: "relative_humidity_2m_mean", scale: 1},
	weather.ParamPrecipitation: {name: "precipitation_sum", scale: 1},
	weather.ParamWindSpeed:     {name: "wind_speed_10m_mean", scale: 1},
	weather.ParamPressure:      {name: "surface_pressure_mean", scale: 0.1},
}

// OpenMeteoProvider implements weather.Provider for the Open-Meteo archive API.
// It needs no API key. Parameters it cannot serve (aerosol depth) are absent
// from the returned series.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider creates a provider against baseURL (DefaultOpenMeteoBaseURL when empty).
func NewOpenMeteoProvider(client *http.Client, baseURL string, maxRetries int) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoBaseURL
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      maxRetries,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) FetchDaily(ctx context.Context, req weather.PointRequest) (weather.TimeSeries, error) {
	var daily []string
	wanted := make(map[string]weather.ParameterCode)
	for _, code := range req.Parameters {
		v, ok := openMeteoVariables[code]
		if !ok {
			log.Printf("DEBUG: openmeteo has no daily variable for %s; skipping", code)
			continue
		}
		daily = append(daily, v.name)
		wanted[v.name] = code
	}
	// Nothing the archive can serve; skip the request.
	if len(daily) == 0 {
		return weather.TimeSeries{}, nil
	}

	start, err := common.ParseDateKey(req.Range.Start)
	if err != nil {
		return nil, &weather.ValidationError{Field: "start", Reason: err.Error()}
	}
	end, err := common.ParseDateKey(req.Range.End)
	if err != nil {
		return nil, &weather.ValidationError{Field: "end", Reason: err.Error()}
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(req.Coordinate.Lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(req.Coordinate.Lon, 'f', -1, 64))
		values.Set("start_date", start.Format("2006-01-02"))
		values.Set("end_date", end.Format("2006-01-02"))
		values.Set("daily", strings.Join(daily, ","))
		values.Set("wind_speed_unit", "ms")
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.name, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Daily map[string]json.RawMessage `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &weather.UpstreamError{Source: p.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	var days []string
	if raw, ok := payload.Daily["time"]; ok {
		if err := json.Unmarshal(raw, &days); err != nil {
			return nil, &weather.UpstreamError{Source: p.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode daily.time: %w", err)}
		}
	}

	out := make(weather.TimeSeries, len(wanted))
	for name, code := range wanted {
		raw, ok := payload.Daily[name]
		if !ok {
			continue
		}
		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, &weather.UpstreamError{Source: p.name, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode daily.%s: %w", name, err)}
		}
		out[code] = toSeries(days, values, openMeteoVariables[code].scale)
	}
	return out, nil
}

// toSeries zips ISO dates with values, turning nulls into the fill sentinel.
func toSeries(days []string, values []*float64, scale float64) weather.Series {
	n := len(days)
	if len(values) < n {
		n = len(values)
	}
	series := make(weather.Series, 0, n)
	for i := 0; i < n; i++ {
		value := weather.FillValue
		if values[i] != nil {
			value = *values[i] * scale
		}
		series = append(series, weather.Observation{
			Date:  strings.ReplaceAll(days[i], "-", ""),
			Value: value,
		})
	}
	return series
}
