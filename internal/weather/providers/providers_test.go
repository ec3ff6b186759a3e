package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/ecosync/internal/weather"
)

func pointRequest(params ...weather.ParameterCode) weather.PointRequest {
	return weather.PointRequest{
		Coordinate: weather.Coordinate{Lat: 31.5497, Lon: 74.3436},
		Parameters: params,
		Range:      weather.DateRange{Start: "20250101", End: "20250103"},
	}
}

func TestPowerProviderFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("parameters") != "T2M,RH2M" || q.Get("latitude") != "31.5497" || q.Get("format") != "JSON" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = io.WriteString(w, `{"properties":{"parameter":{"T2M":{"20250101":10.5,"20250102":-999},"RH2M":{"20250101":40}}}}`)
	}))
	defer srv.Close()

	p := NewPowerProvider(srv.Client(), srv.URL, 0)
	series, err := p.FetchDaily(context.Background(), pointRequest(weather.ParamTemperature, weather.ParamHumidity))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series[weather.ParamTemperature]) != 2 {
		t.Fatalf("provider must return raw series including fill values, got %v", series)
	}
	if v, _ := series[weather.ParamHumidity].At("20250101"); v != 40 {
		t.Fatalf("unexpected RH2M value %v", v)
	}
}

func TestPowerProviderErrorCarriesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"header":"Invalid request","messages":["bad date"]}`)
	}))
	defer srv.Close()

	p := NewPowerProvider(srv.Client(), srv.URL, 0)
	_, err := p.FetchDaily(context.Background(), pointRequest(weather.ParamTemperature))

	var upErr *weather.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if upErr.StatusCode != http.StatusUnprocessableEntity || upErr.Source != "nasa-power" {
		t.Fatalf("unexpected error %+v", upErr)
	}
	if string(upErr.Payload) != `{"header":"Invalid request","messages":["bad date"]}` {
		t.Fatalf("unexpected payload %s", upErr.Payload)
	}
}

func TestPowerProviderMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `<html>maintenance</html>`)
	}))
	defer srv.Close()

	p := NewPowerProvider(srv.Client(), srv.URL, 0)
	_, err := p.FetchDaily(context.Background(), pointRequest(weather.ParamTemperature))
	var upErr *weather.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"properties":{"parameter":{"T2M":{"20250101":1}}}}`)
	}))
	defer srv.Close()

	p := NewPowerProvider(srv.Client(), srv.URL, 1)
	p.httpCfg.Backoff.InitialInterval = time.Millisecond

	if _, err := p.FetchDaily(context.Background(), pointRequest(weather.ParamTemperature)); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewPowerProvider(srv.Client(), srv.URL, 3)
	p.httpCfg.Backoff.InitialInterval = time.Millisecond

	if _, err := p.FetchDaily(context.Background(), pointRequest(weather.ParamTemperature)); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestOpenMeteoProviderMapsVariables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start_date") != "2025-01-01" || q.Get("end_date") != "2025-01-03" {
			t.Errorf("unexpected dates %s", r.URL.RawQuery)
		}
		if q.Get("daily") != "temperature_2m_mean,surface_pressure_mean" {
			t.Errorf("unexpected daily list %q", q.Get("daily"))
		}
		_, _ = io.WriteString(w, `{"daily":{
			"time":["2025-01-01","2025-01-02","2025-01-03"],
			"temperature_2m_mean":[11.2,null,13.4],
			"surface_pressure_mean":[1000.0,1010.0,null]}}`)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL, 0)
	series, err := p.FetchDaily(context.Background(), pointRequest(weather.ParamTemperature, weather.ParamAerosol, weather.ParamPressure))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := series[weather.ParamAerosol]; ok {
		t.Fatal("unsupported parameter must be absent")
	}
	t2m := series[weather.ParamTemperature]
	if len(t2m) != 3 || t2m[0] != (weather.Observation{Date: "20250101", Value: 11.2}) {
		t.Fatalf("unexpected T2M %v", t2m)
	}
	if t2m[1].Value != weather.FillValue {
		t.Fatalf("null must become the fill value, got %v", t2m[1])
	}
	if v, _ := series[weather.ParamPressure].At("20250101"); v != 100 {
		t.Fatalf("expected pressure in kPa, got %v", v)
	}

	normalized := weather.Normalize(series)
	if len(normalized[weather.ParamTemperature]) != 2 || len(normalized[weather.ParamPressure]) != 2 {
		t.Fatalf("unexpected normalized series %v", normalized)
	}
}

func TestOpenMeteoProviderNoSupportedParameters(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), srv.URL, 0)
	series, err := p.FetchDaily(context.Background(), pointRequest(weather.ParamAerosol))
	if err != nil || len(series) != 0 {
		t.Fatalf("expected empty series, got %v (%v)", series, err)
	}
	if calls.Load() != 0 {
		t.Fatal("expected no request")
	}
}
