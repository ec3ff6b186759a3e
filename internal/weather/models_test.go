package weather

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalizeDropsFillValues(t *testing.T) {
	raw := TimeSeries{
		ParamTemperature: {{"20250101", 12.5}, {"20250102", -999}, {"20250103", -998}, {"20250104", -997.5}},
		ParamHumidity:    {{"20250101", -999}},
	}

	got := Normalize(raw)

	t2m := got[ParamTemperature]
	if len(t2m) != 2 {
		t.Fatalf("expected 2 observations, got %v", t2m)
	}
	if t2m[0] != (Observation{"20250101", 12.5}) || t2m[1] != (Observation{"20250104", -997.5}) {
		t.Fatalf("unexpected observations %v", t2m)
	}
	if rh, ok := got[ParamHumidity]; !ok || len(rh) != 0 {
		t.Fatalf("expected empty RH2M series, got %v (present=%v)", rh, ok)
	}
	if got.Empty() {
		t.Fatal("expected non-empty normalized series")
	}
	for _, series := range got {
		for _, o := range series {
			if IsFill(o.Value) {
				t.Fatalf("fill value %v survived normalization", o)
			}
		}
	}
}

func TestSeriesJSONKeepsOrder(t *testing.T) {
	var s Series
	if err := json.Unmarshal([]byte(`{"20250103":3,"20250101":1,"20250102":null}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := Series{{"20250103", 3}, {"20250101", 1}, {"20250102", FillValue}}
	if len(s) != len(want) {
		t.Fatalf("expected %v, got %v", want, s)
	}
	for i := range want {
		if s[i] != want[i] {
			t.Fatalf("observation %d: expected %v, got %v", i, want[i], s[i])
		}
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"20250103":3,"20250101":1,"20250102":-999}` {
		t.Fatalf("unexpected encoding %s", out)
	}

	empty, err := json.Marshal(Series(nil))
	if err != nil || string(empty) != "{}" {
		t.Fatalf("expected {} for empty series, got %s (%v)", empty, err)
	}
}

func TestSeriesUnmarshalRejectsArray(t *testing.T) {
	var s Series
	if err := json.Unmarshal([]byte(`[1,2]`), &s); err == nil {
		t.Fatal("expected error for array input")
	}
}

func TestParseParameters(t *testing.T) {
	params, err := ParseParameters(" t2m, RH2M ,,AOD_55")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(params) != 3 || params[0] != ParamTemperature || params[2] != ParamAerosol {
		t.Fatalf("unexpected params %v", params)
	}

	for _, in := range []string{"", " , ", "T2M,NOPE"} {
		_, err := ParseParameters(in)
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.Field != "parameters" {
			t.Fatalf("%q: expected parameters validation error, got %v", in, err)
		}
	}
}

func TestCoordinateValidate(t *testing.T) {
	tests := []struct {
		coord Coordinate
		ok    bool
	}{
		{Coordinate{31.5, 74.3}, true},
		{Coordinate{90, 180}, true},
		{Coordinate{-90, -180}, true},
		{Coordinate{90.1, 0}, false},
		{Coordinate{0, 180.5}, false},
	}
	for _, tt := range tests {
		err := tt.coord.Validate()
		if (err == nil) != tt.ok {
			t.Fatalf("%+v: expected ok=%v, got %v", tt.coord, tt.ok, err)
		}
	}
}

func TestBoundsValidate(t *testing.T) {
	if err := (Bounds{LatMin: 30, LatMax: 31, LonMin: 74, LonMax: 75}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Bounds{LatMin: 31, LatMax: 30, LonMin: 74, LonMax: 75}).Validate(); err == nil {
		t.Fatal("expected error for inverted latitude")
	}
	if err := (Bounds{LatMin: 30, LatMax: 95, LonMin: 74, LonMax: 75}).Validate(); err == nil {
		t.Fatal("expected error for out of range latitude")
	}
}

func TestUpstreamErrorPayloadValue(t *testing.T) {
	jsonErr := &UpstreamError{Source: "nasa-power", StatusCode: 422, Payload: []byte(`{"messages":["x"]}`)}
	if _, ok := jsonErr.PayloadValue().(json.RawMessage); !ok {
		t.Fatalf("expected raw JSON payload, got %T", jsonErr.PayloadValue())
	}
	textErr := &UpstreamError{Source: "nasa-power", StatusCode: 500, Payload: []byte("gateway timeout")}
	if textErr.PayloadValue() != "gateway timeout" {
		t.Fatalf("expected text payload, got %v", textErr.PayloadValue())
	}
	if (&UpstreamError{Source: "x"}).PayloadValue() != nil {
		t.Fatal("expected nil payload")
	}
}
