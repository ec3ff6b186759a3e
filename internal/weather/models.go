package weather

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang/geo/s2"
)

// ParameterCode identifies a measured atmospheric quantity.
type ParameterCode string

const (
	ParamTemperature   ParameterCode = "T2M"
	ParamHumidity      ParameterCode = "RH2M"
	ParamPrecipitation ParameterCode = "PRECTOT"
	ParamWindSpeed     ParameterCode = "WS2M"
	ParamPressure      ParameterCode = "PS"
	ParamAerosol       ParameterCode = "AOD_55"
)

// FillThreshold is the provider's missing-data convention: any value at or
// below it means "no measurement".
const FillThreshold = -998.0

// FillValue is what we substitute when a provider reports null.
const FillValue = -999.0

// IsFill reports whether v is the provider's missing-data sentinel.
func IsFill(v float64) bool {
	return v <= FillThreshold
}

// ParameterInfo describes a ParameterCode for prompts and clients.
type ParameterInfo struct {
	Code        ParameterCode `json:"id"`
	Name        string        `json:"name"`
	Unit        string        `json:"unit"`
	Description string        `json:"description"`
}

// Catalog is the closed set of parameters the service understands, in display order.
var Catalog = []ParameterInfo{
	{Code: ParamTemperature, Name: "Temperature", Unit: "°C", Description: "Temperature at 2 Meters"},
	{Code: ParamHumidity, Name: "Humidity", Unit: "%", Description: "Relative Humidity at 2 Meters"},
	{Code: ParamPrecipitation, Name: "Precipitation", Unit: "mm/day", Description: "Total Precipitation"},
	{Code: ParamWindSpeed, Name: "Wind Speed", Unit: "m/s", Description: "Wind Speed at 2 Meters"},
	{Code: ParamPressure, Name: "Pressure", Unit: "kPa", Description: "Surface Pressure"},
	{Code: ParamAerosol, Name: "Air Quality", Unit: "AOD", Description: "Aerosol Optical Depth (Air Quality Proxy)"},
}

// Info returns catalog metadata for the code.
func (p ParameterCode) Info() (ParameterInfo, bool) {
	for _, info := range Catalog {
		if info.Code == p {
			return info, true
		}
	}
	return ParameterInfo{}, false
}

// Valid reports whether p belongs to the catalog.
func (p ParameterCode) Valid() bool {
	_, ok := p.Info()
	return ok
}

// IsTemperature reports whether p is part of the T2M family (T2M, T2M_MAX, ...).
func (p ParameterCode) IsTemperature() bool {
	return strings.HasPrefix(string(p), string(ParamTemperature))
}

// ParseParameters parses a comma separated list such as "T2M,RH2M".
func ParseParameters(s string) ([]ParameterCode, error) {
	var out []ParameterCode
	for _, raw := range strings.Split(s, ",") {
		code := ParameterCode(strings.ToUpper(strings.TrimSpace(raw)))
		if code == "" {
			continue
		}
		out = append(out, code)
	}
	if err := ValidateParameters(out); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateParameters checks the sequence is non-empty and drawn from the catalog.
func ValidateParameters(params []ParameterCode) error {
	if len(params) == 0 {
		return &ValidationError{Field: "parameters", Reason: "at least one parameter is required"}
	}
	for _, p := range params {
		if !p.Valid() {
			return &ValidationError{Field: "parameters", Reason: fmt.Sprintf("unknown parameter %q", p)}
		}
	}
	return nil
}

// JoinParameters renders codes as the provider's comma list.
func JoinParameters(params []ParameterCode) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks lat is within [-90,90] and lon within [-180,180].
func (c Coordinate) Validate() error {
	if !c.LatLng().IsValid() {
		return &ValidationError{Field: "coordinates", Reason: fmt.Sprintf("(%g, %g) is outside valid lat/lon bounds", c.Lat, c.Lon)}
	}
	return nil
}

// LatLng converts to an s2 point for geometry helpers.
func (c Coordinate) LatLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Lat, c.Lon)
}

// LonLat returns the [lon, lat] pair renderers expect.
func (c Coordinate) LonLat() [2]float64 {
	return [2]float64{c.Lon, c.Lat}
}

// Bounds is an axis aligned lat/lon box, inclusive on all edges.
type Bounds struct {
	LatMin float64 `json:"latMin"`
	LatMax float64 `json:"latMax"`
	LonMin float64 `json:"lonMin"`
	LonMax float64 `json:"lonMax"`
}

// Validate checks both corners and their ordering.
func (b Bounds) Validate() error {
	lo := Coordinate{Lat: b.LatMin, Lon: b.LonMin}
	hi := Coordinate{Lat: b.LatMax, Lon: b.LonMax}
	if err := lo.Validate(); err != nil {
		return err
	}
	if err := hi.Validate(); err != nil {
		return err
	}
	if b.LatMin > b.LatMax || b.LonMin > b.LonMax {
		return &ValidationError{Field: "bounds", Reason: "min must not exceed max"}
	}
	return nil
}

// Observation is a single dated sample. Date is a YYYYMMDD key.
type Observation struct {
	Date  string
	Value float64
}

// Series is a chronologically ordered run of observations for one parameter,
// in the order the provider produced them.
type Series []Observation

// Latest returns the last observation.
func (s Series) Latest() (Observation, bool) {
	if len(s) == 0 {
		return Observation{}, false
	}
	return s[len(s)-1], true
}

// At returns the value recorded for date.
func (s Series) At(date string) (float64, bool) {
	for _, o := range s {
		if o.Date == date {
			return o.Value, true
		}
	}
	return 0, false
}

// MarshalJSON renders the series as an ordered {"YYYYMMDD": value} object.
func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, o := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(o.Date)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.Value)
		if err != nil {
			return nil, fmt.Errorf("series value for %s: %w", o.Date, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a {"YYYYMMDD": value} object keeping key order.
// null values decode as FillValue.
func (s *Series) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*s = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("series: expected object, got %v", tok)
	}

	out := Series{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("series: unexpected key %v", keyTok)
		}
		var v *float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("series value for %s: %w", key, err)
		}
		if v == nil {
			out = append(out, Observation{Date: key, Value: FillValue})
			continue
		}
		out = append(out, Observation{Date: key, Value: *v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

// TimeSeries maps each parameter to its raw provider series.
type TimeSeries map[ParameterCode]Series

// NormalizedSeries is a TimeSeries with every fill value removed.
// No value in a NormalizedSeries is <= FillThreshold.
type NormalizedSeries map[ParameterCode]Series

// Latest returns the last valid observation for the parameter.
func (n NormalizedSeries) Latest(p ParameterCode) (Observation, bool) {
	return n[p].Latest()
}

// Empty reports whether no parameter carries any observation.
func (n NormalizedSeries) Empty() bool {
	for _, s := range n {
		if len(s) > 0 {
			return false
		}
	}
	return true
}

// Normalize drops every (parameter, date) pair whose value is a fill value.
// Values are copied through unchanged; the provider already reports display units.
func Normalize(raw TimeSeries) NormalizedSeries {
	out := make(NormalizedSeries, len(raw))
	for param, series := range raw {
		kept := make(Series, 0, len(series))
		for _, o := range series {
			if IsFill(o.Value) {
				continue
			}
			kept = append(kept, o)
		}
		out[param] = kept
	}
	return out
}
