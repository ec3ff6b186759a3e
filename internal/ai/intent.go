package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/i474232898/ecosync/internal/weather"
)

// Action is what the user wants done with the resolved data.
type Action string

const (
	ActionVisualize Action = "visualize"
	ActionCompare   Action = "compare"
	ActionAnalyze   Action = "analyze"
)

func (a Action) valid() bool {
	switch a {
	case ActionVisualize, ActionCompare, ActionAnalyze:
		return true
	}
	return false
}

// Intent is the validated structure extracted from a model response. A
// degraded intent has no Action and lacks Coordinates or Parameters.
type Intent struct {
	City        string                  `json:"city"`
	Coordinates *weather.Coordinate     `json:"coordinates"`
	Parameters  []weather.ParameterCode `json:"parameters"`
	Summary     string                  `json:"summary"`
	Action      Action                  `json:"action,omitempty"`
	Layers      map[string]bool         `json:"layers,omitempty"`
}

// Resolved reports whether the intent names a location and at least one parameter.
func (i Intent) Resolved() bool {
	return i.Action != ""
}

// ParseError reports model output that is not a JSON object.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	jsonFence    = regexp.MustCompile("(?s)```json[ \t]*\r?\n(.*?)\r?\n[ \t]*```")
	genericFence = regexp.MustCompile("(?s)```[ \t]*\r?\n(.*?)\r?\n[ \t]*```")
)

// extractJSON picks the candidate JSON text out of raw model output: a
// ```json block first, then any bare ``` block, else the whole text.
func extractJSON(raw string) string {
	if m := jsonFence.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := genericFence.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// parseIntent decodes raw model output into an untyped document and checks it
// field by field. Structural gaps produce a degraded Intent, never an error;
// only undecodable output is a *ParseError.
func parseIntent(raw string) (Intent, error) {
	var doc any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &doc); err != nil {
		return Intent{}, &ParseError{Raw: raw, Err: err}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return Intent{}, &ParseError{Raw: raw, Err: fmt.Errorf("expected a JSON object, got %T", doc)}
	}

	intent := Intent{
		City:        stringField(obj, "city"),
		Summary:     stringField(obj, "summary"),
		Coordinates: coordinateField(obj, "coordinates"),
		Parameters:  parameterField(obj, "parameters"),
		Layers:      layersField(obj, "layers"),
	}

	if intent.Coordinates == nil || len(intent.Parameters) == 0 {
		return intent, nil
	}

	intent.Action = Action(strings.ToLower(stringField(obj, "action")))
	if !intent.Action.valid() {
		intent.Action = ActionVisualize
	}
	return intent, nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func coordinateField(obj map[string]any, key string) *weather.Coordinate {
	m, ok := obj[key].(map[string]any)
	if !ok {
		return nil
	}
	lat, latOK := m["lat"].(float64)
	lon, lonOK := m["lon"].(float64)
	if !latOK || !lonOK {
		return nil
	}
	c := weather.Coordinate{Lat: lat, Lon: lon}
	if c.Validate() != nil {
		return nil
	}
	return &c
}

// parameterField keeps catalog codes in model order, dropping unknown codes and repeats.
func parameterField(obj map[string]any, key string) []weather.ParameterCode {
	list, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	seen := make(map[weather.ParameterCode]bool, len(list))
	var out []weather.ParameterCode
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		code := weather.ParameterCode(strings.ToUpper(strings.TrimSpace(s)))
		if !code.Valid() || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

func layersField(obj map[string]any, key string) map[string]bool {
	m, ok := obj[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]bool, len(m))
	for name, v := range m {
		if b, ok := v.(bool); ok {
			out[strings.ToLower(name)] = b
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
