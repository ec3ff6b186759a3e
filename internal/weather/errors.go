package weather

import (
	"encoding/json"
	"fmt"
)

// ValidationError reports a missing or malformed required input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError reports a failed call to an external service. Payload holds
// the raw response body when the service returned one.
type UpstreamError struct {
	Source     string
	StatusCode int
	Payload    []byte
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s request failed with status %d: %v", e.Source, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s request failed with status %d", e.Source, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("%s request failed", e.Source)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PayloadValue returns the payload ready for embedding in a JSON response:
// raw JSON when the body was JSON, a string otherwise, nil when absent.
func (e *UpstreamError) PayloadValue() any {
	if len(e.Payload) == 0 {
		return nil
	}
	if json.Valid(e.Payload) {
		return json.RawMessage(e.Payload)
	}
	return string(e.Payload)
}
