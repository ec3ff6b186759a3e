package common

import (
	"errors"
	"time"
)

// DateKeyLayout is the provider's YYYYMMDD date key format.
const DateKeyLayout = "20060102"

// DateKey formats t (in UTC) as a YYYYMMDD key.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}

// ParseDateKey parses a YYYYMMDD key.
func ParseDateKey(s string) (time.Time, error) {
	t, err := time.Parse(DateKeyLayout, s)
	if err != nil {
		return time.Time{}, errors.New("invalid date; use YYYYMMDD")
	}
	return t, nil
}
