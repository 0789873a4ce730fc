package httpx

import (
	"strings"
	"time"
)

// Date accepts "2006-01-02" or a full RFC 3339 timestamp from JSON.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
	}

	d.Time = t

	return nil
}

// Ptr is nil for a missing date.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}

	return new(d.Time)
}

// QueryDate parses a DateOnly query value, returning nil when absent or
// malformed.
func QueryDate(s string) *time.Time {
	if s == "" {
		return nil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil
	}

	return new(t)
}
