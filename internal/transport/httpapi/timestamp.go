package httpapi

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Layouts accepted for timestamps without a UTC offset. Fractional seconds
// are accepted after the seconds field.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

var errTimestamp = errors.New("timestamp must be ISO-8601")

// timestamp is a request time that may omit its UTC offset. A value without
// an offset is read as wall clock in the clinic location.
type timestamp struct {
	at    time.Time
	naive bool
}

func parseTimestamp(raw string) (timestamp, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return timestamp{at: t}, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return timestamp{at: t, naive: true}, nil
		}
	}
	return timestamp{}, errTimestamp
}

func (ts *timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*ts = timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := parseTimestamp(raw)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}

// In returns the instant, placing a naive value in loc.
func (ts timestamp) In(loc *time.Location) time.Time {
	if !ts.naive || ts.at.IsZero() || loc == nil {
		return ts.at
	}
	t := ts.at
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func optionalIn(ts *timestamp, loc *time.Location) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.In(loc)
	return &t
}
