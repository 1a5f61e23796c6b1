package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const localLayout = "2006-01-02T15:04:05.999999999"

// Time is a timestamp that accepts both zoned ISO-8601 values and local
// values without offset. Local values are read as UTC.
type Time struct {
	time.Time
}

func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	// Java style zone suffix, e.g. 2024-05-01T12:00:00+02:00[Europe/Oslo].
	if i := strings.IndexByte(raw, '['); i > 0 {
		if t, err := time.Parse(time.RFC3339Nano, raw[:i]); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := time.ParseInLocation(localLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	return t, nil
}

func (t *Time) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseTime(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
