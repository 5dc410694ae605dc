package catalog

import (
	"encoding/json"
	"fmt"
	"time"
)

// wire format for outbound timestamps
const dateTimeLayout = "2006-01-02T15:04:05.000Z"

// Stations in the field sometimes omit the zone designator; those values
// are read as UTC.
var dateTimeInputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// DateTime is an OCPP timestamp.
type DateTime struct {
	time.Time
}

// NewDateTime wraps t.
func NewDateTime(t time.Time) *DateTime {
	return &DateTime{Time: t}
}

// DateTimeError is returned when a timestamp field holds a value that is
// not a valid date-time string.
type DateTimeError struct {
	Value string
}

func (e *DateTimeError) Error() string {
	return fmt.Sprintf("catalog: %q is not an ISO 8601 date-time", e.Value)
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.UTC().Format(dateTimeLayout))
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &DateTimeError{Value: string(b)}
	}
	for _, layout := range dateTimeInputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return &DateTimeError{Value: s}
}

// Int returns a pointer to v, for the optional and zero-valid integer fields.
func Int(v int) *int {
	return &v
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
