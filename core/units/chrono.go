package units

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock point within a day. It is not a physical
// quantity: it is never unit-converted, only compared chronologically.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses "15:04" or "15:04:05".
func ParseTimeOfDay(text string) (TimeOfDay, error) {
	layouts := []string{"15:04:05", "15:04"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, text)
		if err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q (want HH:MM or HH:MM:SS)", text)
}

// Seconds returns the offset from midnight in seconds.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Compare returns -1, 0 or 1 ordering t against other chronologically.
func (t TimeOfDay) Compare(other TimeOfDay) int {
	a, b := t.Seconds(), other.Seconds()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// ParseDate parses a calendar date in "2006-01-02" form.
func ParseDate(text string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", text)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", text)
	}
	return t, nil
}

// ParseDateTime parses an RFC 3339 timestamp, with a date-and-time
// fallback for documents that omit the zone.
func ParseDateTime(text string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", text)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q (want RFC 3339)", text)
	}
	return t, nil
}
