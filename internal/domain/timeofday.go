package domain

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time within a trading day, compared against
// tick timestamps in the tick's own location.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	switch len(s) {
	case 5:
		if _, err := fmt.Sscanf(s, "%02d:%02d", &t.Hour, &t.Minute); err != nil {
			return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
		}
	case 8:
		if _, err := fmt.Sscanf(s, "%02d:%02d:%02d", &t.Hour, &t.Minute, &t.Second); err != nil {
			return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
		}
	default:
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: want HH:MM or HH:MM:SS", s)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: out of range", s)
	}
	return t, nil
}

// String returns the canonical HH:MM:SS form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Seconds returns the offset from midnight in seconds.
func (t TimeOfDay) Seconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Before reports whether t is strictly earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Seconds() < other.Seconds()
}

// ReachedBy reports whether the clock time of ts is at or past t.
func (t TimeOfDay) ReachedBy(ts time.Time) bool {
	h, m, s := ts.Clock()
	return h*3600+m*60+s >= t.Seconds()
}

// On anchors the time of day to the date of d, in d's location.
func (t TimeOfDay) On(d time.Time) time.Time {
	y, mo, da := d.Date()
	return time.Date(y, mo, da, t.Hour, t.Minute, t.Second, 0, d.Location())
}
