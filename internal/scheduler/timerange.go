package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InvalidRangeError reports a range whose end does not come after its start.
type InvalidRangeError struct {
	Start time.Time
	End   time.Time
}

// Error implements the error interface.
func (e *InvalidRangeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("scheduler: invalid range: end %s is not after start %s",
		e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange validates that end is strictly after start.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if !end.After(start) {
		return TimeRange{}, &InvalidRangeError{Start: start, End: end}
	}
	return TimeRange{Start: start, End: end}, nil
}

// Overlaps reports whether the two ranges share at least one instant.
// Ranges that only touch at a boundary do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Contains reports whether other lies entirely within r.
func (r TimeRange) Contains(other TimeRange) bool {
	return !other.Start.Before(r.Start) && !other.End.After(r.End)
}

// ContainsInstant reports whether t falls inside [Start, End).
func (r TimeRange) ContainsInstant(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// DurationMinutes returns the whole number of minutes covered by the range.
func (r TimeRange) DurationMinutes() int {
	return int(r.Duration() / time.Minute)
}

// IsZero reports whether both bounds are unset.
func (r TimeRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts "HH:MM", "HH.MM" and single-digit hours such as "9:00".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	sep := strings.IndexAny(value, ":.")
	if sep <= 0 || sep == len(value)-1 {
		return TimeOfDay{}, fmt.Errorf("scheduler: invalid time of day %q", value)
	}
	hour, err := strconv.Atoi(value[:sep])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("scheduler: invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(value[sep+1:])
	if err != nil || len(value[sep+1:]) != 2 {
		return TimeOfDay{}, fmt.Errorf("scheduler: invalid minute in %q", value)
	}
	tod := TimeOfDay{Hour: hour, Minute: minute}
	if !tod.Valid() {
		return TimeOfDay{}, fmt.Errorf("scheduler: time of day %q out of range", value)
	}
	return tod, nil
}

// Valid reports whether the value is a real wall-clock time.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// Before reports whether t is earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Minutes() < other.Minutes()
}

// On combines the calendar date of day (as seen in loc) with the time of day.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = day.Location()
	}
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)
}

// String renders the value as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ClockWindow renders a range as "H:MM–H:MM" in loc.
func ClockWindow(r TimeRange, loc *time.Location) string {
	if loc == nil {
		loc = r.Start.Location()
	}
	start := r.Start.In(loc)
	end := r.End.In(loc)
	return fmt.Sprintf("%d:%02d–%d:%02d", start.Hour(), start.Minute(), end.Hour(), end.Minute())
}
