package scheduler

import "time"

const (
	// DefaultSearchDays is the number of business days scanned when a query leaves Days unset.
	DefaultSearchDays = 5
	// DefaultGranularity is the spacing between candidate start times.
	DefaultGranularity = time.Hour
	// DefaultMaxResults caps the number of returned slots.
	DefaultMaxResults = 10
)

var (
	// DefaultBusinessStart is the first candidate start of each day.
	DefaultBusinessStart = TimeOfDay{Hour: 8}
	// DefaultBusinessEnd bounds the end of every candidate.
	DefaultBusinessEnd = TimeOfDay{Hour: 20}
)

// SlotQuery describes a free-slot search. Zero values fall back to the package defaults.
type SlotQuery struct {
	// Reference is the first day of the search window.
	Reference time.Time
	// NotBefore drops candidates that start earlier than this instant.
	NotBefore time.Time
	Duration  time.Duration
	// Days is the number of eligible days scanned.
	Days          int
	BusinessStart TimeOfDay
	BusinessEnd   TimeOfDay
	Granularity   time.Duration
	MaxResults    int
	// PreferredDays replaces the Monday..Friday filter when non-empty.
	PreferredDays []time.Weekday
	Location      *time.Location
}

func (q SlotQuery) withDefaults() SlotQuery {
	if q.Days <= 0 {
		q.Days = DefaultSearchDays
	}
	if q.BusinessStart == (TimeOfDay{}) && q.BusinessEnd == (TimeOfDay{}) {
		q.BusinessStart = DefaultBusinessStart
		q.BusinessEnd = DefaultBusinessEnd
	}
	if q.Granularity <= 0 {
		q.Granularity = DefaultGranularity
	}
	if q.MaxResults <= 0 {
		q.MaxResults = DefaultMaxResults
	}
	if q.Location == nil {
		q.Location = q.Reference.Location()
	}
	return q
}

func (q SlotQuery) eligible(day time.Weekday) bool {
	if len(q.PreferredDays) == 0 {
		return day != time.Saturday && day != time.Sunday
	}
	for _, preferred := range q.PreferredDays {
		if preferred == day {
			return true
		}
	}
	return false
}

// FindFreeSlots scans a fixed grid inside business hours and returns the
// candidates of the requested duration that overlap none of the busy ranges.
// Results are chronological and capped at MaxResults.
func FindFreeSlots(busy []TimeRange, query SlotQuery) []TimeRange {
	if query.Duration <= 0 {
		return nil
	}
	q := query.withDefaults()
	if !q.BusinessStart.Before(q.BusinessEnd) {
		return nil
	}

	slots := make([]TimeRange, 0, q.MaxResults)
	day := q.BusinessStart.On(q.Reference, q.Location)
	scanned := 0
	// A preferred-day set never matching would otherwise loop forever.
	for guard := 0; scanned < q.Days && guard < q.Days*7+7; guard++ {
		if q.eligible(day.Weekday()) {
			scanned++
			dayEnd := q.BusinessEnd.On(day, q.Location)
			for start := q.BusinessStart.On(day, q.Location); !start.Add(q.Duration).After(dayEnd); start = start.Add(q.Granularity) {
				if !q.NotBefore.IsZero() && start.Before(q.NotBefore) {
					continue
				}
				candidate := TimeRange{Start: start, End: start.Add(q.Duration)}
				if overlapsAny(candidate, busy) {
					continue
				}
				slots = append(slots, candidate)
				if len(slots) == q.MaxResults {
					return slots
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return slots
}

func overlapsAny(candidate TimeRange, busy []TimeRange) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
