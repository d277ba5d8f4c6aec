package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dimasikck/teacher-tool/internal/scheduler"
)

// Rule describes a weekly lesson pattern over an inclusive date range.
// Title, GroupID and Room travel with the rule for the caller; expansion only
// reads the calendar fields.
type Rule struct {
	Title   string
	GroupID string
	Room    string

	From time.Time
	To   time.Time
	// Weekdays uses ISO numbering: Monday=1 .. Sunday=7.
	Weekdays []int
	Start    scheduler.TimeOfDay
	End      scheduler.TimeOfDay
}

// Field names the part of a Rule a problem concerns.
type Field string

const (
	FieldDates    Field = "dates"
	FieldWeekdays Field = "weekdays"
	FieldTimes    Field = "times"
)

// Problem is one reason a rule was rejected.
type Problem struct {
	Field   Field
	Message string
}

// InvalidRuleError lists every problem found in a rule.
type InvalidRuleError struct {
	Problems []Problem
}

// Error implements the error interface.
func (e *InvalidRuleError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "recurrence: invalid rule"
	}
	messages := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		messages[i] = p.Message
	}
	return "recurrence: invalid rule: " + strings.Join(messages, "; ")
}

// Expander turns rules into concrete session ranges in a fixed location.
type Expander struct {
	location *time.Location
}

// NewExpander constructs an Expander that interprets dates in loc. If loc is nil, UTC is used.
func NewExpander(loc *time.Location) *Expander {
	if loc == nil {
		loc = time.UTC
	}
	return &Expander{location: loc}
}

// Location returns the zone session instants are built in.
func (e *Expander) Location() *time.Location {
	return e.location
}

// Validate reports every structural problem with the rule.
func Validate(rule Rule) error {
	var problems []Problem
	add := func(field Field, message string) {
		problems = append(problems, Problem{Field: field, Message: message})
	}
	if rule.From.IsZero() || rule.To.IsZero() {
		add(FieldDates, "date range is required")
	} else if dateOnly(rule.From, time.UTC).After(dateOnly(rule.To, time.UTC)) {
		add(FieldDates, "from is after to")
	}
	if len(rule.Weekdays) == 0 {
		add(FieldWeekdays, "weekday set is empty")
	}
	for _, day := range rule.Weekdays {
		if day < 1 || day > 7 {
			add(FieldWeekdays, fmt.Sprintf("weekday %d is outside 1..7", day))
		}
	}
	if !rule.Start.Valid() || !rule.End.Valid() {
		add(FieldTimes, "time of day is out of range")
	} else if !rule.Start.Before(rule.End) {
		add(FieldTimes, "end time is not after start time")
	}
	if len(problems) > 0 {
		return &InvalidRuleError{Problems: problems}
	}
	return nil
}

// Expand walks every date from From to To inclusive and emits one range per
// date whose ISO weekday is in the rule's set. Existing sessions are not
// consulted; de-duplication belongs to the caller.
func (e *Expander) Expand(rule Rule) ([]scheduler.TimeRange, error) {
	if err := Validate(rule); err != nil {
		return nil, err
	}

	loc := e.location
	weekdays := make(map[time.Weekday]struct{}, len(rule.Weekdays))
	for _, day := range rule.Weekdays {
		weekdays[time.Weekday(day%7)] = struct{}{}
	}

	last := dateOnly(rule.To, loc)
	var sessions []scheduler.TimeRange
	for day := dateOnly(rule.From, loc); !day.After(last); day = day.AddDate(0, 0, 1) {
		if _, ok := weekdays[day.Weekday()]; !ok {
			continue
		}
		sessions = append(sessions, scheduler.TimeRange{
			Start: rule.Start.On(day, loc),
			End:   rule.End.On(day, loc),
		})
	}
	return sessions, nil
}

// ISOWeekday converts a time.Weekday to Monday=1 .. Sunday=7.
func ISOWeekday(day time.Weekday) int {
	if day == time.Sunday {
		return 7
	}
	return int(day)
}

// dateOnly keeps the calendar date the caller wrote. Dates that arrive as
// midnight UTC (JSON "2024-01-01") are read in UTC so a western zone does not
// shift them a day back.
func dateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
