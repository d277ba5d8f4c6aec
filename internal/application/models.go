package application

import (
	"time"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
	"github.com/Dimasikck/teacher-tool/internal/timetable"
)

// DefaultEventColor is used when neither the caller nor the group supplies one.
const DefaultEventColor = "#3788d8"

// EventInput captures caller provided calendar event fields.
type EventInput struct {
	GroupID     string
	Title       string
	Start       time.Time
	End         time.Time
	Room        *string
	Color       string
	IsEvent     bool
	Description *string
	EventType   *string
}

// Event is a calendar entry as returned to callers.
type Event struct {
	ID          string
	OwnerID     string
	GroupID     string
	Title       string
	Start       time.Time
	End         time.Time
	Room        *string
	Color       string
	IsEvent     bool
	Description *string
	EventType   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventResult is an event together with the journal side effect of the write.
type EventResult struct {
	Event         Event
	LessonID      string
	LessonCreated bool
}

// DeleteResult reports what a cascading delete removed.
type DeleteResult struct {
	EventID           string
	LessonID          string
	AttendanceRemoved int
}

// ListEventsParams narrows an event listing to a window.
type ListEventsParams struct {
	OwnerID string
	From    *time.Time
	To      *time.Time
}

// ImportRequest wraps already-decoded timetable rows.
type ImportRequest struct {
	OwnerID  string
	Rows     [][]any
	Mapping  timetable.ColumnMapping
	StartRow int
}

// ImportSummary reports the outcome of a bulk import.
type ImportSummary struct {
	CreatedCount   int
	DuplicateCount int
	SkippedRows    []timetable.RowIssue
	GroupsCreated  []string
	// Lessons holds labels of the first created sessions.
	Lessons []string
}

// SeriesInput describes a weekly recurring series.
type SeriesInput struct {
	GroupID string
	Title   string
	Room    *string
	From    time.Time
	To      time.Time
	// Weekdays uses ISO numbering: Monday=1 .. Sunday=7.
	Weekdays  []int
	StartTime string
	EndTime   string
}

// SeriesSummary reports the outcome of a recurring series creation.
type SeriesSummary struct {
	CreatedCount int
	SkippedCount int
	Events       []Event
}

// ConflictReport describes two of the owner's events that overlap.
type ConflictReport struct {
	EventA         string
	EventB         string
	TitleA         string
	TitleB         string
	OverlapMinutes int
}

// FreeSlotQuery describes a free-slot search for one owner.
type FreeSlotQuery struct {
	OwnerID  string
	Duration time.Duration
	// Days overrides the configured search horizon when positive.
	Days          int
	PreferredDays []time.Weekday
}

// FreeSlot is one available window.
type FreeSlot struct {
	Day   string
	Time  string
	Date  string
	Start time.Time
	End   time.Time
}

// SyncSummary reports the outcome of a calendar to journal sync.
type SyncSummary struct {
	CreatedCount       int
	AlreadySyncedCount int
}

// SyncStatus is the drift report of one owner.
type SyncStatus struct {
	CalendarEventCount int
	JournalLessonCount int
	MissingCount       int
	InSync             bool
}

func toEvent(event persistence.CalendarEvent) Event {
	return Event{
		ID:          event.ID,
		OwnerID:     event.OwnerID,
		GroupID:     event.GroupID,
		Title:       event.Title,
		Start:       event.Start,
		End:         event.End,
		Room:        event.Room,
		Color:       event.Color,
		IsEvent:     event.IsEvent,
		Description: event.Description,
		EventType:   event.EventType,
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

func toEvents(events []persistence.CalendarEvent) []Event {
	if len(events) == 0 {
		return nil
	}
	out := make([]Event, 0, len(events))
	for _, event := range events {
		out = append(out, toEvent(event))
	}
	return out
}
