package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
)

var (
	groupCounter  uint64
	eventCounter  uint64
	lessonCounter uint64
)

// Monday of a school week, 09:00 UTC.
var referenceTime = time.Date(2024, time.January, 8, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the baseline instant used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// OwnerID is the default teacher all fixtures belong to.
const OwnerID = "teacher-1"

// ----------------------------- Group fixtures -----------------------------

// GroupOption configures a group fixture.
type GroupOption func(*persistence.Group)

// NewGroup returns a deterministic group.
func NewGroup(opts ...GroupOption) persistence.Group {
	idx := atomic.AddUint64(&groupCounter, 1)
	group := persistence.Group{
		ID:            fmt.Sprintf("group-%03d", idx),
		OwnerID:       OwnerID,
		Name:          fmt.Sprintf("G-%03d", idx),
		Course:        "1",
		EducationForm: "full-time",
		Color:         "#3788d8",
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&group)
	}
	return group
}

// WithGroupID overrides the group ID.
func WithGroupID(id string) GroupOption {
	return func(g *persistence.Group) { g.ID = id }
}

// WithGroupName overrides the group name.
func WithGroupName(name string) GroupOption {
	return func(g *persistence.Group) { g.Name = name }
}

// WithGroupOwner overrides the owner.
func WithGroupOwner(owner string) GroupOption {
	return func(g *persistence.Group) { g.OwnerID = owner }
}

// WithGroupColor overrides the display color.
func WithGroupColor(color string) GroupOption {
	return func(g *persistence.Group) { g.Color = color }
}

// ----------------------------- Event fixtures -----------------------------

// EventOption configures an event fixture.
type EventOption func(*persistence.CalendarEvent)

// NewEvent returns a deterministic 90 minute event for groupID.
func NewEvent(groupID string, opts ...EventOption) persistence.CalendarEvent {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * 24 * time.Hour)
	event := persistence.CalendarEvent{
		ID:        fmt.Sprintf("event-%03d", idx),
		OwnerID:   OwnerID,
		GroupID:   groupID,
		Title:     fmt.Sprintf("Lecture %03d", idx),
		Start:     start,
		End:       start.Add(90 * time.Minute),
		Color:     "#3788d8",
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

// WithEventID overrides the event ID.
func WithEventID(id string) EventOption {
	return func(e *persistence.CalendarEvent) { e.ID = id }
}

// WithEventTitle overrides the title.
func WithEventTitle(title string) EventOption {
	return func(e *persistence.CalendarEvent) { e.Title = title }
}

// WithEventOwner overrides the owner.
func WithEventOwner(owner string) EventOption {
	return func(e *persistence.CalendarEvent) { e.OwnerID = owner }
}

// WithEventWindow sets the start and end instants.
func WithEventWindow(start, end time.Time) EventOption {
	return func(e *persistence.CalendarEvent) {
		e.Start = start
		e.End = end
	}
}

// WithEventRoom sets the room.
func WithEventRoom(room string) EventOption {
	return func(e *persistence.CalendarEvent) { e.Room = &room }
}

// ----------------------------- Lesson fixtures -----------------------------

// LessonOption configures a lesson fixture.
type LessonOption func(*persistence.JournalLesson)

// NewLesson returns a deterministic hand-authored lesson for groupID.
func NewLesson(groupID string, opts ...LessonOption) persistence.JournalLesson {
	idx := atomic.AddUint64(&lessonCounter, 1)
	lesson := persistence.JournalLesson{
		ID:        fmt.Sprintf("lesson-%03d", idx),
		OwnerID:   OwnerID,
		GroupID:   groupID,
		Topic:     fmt.Sprintf("Topic %03d", idx),
		Date:      referenceTime.Add(time.Duration(idx) * time.Hour),
		Source:    persistence.LessonSourceManual,
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&lesson)
	}
	return lesson
}

// WithLessonID overrides the lesson ID.
func WithLessonID(id string) LessonOption {
	return func(l *persistence.JournalLesson) { l.ID = id }
}

// WithLessonTopic overrides the topic.
func WithLessonTopic(topic string) LessonOption {
	return func(l *persistence.JournalLesson) { l.Topic = topic }
}

// WithLessonDate overrides the date.
func WithLessonDate(date time.Time) LessonOption {
	return func(l *persistence.JournalLesson) { l.Date = date }
}

// PairedWith copies the pairing key of event into the lesson.
func PairedWith(event persistence.CalendarEvent) LessonOption {
	return func(l *persistence.JournalLesson) {
		l.OwnerID = event.OwnerID
		l.GroupID = event.GroupID
		l.Topic = event.Title
		l.Date = event.Start
		l.Source = persistence.LessonSourceCalendar
	}
}
