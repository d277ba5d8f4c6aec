// Package reconcile keeps calendar events and journal lessons paired.
//
// A calendar event and a journal lesson describe the same session when they
// share owner, group, title and start instant. Every operation here runs on a
// transaction-scoped persistence.Repositories supplied by the caller, so the
// event write and the paired lesson write commit or roll back together.
// Lessons that have no calendar counterpart are never modified or removed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
)

// Engine performs the paired writes.
type Engine struct {
	idGenerator func() string
	now         func() time.Time
	loc         *time.Location
}

// NewEngine constructs an Engine. loc is used for the clock window written
// into lesson notes; nil means UTC.
func NewEngine(idGenerator func() string, now func() time.Time, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{idGenerator: idGenerator, now: now, loc: loc}
}

// Outcome describes the lesson side of a create or update.
type Outcome struct {
	Event         persistence.CalendarEvent
	Lesson        persistence.JournalLesson
	LessonCreated bool
}

// DeleteOutcome describes what a cascading delete removed.
type DeleteOutcome struct {
	// LessonID is empty when the event had no paired lesson.
	LessonID          string
	AttendanceRemoved int
}

// SyncSummary counts the result of SyncAll.
type SyncSummary struct {
	Created       int
	AlreadySynced int
}

// Status is the read-only drift report of one owner.
type Status struct {
	CalendarEvents int
	JournalLessons int
	Missing        int
}

// InSync reports whether every calendar event has a paired lesson.
func (s Status) InSync() bool {
	return s.Missing == 0
}

// OnEventCreated stores event and creates its paired lesson tagged with
// source.
func (e *Engine) OnEventCreated(ctx context.Context, repos persistence.Repositories, event persistence.CalendarEvent, source persistence.LessonSource) (Outcome, error) {
	if err := repos.Events.CreateEvent(ctx, event); err != nil {
		return Outcome{}, fmt.Errorf("create event: %w", err)
	}
	lesson, err := e.createLesson(ctx, repos, event, source)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Event: event, Lesson: lesson, LessonCreated: true}, nil
}

// OnEventUpdated stores event and moves the lesson paired under previous onto
// the new key. A lesson already sitting on the new key is reused, and when
// neither exists a new lesson is created.
func (e *Engine) OnEventUpdated(ctx context.Context, repos persistence.Repositories, event persistence.CalendarEvent, previous persistence.SessionKey) (Outcome, error) {
	if err := repos.Events.UpdateEvent(ctx, event); err != nil {
		return Outcome{}, fmt.Errorf("update event: %w", err)
	}

	lesson, err := repos.Lessons.FindLessonByKey(ctx, previous)
	if errors.Is(err, persistence.ErrNotFound) {
		lesson, err = repos.Lessons.FindLessonByKey(ctx, persistence.EventKey(event))
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		created, err := e.createLesson(ctx, repos, event, persistence.LessonSourceCalendar)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Event: event, Lesson: created, LessonCreated: true}, nil
	case err != nil:
		return Outcome{}, fmt.Errorf("find lesson: %w", err)
	}

	lesson.GroupID = event.GroupID
	lesson.Topic = event.Title
	lesson.Date = event.Start
	lesson.Room = event.Room
	lesson.Notes = e.notes(noteUpdated, event)
	lesson.UpdatedAt = e.now()
	if err := repos.Lessons.UpdateLesson(ctx, lesson); err != nil {
		return Outcome{}, fmt.Errorf("update lesson: %w", err)
	}
	return Outcome{Event: event, Lesson: lesson}, nil
}

// OnEventDeleted removes the paired lesson with its attendance, then the
// event itself.
func (e *Engine) OnEventDeleted(ctx context.Context, repos persistence.Repositories, event persistence.CalendarEvent) (DeleteOutcome, error) {
	var outcome DeleteOutcome

	lesson, err := repos.Lessons.FindLessonByKey(ctx, persistence.EventKey(event))
	switch {
	case err == nil:
		removed, err := repos.Attendance.DeleteAttendanceForLesson(ctx, lesson.ID)
		if err != nil {
			return DeleteOutcome{}, fmt.Errorf("delete attendance: %w", err)
		}
		if err := repos.Lessons.DeleteLesson(ctx, lesson.ID); err != nil {
			return DeleteOutcome{}, fmt.Errorf("delete lesson: %w", err)
		}
		outcome.LessonID = lesson.ID
		outcome.AttendanceRemoved = removed
	case !errors.Is(err, persistence.ErrNotFound):
		return DeleteOutcome{}, fmt.Errorf("find lesson: %w", err)
	}

	if err := repos.Events.DeleteEvent(ctx, event.ID); err != nil {
		return DeleteOutcome{}, fmt.Errorf("delete event: %w", err)
	}
	return outcome, nil
}

// SyncAll creates a lesson for every event of ownerID that has none.
func (e *Engine) SyncAll(ctx context.Context, repos persistence.Repositories, ownerID string) (SyncSummary, error) {
	events, lessons, err := e.snapshot(ctx, repos, ownerID)
	if err != nil {
		return SyncSummary{}, err
	}

	paired := pairedKeys(lessons)
	var summary SyncSummary
	for _, event := range events {
		digest := persistence.EventKey(event).Digest()
		if paired[digest] {
			summary.AlreadySynced++
			continue
		}
		if _, err := e.createLesson(ctx, repos, event, persistence.LessonSourceSync); err != nil {
			return SyncSummary{}, err
		}
		paired[digest] = true
		summary.Created++
	}
	return summary, nil
}

// SyncStatus reports counts and the number of events without a lesson.
func (e *Engine) SyncStatus(ctx context.Context, repos persistence.Repositories, ownerID string) (Status, error) {
	events, lessons, err := e.snapshot(ctx, repos, ownerID)
	if err != nil {
		return Status{}, err
	}

	paired := pairedKeys(lessons)
	status := Status{CalendarEvents: len(events), JournalLessons: len(lessons)}
	for _, event := range events {
		if !paired[persistence.EventKey(event).Digest()] {
			status.Missing++
		}
	}
	return status, nil
}

func (e *Engine) snapshot(ctx context.Context, repos persistence.Repositories, ownerID string) ([]persistence.CalendarEvent, []persistence.JournalLesson, error) {
	events, err := repos.Events.ListEvents(ctx, persistence.EventFilter{OwnerID: ownerID})
	if err != nil {
		return nil, nil, fmt.Errorf("list events: %w", err)
	}
	lessons, err := repos.Lessons.ListLessons(ctx, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("list lessons: %w", err)
	}
	return events, lessons, nil
}

func pairedKeys(lessons []persistence.JournalLesson) map[string]bool {
	paired := make(map[string]bool, len(lessons))
	for _, lesson := range lessons {
		paired[persistence.LessonKey(lesson).Digest()] = true
	}
	return paired
}

func (e *Engine) createLesson(ctx context.Context, repos persistence.Repositories, event persistence.CalendarEvent, source persistence.LessonSource) (persistence.JournalLesson, error) {
	now := e.now()
	lesson := persistence.JournalLesson{
		ID:        e.idGenerator(),
		OwnerID:   event.OwnerID,
		GroupID:   event.GroupID,
		Topic:     event.Title,
		Date:      event.Start,
		Room:      event.Room,
		Notes:     e.notes(noteFor(source), event),
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repos.Lessons.CreateLesson(ctx, lesson); err != nil {
		return persistence.JournalLesson{}, fmt.Errorf("create lesson: %w", err)
	}
	return lesson, nil
}
