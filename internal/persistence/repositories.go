package persistence

import (
	"context"
	"time"
)

// EventFilter narrows event queries to one owner and an optional window.
type EventFilter struct {
	OwnerID string
	// StartsFrom keeps events starting at or after the instant.
	StartsFrom *time.Time
	// EndsBy keeps events ending at or before the instant.
	EndsBy *time.Time
	// EndsAfter keeps events still running after the instant.
	EndsAfter *time.Time
}

// EventRepository stores calendar events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event CalendarEvent) error
	UpdateEvent(ctx context.Context, event CalendarEvent) error
	GetEvent(ctx context.Context, id string) (CalendarEvent, error)
	// FindEventByKey returns the oldest event with the pairing key.
	FindEventByKey(ctx context.Context, key SessionKey) (CalendarEvent, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]CalendarEvent, error)
	DeleteEvent(ctx context.Context, id string) error
}

// LessonRepository stores journal lessons.
type LessonRepository interface {
	CreateLesson(ctx context.Context, lesson JournalLesson) error
	UpdateLesson(ctx context.Context, lesson JournalLesson) error
	GetLesson(ctx context.Context, id string) (JournalLesson, error)
	// FindLessonByKey returns the oldest lesson with the pairing key.
	FindLessonByKey(ctx context.Context, key SessionKey) (JournalLesson, error)
	ListLessons(ctx context.Context, ownerID string) ([]JournalLesson, error)
	DeleteLesson(ctx context.Context, id string) error
}

// AttendanceRepository stores per-student attendance rows.
type AttendanceRepository interface {
	CreateAttendance(ctx context.Context, attendance Attendance) error
	ListAttendance(ctx context.Context, lessonID string) ([]Attendance, error)
	// DeleteAttendanceForLesson removes every row of the lesson and reports how many.
	DeleteAttendanceForLesson(ctx context.Context, lessonID string) (int, error)
}

// GroupRepository stores student groups.
type GroupRepository interface {
	CreateGroup(ctx context.Context, group Group) error
	GetGroup(ctx context.Context, id string) (Group, error)
	FindGroupByName(ctx context.Context, ownerID, name string) (Group, error)
	ListGroups(ctx context.Context, ownerID string) ([]Group, error)
}

// Repositories bundles the stores visible inside one transaction.
type Repositories struct {
	Events     EventRepository
	Lessons    LessonRepository
	Attendance AttendanceRepository
	Groups     GroupRepository
}

// TxManager runs fn inside one atomic unit of work. Every write made through
// repos is committed when fn returns nil and discarded otherwise.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
