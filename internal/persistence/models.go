package persistence

import "time"

// Group is a class of students owned by one teacher.
type Group struct {
	ID            string
	OwnerID       string
	Name          string
	Course        string
	EducationForm string
	Color         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CalendarEvent is a time-boxed entry on the owner's calendar.
type CalendarEvent struct {
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

// LessonSource records which path created a journal lesson.
type LessonSource string

const (
	LessonSourceCalendar   LessonSource = "calendar"
	LessonSourceSync       LessonSource = "sync"
	LessonSourceImport     LessonSource = "import"
	LessonSourceRecurrence LessonSource = "recurrence"
	LessonSourceManual     LessonSource = "manual"
)

// Valid reports whether the source is one of the known tags.
func (s LessonSource) Valid() bool {
	switch s {
	case LessonSourceCalendar, LessonSourceSync, LessonSourceImport, LessonSourceRecurrence, LessonSourceManual:
		return true
	}
	return false
}

// JournalLesson is the attendance and grading record of one session.
type JournalLesson struct {
	ID        string
	OwnerID   string
	GroupID   string
	Topic     string
	Date      time.Time
	Notes     *string
	Room      *string
	Subject   *string
	Source    LessonSource
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attendance is one student's presence and mark for a lesson.
type Attendance struct {
	ID        string
	LessonID  string
	StudentID string
	Present   bool
	Mark      *int
	CreatedAt time.Time
}
