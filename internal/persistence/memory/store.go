// Package memory provides a transactional in-memory implementation of the
// persistence ports. It enforces the same uniqueness and reference rules as
// the SQLite schema.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
)

type state struct {
	groups     map[string]persistence.Group
	events     map[string]persistence.CalendarEvent
	lessons    map[string]persistence.JournalLesson
	attendance map[string]persistence.Attendance
	// seq orders rows by insertion for the "oldest first" lookups.
	seq   map[string]uint64
	clock uint64
}

func newState() *state {
	return &state{
		groups:     make(map[string]persistence.Group),
		events:     make(map[string]persistence.CalendarEvent),
		lessons:    make(map[string]persistence.JournalLesson),
		attendance: make(map[string]persistence.Attendance),
		seq:        make(map[string]uint64),
	}
}

func (s *state) clone() *state {
	c := &state{
		groups:     make(map[string]persistence.Group, len(s.groups)),
		events:     make(map[string]persistence.CalendarEvent, len(s.events)),
		lessons:    make(map[string]persistence.JournalLesson, len(s.lessons)),
		attendance: make(map[string]persistence.Attendance, len(s.attendance)),
		seq:        make(map[string]uint64, len(s.seq)),
		clock:      s.clock,
	}
	for id, g := range s.groups {
		c.groups[id] = g
	}
	for id, e := range s.events {
		c.events[id] = cloneEvent(e)
	}
	for id, l := range s.lessons {
		c.lessons[id] = cloneLesson(l)
	}
	for id, a := range s.attendance {
		c.attendance[id] = cloneAttendance(a)
	}
	for id, n := range s.seq {
		c.seq[id] = n
	}
	return c
}

func (s *state) stamp(id string) {
	s.clock++
	s.seq[id] = s.clock
}

// Store is an in-memory persistence.TxManager. Transactions are serialised
// and operate on a private copy that replaces the committed state only when
// the callback succeeds.
type Store struct {
	mu      sync.Mutex
	current *state
}

var _ persistence.TxManager = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{current: newState()}
}

// WithTx implements persistence.TxManager.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, repos persistence.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.current.clone()
	tx := &txRepos{st: working}
	if err := fn(ctx, persistence.Repositories{
		Events:     tx,
		Lessons:    (*lessonRepo)(tx),
		Attendance: (*attendanceRepo)(tx),
		Groups:     (*groupRepo)(tx),
	}); err != nil {
		return err
	}
	s.current = working
	return nil
}

// Counts reports the number of stored rows per entity.
func (s *Store) Counts() (groups, events, lessons, attendance int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.current.groups), len(s.current.events), len(s.current.lessons), len(s.current.attendance)
}

type txRepos struct {
	st *state
}

// --- EventRepository ---

func (r *txRepos) CreateEvent(_ context.Context, event persistence.CalendarEvent) error {
	if event.ID == "" || event.Title == "" || !event.End.After(event.Start) {
		return persistence.ErrConstraintViolation
	}
	if _, ok := r.st.events[event.ID]; ok {
		return fmt.Errorf("%w: event %s", persistence.ErrDuplicate, event.ID)
	}
	if _, ok := r.st.groups[event.GroupID]; !ok {
		return fmt.Errorf("%w: group %s", persistence.ErrForeignKeyViolation, event.GroupID)
	}
	r.st.events[event.ID] = normalizeEvent(event)
	r.st.stamp(event.ID)
	return nil
}

func (r *txRepos) UpdateEvent(_ context.Context, event persistence.CalendarEvent) error {
	existing, ok := r.st.events[event.ID]
	if !ok || existing.OwnerID != event.OwnerID {
		return persistence.ErrNotFound
	}
	if event.Title == "" || !event.End.After(event.Start) {
		return persistence.ErrConstraintViolation
	}
	if _, ok := r.st.groups[event.GroupID]; !ok {
		return fmt.Errorf("%w: group %s", persistence.ErrForeignKeyViolation, event.GroupID)
	}
	event.CreatedAt = existing.CreatedAt
	r.st.events[event.ID] = normalizeEvent(event)
	return nil
}

func (r *txRepos) GetEvent(_ context.Context, id string) (persistence.CalendarEvent, error) {
	event, ok := r.st.events[id]
	if !ok {
		return persistence.CalendarEvent{}, persistence.ErrNotFound
	}
	return cloneEvent(event), nil
}

func (r *txRepos) FindEventByKey(_ context.Context, key persistence.SessionKey) (persistence.CalendarEvent, error) {
	var (
		found persistence.CalendarEvent
		best  uint64
		hit   bool
	)
	for id, event := range r.st.events {
		if !persistence.EventKey(event).Equal(key) {
			continue
		}
		if n := r.st.seq[id]; !hit || n < best {
			found, best, hit = event, n, true
		}
	}
	if !hit {
		return persistence.CalendarEvent{}, persistence.ErrNotFound
	}
	return cloneEvent(found), nil
}

func (r *txRepos) ListEvents(_ context.Context, filter persistence.EventFilter) ([]persistence.CalendarEvent, error) {
	var events []persistence.CalendarEvent
	for _, event := range r.st.events {
		if event.OwnerID != filter.OwnerID {
			continue
		}
		if filter.StartsFrom != nil && event.Start.Before(persistence.NormalizeInstant(*filter.StartsFrom)) {
			continue
		}
		if filter.EndsBy != nil && event.End.After(persistence.NormalizeInstant(*filter.EndsBy)) {
			continue
		}
		if filter.EndsAfter != nil && !event.End.After(persistence.NormalizeInstant(*filter.EndsAfter)) {
			continue
		}
		events = append(events, cloneEvent(event))
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return r.st.seq[events[i].ID] < r.st.seq[events[j].ID]
	})
	return events, nil
}

func (r *txRepos) DeleteEvent(_ context.Context, id string) error {
	if _, ok := r.st.events[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.st.events, id)
	delete(r.st.seq, id)
	return nil
}

// --- LessonRepository ---

type lessonRepo txRepos

func (r *lessonRepo) CreateLesson(_ context.Context, lesson persistence.JournalLesson) error {
	if lesson.ID == "" || lesson.Topic == "" || !lesson.Source.Valid() {
		return persistence.ErrConstraintViolation
	}
	if _, ok := r.st.lessons[lesson.ID]; ok {
		return fmt.Errorf("%w: lesson %s", persistence.ErrDuplicate, lesson.ID)
	}
	if _, ok := r.st.groups[lesson.GroupID]; !ok {
		return fmt.Errorf("%w: group %s", persistence.ErrForeignKeyViolation, lesson.GroupID)
	}
	r.st.lessons[lesson.ID] = normalizeLesson(lesson)
	r.st.stamp(lesson.ID)
	return nil
}

func (r *lessonRepo) UpdateLesson(_ context.Context, lesson persistence.JournalLesson) error {
	existing, ok := r.st.lessons[lesson.ID]
	if !ok || existing.OwnerID != lesson.OwnerID {
		return persistence.ErrNotFound
	}
	if lesson.Topic == "" || !lesson.Source.Valid() {
		return persistence.ErrConstraintViolation
	}
	if _, ok := r.st.groups[lesson.GroupID]; !ok {
		return fmt.Errorf("%w: group %s", persistence.ErrForeignKeyViolation, lesson.GroupID)
	}
	lesson.CreatedAt = existing.CreatedAt
	r.st.lessons[lesson.ID] = normalizeLesson(lesson)
	return nil
}

func (r *lessonRepo) GetLesson(_ context.Context, id string) (persistence.JournalLesson, error) {
	lesson, ok := r.st.lessons[id]
	if !ok {
		return persistence.JournalLesson{}, persistence.ErrNotFound
	}
	return cloneLesson(lesson), nil
}

func (r *lessonRepo) FindLessonByKey(_ context.Context, key persistence.SessionKey) (persistence.JournalLesson, error) {
	var (
		found persistence.JournalLesson
		best  uint64
		hit   bool
	)
	for id, lesson := range r.st.lessons {
		if !persistence.LessonKey(lesson).Equal(key) {
			continue
		}
		if n := r.st.seq[id]; !hit || n < best {
			found, best, hit = lesson, n, true
		}
	}
	if !hit {
		return persistence.JournalLesson{}, persistence.ErrNotFound
	}
	return cloneLesson(found), nil
}

func (r *lessonRepo) ListLessons(_ context.Context, ownerID string) ([]persistence.JournalLesson, error) {
	var lessons []persistence.JournalLesson
	for _, lesson := range r.st.lessons {
		if lesson.OwnerID == ownerID {
			lessons = append(lessons, cloneLesson(lesson))
		}
	}
	sort.Slice(lessons, func(i, j int) bool {
		if !lessons[i].Date.Equal(lessons[j].Date) {
			return lessons[i].Date.Before(lessons[j].Date)
		}
		return r.st.seq[lessons[i].ID] < r.st.seq[lessons[j].ID]
	})
	return lessons, nil
}

func (r *lessonRepo) DeleteLesson(_ context.Context, id string) error {
	if _, ok := r.st.lessons[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, a := range r.st.attendance {
		if a.LessonID == id {
			return fmt.Errorf("%w: lesson %s still has attendance", persistence.ErrForeignKeyViolation, id)
		}
	}
	delete(r.st.lessons, id)
	delete(r.st.seq, id)
	return nil
}

// --- AttendanceRepository ---

type attendanceRepo txRepos

func (r *attendanceRepo) CreateAttendance(_ context.Context, attendance persistence.Attendance) error {
	if attendance.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := r.st.attendance[attendance.ID]; ok {
		return fmt.Errorf("%w: attendance %s", persistence.ErrDuplicate, attendance.ID)
	}
	if _, ok := r.st.lessons[attendance.LessonID]; !ok {
		return fmt.Errorf("%w: lesson %s", persistence.ErrForeignKeyViolation, attendance.LessonID)
	}
	for _, a := range r.st.attendance {
		if a.LessonID == attendance.LessonID && a.StudentID == attendance.StudentID {
			return fmt.Errorf("%w: student %s already recorded", persistence.ErrDuplicate, attendance.StudentID)
		}
	}
	attendance.CreatedAt = persistence.NormalizeInstant(attendance.CreatedAt)
	r.st.attendance[attendance.ID] = cloneAttendance(attendance)
	return nil
}

func (r *attendanceRepo) ListAttendance(_ context.Context, lessonID string) ([]persistence.Attendance, error) {
	var records []persistence.Attendance
	for _, a := range r.st.attendance {
		if a.LessonID == lessonID {
			records = append(records, cloneAttendance(a))
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].StudentID != records[j].StudentID {
			return records[i].StudentID < records[j].StudentID
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (r *attendanceRepo) DeleteAttendanceForLesson(_ context.Context, lessonID string) (int, error) {
	removed := 0
	for id, a := range r.st.attendance {
		if a.LessonID == lessonID {
			delete(r.st.attendance, id)
			removed++
		}
	}
	return removed, nil
}

// --- GroupRepository ---

type groupRepo txRepos

func (r *groupRepo) CreateGroup(_ context.Context, group persistence.Group) error {
	if group.ID == "" || group.Name == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := r.st.groups[group.ID]; ok {
		return fmt.Errorf("%w: group %s", persistence.ErrDuplicate, group.ID)
	}
	for _, g := range r.st.groups {
		if g.OwnerID == group.OwnerID && g.Name == group.Name {
			return fmt.Errorf("%w: group name %s", persistence.ErrDuplicate, group.Name)
		}
	}
	group.CreatedAt = persistence.NormalizeInstant(group.CreatedAt)
	group.UpdatedAt = persistence.NormalizeInstant(group.UpdatedAt)
	r.st.groups[group.ID] = group
	r.st.stamp(group.ID)
	return nil
}

func (r *groupRepo) GetGroup(_ context.Context, id string) (persistence.Group, error) {
	group, ok := r.st.groups[id]
	if !ok {
		return persistence.Group{}, persistence.ErrNotFound
	}
	return group, nil
}

func (r *groupRepo) FindGroupByName(_ context.Context, ownerID, name string) (persistence.Group, error) {
	for _, g := range r.st.groups {
		if g.OwnerID == ownerID && g.Name == name {
			return g, nil
		}
	}
	return persistence.Group{}, persistence.ErrNotFound
}

func (r *groupRepo) ListGroups(_ context.Context, ownerID string) ([]persistence.Group, error) {
	var groups []persistence.Group
	for _, g := range r.st.groups {
		if g.OwnerID == ownerID {
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Name != groups[j].Name {
			return groups[i].Name < groups[j].Name
		}
		return groups[i].ID < groups[j].ID
	})
	return groups, nil
}

// --- helpers ---

func normalizeEvent(event persistence.CalendarEvent) persistence.CalendarEvent {
	event = cloneEvent(event)
	event.Start = persistence.NormalizeInstant(event.Start)
	event.End = persistence.NormalizeInstant(event.End)
	event.CreatedAt = persistence.NormalizeInstant(event.CreatedAt)
	event.UpdatedAt = persistence.NormalizeInstant(event.UpdatedAt)
	return event
}

func normalizeLesson(lesson persistence.JournalLesson) persistence.JournalLesson {
	lesson = cloneLesson(lesson)
	lesson.Date = persistence.NormalizeInstant(lesson.Date)
	lesson.CreatedAt = persistence.NormalizeInstant(lesson.CreatedAt)
	lesson.UpdatedAt = persistence.NormalizeInstant(lesson.UpdatedAt)
	return lesson
}

func cloneEvent(event persistence.CalendarEvent) persistence.CalendarEvent {
	event.Room = cloneString(event.Room)
	event.Description = cloneString(event.Description)
	event.EventType = cloneString(event.EventType)
	return event
}

func cloneLesson(lesson persistence.JournalLesson) persistence.JournalLesson {
	lesson.Notes = cloneString(lesson.Notes)
	lesson.Room = cloneString(lesson.Room)
	lesson.Subject = cloneString(lesson.Subject)
	return lesson
}

func cloneAttendance(attendance persistence.Attendance) persistence.Attendance {
	if attendance.Mark != nil {
		mark := *attendance.Mark
		attendance.Mark = &mark
	}
	return attendance
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copy := *value
	return &copy
}
