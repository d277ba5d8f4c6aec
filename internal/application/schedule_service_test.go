package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dimasikck/teacher-tool/internal/application"
	"github.com/Dimasikck/teacher-tool/internal/persistence"
	"github.com/Dimasikck/teacher-tool/internal/persistence/memory"
	"github.com/Dimasikck/teacher-tool/internal/testfixtures"
)

const owner = testfixtures.OwnerID

type serviceEnv struct {
	store   *memory.Store
	factory *testfixtures.ServiceFactory
	service *application.ScheduleService
	group   persistence.Group
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	store := memory.New()
	group := testfixtures.NewGroup(testfixtures.WithGroupColor("#112233"))
	if err := store.WithTx(context.Background(), func(ctx context.Context, repos persistence.Repositories) error {
		return repos.Groups.CreateGroup(ctx, group)
	}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	factory := testfixtures.NewServiceFactory()
	return &serviceEnv{
		store:   store,
		factory: factory,
		service: factory.NewScheduleService(testfixtures.ScheduleServiceDeps{Store: store}),
		group:   group,
	}
}

func (env *serviceEnv) input(title string, start time.Time, minutes int) application.EventInput {
	return application.EventInput{
		GroupID: env.group.ID,
		Title:   title,
		Start:   start,
		End:     start.Add(time.Duration(minutes) * time.Minute),
	}
}

func (env *serviceEnv) mustCreate(t *testing.T, input application.EventInput) application.EventResult {
	t.Helper()
	result, err := env.service.CreateEvent(context.Background(), owner, input)
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	return result
}

func (env *serviceEnv) lessons(t *testing.T) []persistence.JournalLesson {
	t.Helper()
	var lessons []persistence.JournalLesson
	if err := env.store.WithTx(context.Background(), func(ctx context.Context, repos persistence.Repositories) error {
		var err error
		lessons, err = repos.Lessons.ListLessons(ctx, owner)
		return err
	}); err != nil {
		t.Fatalf("ListLessons failed: %v", err)
	}
	return lessons
}

func requireValidationField(t *testing.T, err error, field string) {
	t.Helper()
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := vErr.FieldErrors[field]; !ok {
		t.Fatalf("expected field %q in %#v", field, vErr.FieldErrors)
	}
}

func TestScheduleService_CreateEvent(t *testing.T) {
	t.Parallel()

	t.Run("stores the event with a paired lesson", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		room := " 305 "
		input := env.input("  Algebra ", testfixtures.ReferenceTime(), 90)
		input.Room = &room

		result := env.mustCreate(t, input)
		if result.Event.Title != "Algebra" || result.Event.Color != application.DefaultEventColor {
			t.Fatalf("unexpected event %#v", result.Event)
		}
		if result.Event.Room == nil || *result.Event.Room != "305" {
			t.Fatalf("room not trimmed: %v", result.Event.Room)
		}
		if !result.LessonCreated || result.LessonID == "" {
			t.Fatalf("expected lesson to be created: %#v", result)
		}

		lessons := env.lessons(t)
		if len(lessons) != 1 || lessons[0].Topic != "Algebra" || !lessons[0].Date.Equal(input.Start) {
			t.Fatalf("unexpected lessons %#v", lessons)
		}
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		start := testfixtures.ReferenceTime()
		tests := []struct {
			name  string
			input application.EventInput
			field string
		}{
			{name: "missing title", input: env.input(" ", start, 60), field: "title"},
			{name: "end before start", input: env.input("Algebra", start, -30), field: "end"},
			{name: "touching bounds", input: env.input("Algebra", start, 0), field: "end"},
			{name: "missing group", input: application.EventInput{Title: "Algebra", Start: start, End: start.Add(time.Hour)}, field: "group_id"},
			{name: "bad color", input: func() application.EventInput {
				in := env.input("Algebra", start, 60)
				in.Color = "blue"
				return in
			}(), field: "color"},
			{name: "unknown group", input: func() application.EventInput {
				in := env.input("Algebra", start, 60)
				in.GroupID = "missing"
				return in
			}(), field: "group_id"},
		}

		for _, tt := range tests {
			_, err := env.service.CreateEvent(context.Background(), owner, tt.input)
			requireValidationField(t, err, tt.field)
		}
		if _, events, lessons, _ := env.store.Counts(); events != 0 || lessons != 0 {
			t.Fatalf("expected no writes, got %d events and %d lessons", events, lessons)
		}
	})

	t.Run("rejects another owner's group", func(t *testing.T) {
		t.Parallel()

		env := newServiceEnv(t)
		_, err := env.service.CreateEvent(context.Background(), "teacher-2", env.input("Algebra", testfixtures.ReferenceTime(), 60))
		requireValidationField(t, err, "group_id")
	})
}

func TestScheduleService_CreateEventRollsBackOnJournalFailure(t *testing.T) {
	t.Parallel()

	inner := memory.New()
	group := testfixtures.NewGroup()
	if err := inner.WithTx(context.Background(), func(ctx context.Context, repos persistence.Repositories) error {
		return repos.Groups.CreateGroup(ctx, group)
	}); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	failure := errors.New("journal write failed")
	store := &faultyLessonStore{inner: inner, err: failure}
	svc := testfixtures.NewServiceFactory().NewScheduleService(testfixtures.ScheduleServiceDeps{Store: store})

	start := testfixtures.ReferenceTime()
	_, err := svc.CreateEvent(context.Background(), owner, application.EventInput{
		GroupID: group.ID, Title: "Algebra", Start: start, End: start.Add(time.Hour),
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected journal failure, got %v", err)
	}
	if application.ErrorKind(err) != "unexpected" {
		t.Fatalf("unexpected error kind %q", application.ErrorKind(err))
	}
	if _, events, lessons, _ := inner.Counts(); events != 0 || lessons != 0 {
		t.Fatalf("expected no rows after rollback, got %d events and %d lessons", events, lessons)
	}
}

func TestScheduleService_UpdateEvent(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	created := env.mustCreate(t, env.input("Algebra", testfixtures.ReferenceTime(), 60))

	moved := env.input("Algebra II", testfixtures.ReferenceTime().Add(24*time.Hour), 90)
	moved.Color = "#abcdef"
	result, err := env.service.UpdateEvent(context.Background(), owner, created.Event.ID, moved)
	if err != nil {
		t.Fatalf("UpdateEvent failed: %v", err)
	}
	if result.LessonCreated || result.LessonID != created.LessonID {
		t.Fatalf("expected existing lesson to move, got %#v", result)
	}
	if result.Event.Color != "#abcdef" || !result.Event.CreatedAt.Equal(created.Event.CreatedAt) {
		t.Fatalf("unexpected event %#v", result.Event)
	}

	// Same values again must not add a lesson.
	if _, err := env.service.UpdateEvent(context.Background(), owner, created.Event.ID, moved); err != nil {
		t.Fatalf("second UpdateEvent failed: %v", err)
	}
	lessons := env.lessons(t)
	if len(lessons) != 1 || lessons[0].Topic != "Algebra II" || !lessons[0].Date.Equal(moved.Start) {
		t.Fatalf("unexpected lessons %#v", lessons)
	}

	if _, err := env.service.UpdateEvent(context.Background(), "teacher-2", created.Event.ID, moved); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}
	if _, err := env.service.UpdateEvent(context.Background(), owner, "missing", moved); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown event, got %v", err)
	}
}

func TestScheduleService_DeleteEvent(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	doomed := env.mustCreate(t, env.input("Algebra", testfixtures.ReferenceTime(), 60))
	kept := env.mustCreate(t, env.input("Geometry", testfixtures.ReferenceTime().Add(2*time.Hour), 60))

	if err := env.store.WithTx(context.Background(), func(ctx context.Context, repos persistence.Repositories) error {
		return repos.Attendance.CreateAttendance(ctx, persistence.Attendance{
			ID: "att-1", LessonID: doomed.LessonID, StudentID: "s-1", Present: true, CreatedAt: testfixtures.ReferenceTime(),
		})
	}); err != nil {
		t.Fatalf("CreateAttendance failed: %v", err)
	}

	if _, err := env.service.DeleteEvent(context.Background(), "teacher-2", doomed.Event.ID); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another owner, got %v", err)
	}

	result, err := env.service.DeleteEvent(context.Background(), owner, doomed.Event.ID)
	if err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if result.LessonID != doomed.LessonID || result.AttendanceRemoved != 1 {
		t.Fatalf("unexpected result %#v", result)
	}

	lessons := env.lessons(t)
	if len(lessons) != 1 || lessons[0].ID != kept.LessonID {
		t.Fatalf("unexpected remaining lessons %#v", lessons)
	}
	if _, err := env.service.GetEvent(context.Background(), owner, doomed.Event.ID); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected deleted event to be gone, got %v", err)
	}
}

func TestScheduleService_GetAndListEvents(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	base := testfixtures.ReferenceTime()
	first := env.mustCreate(t, env.input("First", base, 60))
	second := env.mustCreate(t, env.input("Second", base.Add(24*time.Hour), 60))

	got, err := env.service.GetEvent(context.Background(), owner, first.Event.ID)
	if err != nil || got.Title != "First" {
		t.Fatalf("GetEvent = %#v, %v", got, err)
	}
	if _, err := env.service.GetEvent(context.Background(), "teacher-2", first.Event.ID); !errors.Is(err, application.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	from := base.Add(time.Hour)
	events, err := env.service.ListEvents(context.Background(), application.ListEventsParams{OwnerID: owner, From: &from})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].ID != second.Event.ID {
		t.Fatalf("unexpected events %#v", events)
	}

	to := base
	_, err = env.service.ListEvents(context.Background(), application.ListEventsParams{OwnerID: owner, From: &from, To: &to})
	requireValidationField(t, err, "to")
}

func TestScheduleService_FindConflicts(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	base := testfixtures.ReferenceTime()
	a := env.mustCreate(t, env.input("A", base, 90))
	env.mustCreate(t, env.input("B", base.Add(90*time.Minute), 60))

	conflicts, err := env.service.FindConflicts(context.Background(), owner)
	if err != nil {
		t.Fatalf("FindConflicts failed: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("touching events must not conflict, got %#v", conflicts)
	}

	c := env.mustCreate(t, env.input("C", base.Add(time.Hour), 60))
	conflicts, err = env.service.FindConflicts(context.Background(), owner)
	if err != nil {
		t.Fatalf("FindConflicts failed: %v", err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflicts after cache invalidation, got %#v", conflicts)
	}
	if conflicts[0].EventA != a.Event.ID || conflicts[0].EventB != c.Event.ID || conflicts[0].OverlapMinutes != 30 {
		t.Fatalf("unexpected first conflict %#v", conflicts[0])
	}
	if conflicts[0].TitleA != "A" || conflicts[0].TitleB != "C" {
		t.Fatalf("unexpected titles %#v", conflicts[0])
	}
}

// afterTxStore runs after once, right after the next transaction finishes.
type afterTxStore struct {
	persistence.TxManager
	after func()
}

func (s *afterTxStore) WithTx(ctx context.Context, fn func(ctx context.Context, repos persistence.Repositories) error) error {
	err := s.TxManager.WithTx(ctx, fn)
	if hook := s.after; hook != nil {
		s.after = nil
		hook()
	}
	return err
}

func TestScheduleService_FindConflictsIgnoresReportOutdatedByUpdate(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	store := &afterTxStore{TxManager: env.store}
	service := env.factory.NewScheduleService(testfixtures.ScheduleServiceDeps{Store: store})
	base := testfixtures.ReferenceTime()

	a, err := service.CreateEvent(context.Background(), owner, env.input("A", base, 90))
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	if _, err := service.CreateEvent(context.Background(), owner, env.input("B", base.Add(time.Hour), 60)); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	// The update commits between the conflict read and the cache write.
	store.after = func() {
		if _, err := service.UpdateEvent(context.Background(), owner, a.Event.ID, env.input("A", base.Add(4*time.Hour), 90)); err != nil {
			t.Errorf("UpdateEvent failed: %v", err)
		}
	}
	first, err := service.FindConflicts(context.Background(), owner)
	if err != nil {
		t.Fatalf("FindConflicts failed: %v", err)
	}
	if len(first) != 1 || first[0].OverlapMinutes != 30 {
		t.Fatalf("expected the conflict seen by the read, got %#v", first)
	}

	second, err := service.FindConflicts(context.Background(), owner)
	if err != nil {
		t.Fatalf("FindConflicts failed: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected no conflicts after the move, got %#v", second)
	}
}

func TestScheduleService_FindFreeSlotsBlocksEventsStartedEarlier(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	start := time.Date(2024, time.January, 5, 8, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.January, 10, 20, 0, 0, 0, time.UTC)
	env.mustCreate(t, application.EventInput{GroupID: env.group.ID, Title: "Field trip", Start: start, End: end})

	slots, err := env.service.FindFreeSlots(context.Background(), application.FreeSlotQuery{OwnerID: owner, Duration: time.Hour})
	if err != nil {
		t.Fatalf("FindFreeSlots failed: %v", err)
	}
	if len(slots) == 0 {
		t.Fatalf("expected slots after the event ends")
	}
	for _, slot := range slots {
		if slot.Start.Before(end) {
			t.Fatalf("slot %s %s overlaps the running event", slot.Date, slot.Time)
		}
	}
	if slots[0].Date != "2024-01-11" || slots[0].Time != "08:00" {
		t.Fatalf("unexpected first slot %#v", slots[0])
	}
}

func TestScheduleService_FindFreeSlots(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	monday := testfixtures.ReferenceTime()
	dayStart := time.Date(monday.Year(), monday.Month(), monday.Day(), 8, 0, 0, 0, time.UTC)
	env.mustCreate(t, env.input("Whole day", dayStart, 12*60))

	slots, err := env.service.FindFreeSlots(context.Background(), application.FreeSlotQuery{OwnerID: owner, Duration: time.Hour})
	if err != nil {
		t.Fatalf("FindFreeSlots failed: %v", err)
	}
	if len(slots) != 10 {
		t.Fatalf("expected the default cap of 10 slots, got %d", len(slots))
	}
	first := slots[0]
	if first.Day != "Tuesday" || first.Time != "08:00" || first.Date != "2024-01-09" {
		t.Fatalf("unexpected first slot %#v", first)
	}
	for _, slot := range slots {
		if slot.Date == "2024-01-08" {
			t.Fatalf("fully booked day must not yield slots: %#v", slot)
		}
	}

	preferred, err := env.service.FindFreeSlots(context.Background(), application.FreeSlotQuery{
		OwnerID:       owner,
		Duration:      2 * time.Hour,
		PreferredDays: []time.Weekday{time.Saturday},
	})
	if err != nil {
		t.Fatalf("FindFreeSlots failed: %v", err)
	}
	if len(preferred) == 0 || preferred[0].Day != "Saturday" || preferred[0].Date != "2024-01-13" {
		t.Fatalf("unexpected preferred-day slots %#v", preferred)
	}

	_, err = env.service.FindFreeSlots(context.Background(), application.FreeSlotQuery{OwnerID: owner})
	requireValidationField(t, err, "duration")
}

func TestScheduleService_Sync(t *testing.T) {
	t.Parallel()

	env := newServiceEnv(t)
	env.mustCreate(t, env.input("Paired", testfixtures.ReferenceTime(), 60))

	orphan := testfixtures.NewEvent(env.group.ID)
	if err := env.store.WithTx(context.Background(), func(ctx context.Context, repos persistence.Repositories) error {
		return repos.Events.CreateEvent(ctx, orphan)
	}); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	status, err := env.service.SyncStatus(context.Background(), owner)
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	if status.CalendarEventCount != 2 || status.JournalLessonCount != 1 || status.MissingCount != 1 || status.InSync {
		t.Fatalf("unexpected status %#v", status)
	}

	summary, err := env.service.Sync(context.Background(), owner)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if summary.CreatedCount != 1 || summary.AlreadySyncedCount != 1 {
		t.Fatalf("unexpected summary %#v", summary)
	}

	status, err = env.service.SyncStatus(context.Background(), owner)
	if err != nil {
		t.Fatalf("SyncStatus failed: %v", err)
	}
	if status.MissingCount != 0 || !status.InSync {
		t.Fatalf("expected in-sync status, got %#v", status)
	}

	if _, err := env.service.Sync(context.Background(), ""); err == nil {
		t.Fatal("expected error for missing owner")
	}
}

// faultyLessonStore fails every lesson write inside otherwise normal transactions.
type faultyLessonStore struct {
	inner persistence.TxManager
	err   error
}

func (f *faultyLessonStore) WithTx(ctx context.Context, fn func(ctx context.Context, repos persistence.Repositories) error) error {
	return f.inner.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		repos.Lessons = failingLessons{LessonRepository: repos.Lessons, err: f.err}
		return fn(ctx, repos)
	})
}

type failingLessons struct {
	persistence.LessonRepository
	err error
}

func (f failingLessons) CreateLesson(context.Context, persistence.JournalLesson) error {
	return f.err
}
