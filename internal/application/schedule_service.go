package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
	"github.com/Dimasikck/teacher-tool/internal/reconcile"
	"github.com/Dimasikck/teacher-tool/internal/recurrence"
	"github.com/Dimasikck/teacher-tool/internal/scheduler"
	"github.com/Dimasikck/teacher-tool/internal/timetable"
)

// Settings tunes the scheduling behaviour of the service.
type Settings struct {
	Location        *time.Location
	BusinessStart   scheduler.TimeOfDay
	BusinessEnd     scheduler.TimeOfDay
	SlotGranularity time.Duration
	SlotSearchDays  int
	MaxFreeSlots    int
	// ImportPreview is the number of lesson labels kept in an import summary.
	ImportPreview    int
	ConflictCacheTTL time.Duration
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		Location:         time.UTC,
		BusinessStart:    scheduler.DefaultBusinessStart,
		BusinessEnd:      scheduler.DefaultBusinessEnd,
		SlotGranularity:  scheduler.DefaultGranularity,
		SlotSearchDays:   scheduler.DefaultSearchDays,
		MaxFreeSlots:     scheduler.DefaultMaxResults,
		ImportPreview:    10,
		ConflictCacheTTL: 30 * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Location == nil {
		s.Location = d.Location
	}
	if s.BusinessStart == (scheduler.TimeOfDay{}) && s.BusinessEnd == (scheduler.TimeOfDay{}) {
		s.BusinessStart, s.BusinessEnd = d.BusinessStart, d.BusinessEnd
	}
	if s.SlotGranularity <= 0 {
		s.SlotGranularity = d.SlotGranularity
	}
	if s.SlotSearchDays <= 0 {
		s.SlotSearchDays = d.SlotSearchDays
	}
	if s.MaxFreeSlots <= 0 {
		s.MaxFreeSlots = d.MaxFreeSlots
	}
	if s.ImportPreview <= 0 {
		s.ImportPreview = d.ImportPreview
	}
	if s.ConflictCacheTTL <= 0 {
		s.ConflictCacheTTL = d.ConflictCacheTTL
	}
	return s
}

// ScheduleService orchestrates calendar writes and keeps the journal paired
// with them. Every mutation runs in one transaction.
type ScheduleService struct {
	store       persistence.TxManager
	engine      *reconcile.Engine
	expander    *recurrence.Expander
	parser      *timetable.Parser
	settings    Settings
	conflicts   *conflictCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(store persistence.TxManager, idGenerator func() string, now func() time.Time, settings Settings) *ScheduleService {
	return NewScheduleServiceWithLogger(store, idGenerator, now, settings, nil)
}

// NewScheduleServiceWithLogger wires dependencies with a specified logger.
func NewScheduleServiceWithLogger(store persistence.TxManager, idGenerator func() string, now func() time.Time, settings Settings, logger *slog.Logger) *ScheduleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	settings = settings.withDefaults()
	return &ScheduleService{
		store:       store,
		engine:      reconcile.NewEngine(idGenerator, now, settings.Location),
		expander:    recurrence.NewExpander(settings.Location),
		parser:      timetable.NewParser(settings.Location),
		settings:    settings,
		conflicts:   newConflictCache(settings.ConflictCacheTTL, 0, now),
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

// CreateEvent stores a calendar event and its paired journal lesson.
func (s *ScheduleService) CreateEvent(ctx context.Context, ownerID string, input EventInput) (result EventResult, err error) {
	if s == nil {
		return EventResult{}, fmt.Errorf("ScheduleService is nil")
	}
	logger := s.loggerWith(ctx, "CreateEvent", "owner_id", ownerID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create event", "event created",
			"event_id", result.Event.ID, "lesson_id", result.LessonID)
	}()

	if vErr := validateEventInput(ownerID, input); vErr.HasErrors() {
		return EventResult{}, vErr
	}

	now := s.now()
	event := persistence.CalendarEvent{
		ID:          s.idGenerator(),
		OwnerID:     ownerID,
		GroupID:     strings.TrimSpace(input.GroupID),
		Title:       strings.TrimSpace(input.Title),
		Start:       input.Start,
		End:         input.End,
		Room:        trimmedOrNil(input.Room),
		Color:       colorOrDefault(input.Color),
		IsEvent:     input.IsEvent,
		Description: trimmedOrNil(input.Description),
		EventType:   trimmedOrNil(input.EventType),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		if _, err := ownedGroup(ctx, repos, ownerID, event.GroupID); err != nil {
			return err
		}
		outcome, err := s.engine.OnEventCreated(ctx, repos, event, persistence.LessonSourceCalendar)
		if err != nil {
			return err
		}
		result = EventResult{Event: toEvent(outcome.Event), LessonID: outcome.Lesson.ID, LessonCreated: outcome.LessonCreated}
		return nil
	})
	if err != nil {
		return EventResult{}, mapRepoError(err)
	}
	s.conflicts.Invalidate(ownerID)
	return result, nil
}

// UpdateEvent rewrites an event and moves its paired lesson along with it.
func (s *ScheduleService) UpdateEvent(ctx context.Context, ownerID, eventID string, input EventInput) (result EventResult, err error) {
	if s == nil {
		return EventResult{}, fmt.Errorf("ScheduleService is nil")
	}
	logger := s.loggerWith(ctx, "UpdateEvent", "owner_id", ownerID, "event_id", eventID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to update event", "event updated",
			"lesson_id", result.LessonID, "lesson_created", result.LessonCreated)
	}()

	if vErr := validateEventInput(ownerID, input); vErr.HasErrors() {
		return EventResult{}, vErr
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		existing, err := ownedEvent(ctx, repos, ownerID, eventID)
		if err != nil {
			return err
		}
		if _, err := ownedGroup(ctx, repos, ownerID, strings.TrimSpace(input.GroupID)); err != nil {
			return err
		}

		previous := persistence.EventKey(existing)
		updated := existing
		updated.GroupID = strings.TrimSpace(input.GroupID)
		updated.Title = strings.TrimSpace(input.Title)
		updated.Start = input.Start
		updated.End = input.End
		updated.Room = trimmedOrNil(input.Room)
		if color := strings.TrimSpace(input.Color); color != "" {
			updated.Color = color
		}
		updated.IsEvent = input.IsEvent
		updated.Description = trimmedOrNil(input.Description)
		updated.EventType = trimmedOrNil(input.EventType)
		updated.UpdatedAt = s.now()

		outcome, err := s.engine.OnEventUpdated(ctx, repos, updated, previous)
		if err != nil {
			return err
		}
		result = EventResult{Event: toEvent(outcome.Event), LessonID: outcome.Lesson.ID, LessonCreated: outcome.LessonCreated}
		return nil
	})
	if err != nil {
		return EventResult{}, mapRepoError(err)
	}
	s.conflicts.Invalidate(ownerID)
	return result, nil
}

// DeleteEvent removes an event, its paired lesson and the lesson's attendance.
func (s *ScheduleService) DeleteEvent(ctx context.Context, ownerID, eventID string) (result DeleteResult, err error) {
	if s == nil {
		return DeleteResult{}, fmt.Errorf("ScheduleService is nil")
	}
	logger := s.loggerWith(ctx, "DeleteEvent", "owner_id", ownerID, "event_id", eventID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to delete event", "event deleted",
			"lesson_id", result.LessonID, "attendance_removed", result.AttendanceRemoved)
	}()

	err = s.store.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		event, err := ownedEvent(ctx, repos, ownerID, eventID)
		if err != nil {
			return err
		}
		outcome, err := s.engine.OnEventDeleted(ctx, repos, event)
		if err != nil {
			return err
		}
		result = DeleteResult{EventID: event.ID, LessonID: outcome.LessonID, AttendanceRemoved: outcome.AttendanceRemoved}
		return nil
	})
	if err != nil {
		return DeleteResult{}, mapRepoError(err)
	}
	s.conflicts.Invalidate(ownerID)
	return result, nil
}

// GetEvent returns one of the owner's events.
func (s *ScheduleService) GetEvent(ctx context.Context, ownerID, eventID string) (Event, error) {
	if s == nil {
		return Event{}, fmt.Errorf("ScheduleService is nil")
	}
	var event persistence.CalendarEvent
	err := s.store.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		var err error
		event, err = ownedEvent(ctx, repos, ownerID, eventID)
		return err
	})
	if err != nil {
		return Event{}, mapRepoError(err)
	}
	return toEvent(event), nil
}

// ListEvents returns the owner's events starting at or after From and ending
// at or before To, ordered by start.
func (s *ScheduleService) ListEvents(ctx context.Context, params ListEventsParams) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("ScheduleService is nil")
	}
	vErr := &ValidationError{}
	if params.OwnerID == "" {
		vErr.add("owner_id", "owner is required")
	}
	if params.From != nil && params.To != nil && params.To.Before(*params.From) {
		vErr.add("to", "to must not be before from")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	var events []persistence.CalendarEvent
	err := s.store.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		var err error
		events, err = repos.Events.ListEvents(ctx, persistence.EventFilter{
			OwnerID:    params.OwnerID,
			StartsFrom: params.From,
			EndsBy:     params.To,
		})
		return err
	})
	if err != nil {
		return nil, mapRepoError(err)
	}
	return toEvents(events), nil
}

// FindConflicts reports overlapping events of the owner. Reports are cached
// until the owner's calendar changes.
func (s *ScheduleService) FindConflicts(ctx context.Context, ownerID string) (conflicts []ConflictReport, err error) {
	if s == nil {
		return nil, fmt.Errorf("ScheduleService is nil")
	}
	if ownerID == "" {
		return nil, fieldError("owner_id", "owner is required")
	}
	if cached, ok := s.conflicts.Get(ownerID); ok {
		return cached, nil
	}

	logger := s.loggerWith(ctx, "FindConflicts", "owner_id", ownerID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to detect conflicts", "conflicts detected", "conflict_count", len(conflicts))
	}()

	generation := s.conflicts.Generation(ownerID)
	var events []persistence.CalendarEvent
	err = s.store.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		var err error
		events, err = repos.Events.ListEvents(ctx, persistence.EventFilter{OwnerID: ownerID})
		return err
	})
	if err != nil {
		return nil, mapRepoError(err)
	}

	titles := make(map[string]string, len(events))
	ranges := make([]scheduler.LabeledRange, 0, len(events))
	for _, event := range events {
		titles[event.ID] = event.Title
		ranges = append(ranges, scheduler.LabeledRange{
			Label: event.ID,
			Range: scheduler.TimeRange{Start: event.Start, End: event.End},
		})
	}
	for _, c := range scheduler.DetectConflicts(ranges) {
		conflicts = append(conflicts, ConflictReport{
			EventA:         c.LabelA,
			EventB:         c.LabelB,
			TitleA:         titles[c.LabelA],
			TitleB:         titles[c.LabelB],
			OverlapMinutes: c.OverlapMinutes,
		})
	}
	s.conflicts.Store(ownerID, generation, conflicts)
	return conflicts, nil
}

// FindFreeSlots lists free windows of the requested duration, starting now.
func (s *ScheduleService) FindFreeSlots(ctx context.Context, query FreeSlotQuery) ([]FreeSlot, error) {
	if s == nil {
		return nil, fmt.Errorf("ScheduleService is nil")
	}
	vErr := &ValidationError{}
	if query.OwnerID == "" {
		vErr.add("owner_id", "owner is required")
	}
	if query.Duration <= 0 {
		vErr.add("duration", "duration must be positive")
	}
	if query.Days < 0 {
		vErr.add("days", "days must not be negative")
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	loc := s.settings.Location
	now := s.now().In(loc)

	// Candidates never start before now, so every event still running blocks.
	var events []persistence.CalendarEvent
	err := s.store.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		var err error
		events, err = repos.Events.ListEvents(ctx, persistence.EventFilter{OwnerID: query.OwnerID, EndsAfter: &now})
		return err
	})
	if err != nil {
		return nil, mapRepoError(err)
	}

	busy := make([]scheduler.TimeRange, 0, len(events))
	for _, event := range events {
		busy = append(busy, scheduler.TimeRange{Start: event.Start, End: event.End})
	}

	days := query.Days
	if days == 0 {
		days = s.settings.SlotSearchDays
	}
	ranges := scheduler.FindFreeSlots(busy, scheduler.SlotQuery{
		Reference:     now,
		NotBefore:     now,
		Duration:      query.Duration,
		Days:          days,
		BusinessStart: s.settings.BusinessStart,
		BusinessEnd:   s.settings.BusinessEnd,
		Granularity:   s.settings.SlotGranularity,
		MaxResults:    s.settings.MaxFreeSlots,
		PreferredDays: query.PreferredDays,
		Location:      loc,
	})

	slots := make([]FreeSlot, 0, len(ranges))
	for _, r := range ranges {
		start := r.Start.In(loc)
		slots = append(slots, FreeSlot{
			Day:   start.Weekday().String(),
			Time:  start.Format("15:04"),
			Date:  start.Format("2006-01-02"),
			Start: r.Start,
			End:   r.End,
		})
	}
	return slots, nil
}

// Sync creates journal lessons for every event of the owner that lacks one.
func (s *ScheduleService) Sync(ctx context.Context, ownerID string) (summary SyncSummary, err error) {
	if s == nil {
		return SyncSummary{}, fmt.Errorf("ScheduleService is nil")
	}
	logger := s.loggerWith(ctx, "Sync", "owner_id", ownerID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to sync journal", "journal synchronized",
			"created", summary.CreatedCount, "already_synced", summary.AlreadySyncedCount)
	}()

	if ownerID == "" {
		return SyncSummary{}, fieldError("owner_id", "owner is required")
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		result, err := s.engine.SyncAll(ctx, repos, ownerID)
		if err != nil {
			return err
		}
		summary = SyncSummary{CreatedCount: result.Created, AlreadySyncedCount: result.AlreadySynced}
		return nil
	})
	if err != nil {
		return SyncSummary{}, mapRepoError(err)
	}
	return summary, nil
}

// SyncStatus reports whether the owner's journal is missing lessons.
func (s *ScheduleService) SyncStatus(ctx context.Context, ownerID string) (SyncStatus, error) {
	if s == nil {
		return SyncStatus{}, fmt.Errorf("ScheduleService is nil")
	}
	if ownerID == "" {
		return SyncStatus{}, fieldError("owner_id", "owner is required")
	}

	var status reconcile.Status
	err := s.store.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		var err error
		status, err = s.engine.SyncStatus(ctx, repos, ownerID)
		return err
	})
	if err != nil {
		return SyncStatus{}, mapRepoError(err)
	}
	return SyncStatus{
		CalendarEventCount: status.CalendarEvents,
		JournalLessonCount: status.JournalLessons,
		MissingCount:       status.Missing,
		InSync:             status.InSync(),
	}, nil
}

func ownedEvent(ctx context.Context, repos persistence.Repositories, ownerID, eventID string) (persistence.CalendarEvent, error) {
	event, err := repos.Events.GetEvent(ctx, eventID)
	if err != nil {
		return persistence.CalendarEvent{}, err
	}
	if event.OwnerID != ownerID {
		return persistence.CalendarEvent{}, ErrNotFound
	}
	return event, nil
}

func ownedGroup(ctx context.Context, repos persistence.Repositories, ownerID, groupID string) (persistence.Group, error) {
	group, err := repos.Groups.GetGroup(ctx, groupID)
	if errors.Is(err, persistence.ErrNotFound) || (err == nil && group.OwnerID != ownerID) {
		return persistence.Group{}, fieldError("group_id", "group not found")
	}
	if err != nil {
		return persistence.Group{}, err
	}
	return group, nil
}

func validateEventInput(ownerID string, input EventInput) *ValidationError {
	vErr := &ValidationError{}
	if ownerID == "" {
		vErr.add("owner_id", "owner is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		vErr.add("title", "title is required")
	}
	if strings.TrimSpace(input.GroupID) == "" {
		vErr.add("group_id", "group is required")
	}
	switch {
	case input.Start.IsZero():
		vErr.add("start", "start is required")
	case input.End.IsZero():
		vErr.add("end", "end is required")
	default:
		if _, err := scheduler.NewTimeRange(input.Start, input.End); err != nil {
			vErr.add("end", "end must be after start")
		}
	}
	if color := strings.TrimSpace(input.Color); color != "" && !isHexColor(color) {
		vErr.add("color", "color must be a #rrggbb value")
	}
	return vErr
}

func isHexColor(value string) bool {
	if len(value) != 7 || value[0] != '#' {
		return false
	}
	for _, r := range value[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func colorOrDefault(color string) string {
	if color = strings.TrimSpace(color); color != "" {
		return color
	}
	return DefaultEventColor
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
