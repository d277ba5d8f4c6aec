package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
	"github.com/Dimasikck/teacher-tool/internal/timetable"
)

// BulkImport turns timetable rows into paired events and lessons. Malformed
// rows and sessions already on the calendar are skipped and reported; groups
// named in the rows are created when missing. All writes share one
// transaction.
func (s *ScheduleService) BulkImport(ctx context.Context, req ImportRequest) (summary ImportSummary, err error) {
	if s == nil {
		return ImportSummary{}, fmt.Errorf("ScheduleService is nil")
	}
	logger := s.loggerWith(ctx, "BulkImport", "owner_id", req.OwnerID, "rows", len(req.Rows))
	defer func() {
		logOutcome(ctx, logger, err, "timetable import failed", "timetable imported",
			"created", summary.CreatedCount,
			"duplicates", summary.DuplicateCount,
			"skipped_rows", len(summary.SkippedRows),
			"groups_created", len(summary.GroupsCreated),
		)
	}()

	vErr := &ValidationError{}
	if req.OwnerID == "" {
		vErr.add("owner_id", "owner is required")
	}
	if err := req.Mapping.Validate(); err != nil {
		vErr.add("mapping", err.Error())
	}
	if req.StartRow < 0 {
		vErr.add("start_row", "start row must not be negative")
	}
	if vErr.HasErrors() {
		return ImportSummary{}, vErr
	}

	parsed := s.parser.Parse(req.Rows, req.Mapping, req.StartRow)
	summary.SkippedRows = parsed.Skipped
	if len(parsed.Sessions) == 0 {
		return summary, nil
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		now := s.now()
		groups, err := newGroupResolver(ctx, repos, req.OwnerID, s.idGenerator, now)
		if err != nil {
			return err
		}

		var (
			created    int
			duplicates int
			labels     []string
		)
		for _, session := range parsed.Sessions {
			group, err := groups.resolve(ctx, session.Group)
			if err != nil {
				return err
			}

			key := persistence.SessionKey{OwnerID: req.OwnerID, GroupID: group.ID, Title: session.Title, Start: session.Range.Start}
			_, err = repos.Events.FindEventByKey(ctx, key)
			if err == nil {
				duplicates++
				continue
			}
			if !errors.Is(err, persistence.ErrNotFound) {
				return fmt.Errorf("find event: %w", err)
			}

			event := persistence.CalendarEvent{
				ID:        s.idGenerator(),
				OwnerID:   req.OwnerID,
				GroupID:   group.ID,
				Title:     session.Title,
				Start:     session.Range.Start,
				End:       session.Range.End,
				Room:      optionalString(session.Room),
				Color:     colorOrDefault(group.Color),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if _, err := s.engine.OnEventCreated(ctx, repos, event, persistence.LessonSourceImport); err != nil {
				return fmt.Errorf("row %d: %w", session.Row, err)
			}
			created++
			if len(labels) < s.settings.ImportPreview {
				labels = append(labels, s.sessionLabel(session, group.Name))
			}
		}

		summary.CreatedCount = created
		summary.DuplicateCount = duplicates
		summary.Lessons = labels
		summary.GroupsCreated = groups.created
		return nil
	})
	if err != nil {
		return ImportSummary{SkippedRows: parsed.Skipped}, mapRepoError(err)
	}
	if summary.CreatedCount > 0 {
		s.conflicts.Invalidate(req.OwnerID)
	}
	return summary, nil
}

func (s *ScheduleService) sessionLabel(session timetable.Session, groupName string) string {
	return fmt.Sprintf("%s (%s, %s)", session.Title, groupName, session.Range.Start.In(s.settings.Location).Format("02.01.2006 15:04"))
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
