package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
	"github.com/Dimasikck/teacher-tool/internal/recurrence"
	"github.com/Dimasikck/teacher-tool/internal/scheduler"
)

// CreateRecurringSeries expands a weekly rule into paired events and lessons.
// Dates that already hold an event with the same group, title, start and end
// are skipped, so repeating a request creates nothing new.
func (s *ScheduleService) CreateRecurringSeries(ctx context.Context, ownerID string, input SeriesInput) (summary SeriesSummary, err error) {
	if s == nil {
		return SeriesSummary{}, fmt.Errorf("ScheduleService is nil")
	}
	logger := s.loggerWith(ctx, "CreateRecurringSeries", "owner_id", ownerID, "group_id", input.GroupID)
	defer func() {
		logOutcome(ctx, logger, err, "failed to create recurring series", "recurring series created",
			"created", summary.CreatedCount, "skipped", summary.SkippedCount)
	}()

	rule, vErr := s.buildRule(ownerID, input)
	if vErr.HasErrors() {
		return SeriesSummary{}, vErr
	}

	ranges, err := s.expander.Expand(rule)
	if err != nil {
		var ruleErr *recurrence.InvalidRuleError
		if errors.As(err, &ruleErr) {
			return SeriesSummary{}, ruleValidationError(ruleErr)
		}
		return SeriesSummary{}, err
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		group, err := ownedGroup(ctx, repos, ownerID, rule.GroupID)
		if err != nil {
			return err
		}

		now := s.now()
		var result SeriesSummary
		for _, r := range ranges {
			existing, err := repos.Events.FindEventByKey(ctx, persistence.SessionKey{
				OwnerID: ownerID,
				GroupID: group.ID,
				Title:   rule.Title,
				Start:   r.Start,
			})
			switch {
			case err == nil && existing.End.Equal(persistence.NormalizeInstant(r.End)):
				result.SkippedCount++
				continue
			case err != nil && !errors.Is(err, persistence.ErrNotFound):
				return fmt.Errorf("find event: %w", err)
			}

			event := persistence.CalendarEvent{
				ID:        s.idGenerator(),
				OwnerID:   ownerID,
				GroupID:   group.ID,
				Title:     rule.Title,
				Start:     r.Start,
				End:       r.End,
				Room:      trimmedOrNil(input.Room),
				Color:     colorOrDefault(group.Color),
				CreatedAt: now,
				UpdatedAt: now,
			}
			outcome, err := s.engine.OnEventCreated(ctx, repos, event, persistence.LessonSourceRecurrence)
			if err != nil {
				return err
			}
			result.CreatedCount++
			result.Events = append(result.Events, toEvent(outcome.Event))
		}
		summary = result
		return nil
	})
	if err != nil {
		return SeriesSummary{}, mapRepoError(err)
	}
	if summary.CreatedCount > 0 {
		s.conflicts.Invalidate(ownerID)
	}
	return summary, nil
}

func (s *ScheduleService) buildRule(ownerID string, input SeriesInput) (recurrence.Rule, *ValidationError) {
	vErr := &ValidationError{}
	if ownerID == "" {
		vErr.add("owner_id", "owner is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		vErr.add("title", "title is required")
	}
	groupID := strings.TrimSpace(input.GroupID)
	if groupID == "" {
		vErr.add("group_id", "group is required")
	}
	start, err := scheduler.ParseTimeOfDay(input.StartTime)
	if err != nil {
		vErr.add("start_time", "start time must look like HH:MM")
	}
	end, err := scheduler.ParseTimeOfDay(input.EndTime)
	if err != nil {
		vErr.add("end_time", "end time must look like HH:MM")
	}

	rule := recurrence.Rule{
		Title:    title,
		GroupID:  groupID,
		From:     input.From,
		To:       input.To,
		Weekdays: input.Weekdays,
		Start:    start,
		End:      end,
	}
	if input.Room != nil {
		rule.Room = strings.TrimSpace(*input.Room)
	}
	if !vErr.HasErrors() {
		if err := recurrence.Validate(rule); err != nil {
			var ruleErr *recurrence.InvalidRuleError
			if errors.As(err, &ruleErr) {
				vErr.merge(ruleValidationError(ruleErr))
			}
		}
	}
	return rule, vErr
}
