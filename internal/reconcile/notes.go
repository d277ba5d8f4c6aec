package reconcile

import (
	"fmt"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
	"github.com/Dimasikck/teacher-tool/internal/scheduler"
)

type noteTemplate string

const (
	noteCreated      noteTemplate = "Занятие создано из календаря. Время: %s"
	noteUpdated      noteTemplate = "Занятие обновлено из календаря. Время: %s"
	noteSynchronized noteTemplate = "Автосинхронизация из календаря. Время: %s"
	noteImported     noteTemplate = "Занятие импортировано из расписания. Время: %s"
	noteRecurring    noteTemplate = "Занятие создано из повторяющегося расписания. Время: %s"
)

func noteFor(source persistence.LessonSource) noteTemplate {
	switch source {
	case persistence.LessonSourceSync:
		return noteSynchronized
	case persistence.LessonSourceImport:
		return noteImported
	case persistence.LessonSourceRecurrence:
		return noteRecurring
	default:
		return noteCreated
	}
}

func (e *Engine) notes(template noteTemplate, event persistence.CalendarEvent) *string {
	window := scheduler.ClockWindow(scheduler.TimeRange{Start: event.Start, End: event.End}, e.loc)
	text := fmt.Sprintf(string(template), window)
	return &text
}
