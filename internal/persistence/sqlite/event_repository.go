package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
)

type eventRepository struct {
	q      querier
	mapper *ErrorMapper
}

const eventColumns = `id, owner_id, group_id, title, start_time, end_time, room, color,
	is_event, description, event_type, created_at, updated_at`

func (r *eventRepository) CreateEvent(ctx context.Context, event persistence.CalendarEvent) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO calendar_events (`+eventColumns+`, pairing_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.OwnerID,
		event.GroupID,
		event.Title,
		formatTime(event.Start),
		formatTime(event.End),
		nullString(event.Room),
		event.Color,
		event.IsEvent,
		nullString(event.Description),
		nullString(event.EventType),
		formatTime(event.CreatedAt),
		formatTime(event.UpdatedAt),
		persistence.EventKey(event).Digest(),
	)
	return r.mapper.MapError(err)
}

func (r *eventRepository) UpdateEvent(ctx context.Context, event persistence.CalendarEvent) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE calendar_events
		SET group_id = ?, title = ?, start_time = ?, end_time = ?, room = ?, color = ?,
			is_event = ?, description = ?, event_type = ?, updated_at = ?, pairing_key = ?
		WHERE id = ? AND owner_id = ?`,
		event.GroupID,
		event.Title,
		formatTime(event.Start),
		formatTime(event.End),
		nullString(event.Room),
		event.Color,
		event.IsEvent,
		nullString(event.Description),
		nullString(event.EventType),
		formatTime(event.UpdatedAt),
		persistence.EventKey(event).Digest(),
		event.ID,
		event.OwnerID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *eventRepository) GetEvent(ctx context.Context, id string) (persistence.CalendarEvent, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.CalendarEvent{}, r.mapper.MapError(err)
	}
	return event, nil
}

func (r *eventRepository) FindEventByKey(ctx context.Context, key persistence.SessionKey) (persistence.CalendarEvent, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE pairing_key = ? AND owner_id = ? AND group_id = ? AND title = ? AND start_time = ?
		ORDER BY created_at, id
		LIMIT 1`,
		key.Digest(), key.OwnerID, key.GroupID, key.Title, formatTime(key.Start),
	)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.CalendarEvent{}, r.mapper.MapError(err)
	}
	return event, nil
}

func (r *eventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.CalendarEvent, error) {
	var (
		where = []string{"owner_id = ?"}
		args  = []any{filter.OwnerID}
	)
	if filter.StartsFrom != nil {
		where = append(where, "start_time >= ?")
		args = append(args, formatTime(*filter.StartsFrom))
	}
	if filter.EndsBy != nil {
		where = append(where, "end_time <= ?")
		args = append(args, formatTime(*filter.EndsBy))
	}
	if filter.EndsAfter != nil {
		where = append(where, "end_time > ?")
		args = append(args, formatTime(*filter.EndsAfter))
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM calendar_events
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY start_time, created_at, id`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var events []persistence.CalendarEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return events, nil
}

func (r *eventRepository) DeleteEvent(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.CalendarEvent, error) {
	var (
		event                      persistence.CalendarEvent
		start, end                 string
		created, updated           string
		room, description, evtType sql.NullString
	)
	if err := row.Scan(
		&event.ID,
		&event.OwnerID,
		&event.GroupID,
		&event.Title,
		&start,
		&end,
		&room,
		&event.Color,
		&event.IsEvent,
		&description,
		&evtType,
		&created,
		&updated,
	); err != nil {
		return persistence.CalendarEvent{}, err
	}

	var err error
	if event.Start, err = parseTime(start); err != nil {
		return persistence.CalendarEvent{}, err
	}
	if event.End, err = parseTime(end); err != nil {
		return persistence.CalendarEvent{}, err
	}
	if event.CreatedAt, err = parseTime(created); err != nil {
		return persistence.CalendarEvent{}, err
	}
	if event.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.CalendarEvent{}, err
	}
	event.Room = stringPtr(room)
	event.Description = stringPtr(description)
	event.EventType = stringPtr(evtType)
	return event, nil
}
