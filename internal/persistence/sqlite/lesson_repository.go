package sqlite

import (
	"context"
	"database/sql"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
)

type lessonRepository struct {
	q      querier
	mapper *ErrorMapper
}

const lessonColumns = `id, owner_id, group_id, topic, lesson_date, notes, room, subject, source, created_at, updated_at`

func (r *lessonRepository) CreateLesson(ctx context.Context, lesson persistence.JournalLesson) error {
	if lesson.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO journal_lessons (`+lessonColumns+`, pairing_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lesson.ID,
		lesson.OwnerID,
		lesson.GroupID,
		lesson.Topic,
		formatTime(lesson.Date),
		nullString(lesson.Notes),
		nullString(lesson.Room),
		nullString(lesson.Subject),
		string(lesson.Source),
		formatTime(lesson.CreatedAt),
		formatTime(lesson.UpdatedAt),
		persistence.LessonKey(lesson).Digest(),
	)
	return r.mapper.MapError(err)
}

func (r *lessonRepository) UpdateLesson(ctx context.Context, lesson persistence.JournalLesson) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE journal_lessons
		SET group_id = ?, topic = ?, lesson_date = ?, notes = ?, room = ?, subject = ?,
			source = ?, updated_at = ?, pairing_key = ?
		WHERE id = ? AND owner_id = ?`,
		lesson.GroupID,
		lesson.Topic,
		formatTime(lesson.Date),
		nullString(lesson.Notes),
		nullString(lesson.Room),
		nullString(lesson.Subject),
		string(lesson.Source),
		formatTime(lesson.UpdatedAt),
		persistence.LessonKey(lesson).Digest(),
		lesson.ID,
		lesson.OwnerID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *lessonRepository) GetLesson(ctx context.Context, id string) (persistence.JournalLesson, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+lessonColumns+` FROM journal_lessons WHERE id = ?`, id)
	lesson, err := scanLesson(row)
	if err != nil {
		return persistence.JournalLesson{}, r.mapper.MapError(err)
	}
	return lesson, nil
}

func (r *lessonRepository) FindLessonByKey(ctx context.Context, key persistence.SessionKey) (persistence.JournalLesson, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+lessonColumns+`
		FROM journal_lessons
		WHERE pairing_key = ? AND owner_id = ? AND group_id = ? AND topic = ? AND lesson_date = ?
		ORDER BY created_at, id
		LIMIT 1`,
		key.Digest(), key.OwnerID, key.GroupID, key.Title, formatTime(key.Start),
	)
	lesson, err := scanLesson(row)
	if err != nil {
		return persistence.JournalLesson{}, r.mapper.MapError(err)
	}
	return lesson, nil
}

func (r *lessonRepository) ListLessons(ctx context.Context, ownerID string) ([]persistence.JournalLesson, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+lessonColumns+`
		FROM journal_lessons
		WHERE owner_id = ?
		ORDER BY lesson_date, created_at, id`, ownerID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var lessons []persistence.JournalLesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return lessons, nil
}

func (r *lessonRepository) DeleteLesson(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM journal_lessons WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func scanLesson(row rowScanner) (persistence.JournalLesson, error) {
	var (
		lesson                persistence.JournalLesson
		date, created, update string
		source                string
		notes, room, subject  sql.NullString
	)
	if err := row.Scan(
		&lesson.ID,
		&lesson.OwnerID,
		&lesson.GroupID,
		&lesson.Topic,
		&date,
		&notes,
		&room,
		&subject,
		&source,
		&created,
		&update,
	); err != nil {
		return persistence.JournalLesson{}, err
	}

	var err error
	if lesson.Date, err = parseTime(date); err != nil {
		return persistence.JournalLesson{}, err
	}
	if lesson.CreatedAt, err = parseTime(created); err != nil {
		return persistence.JournalLesson{}, err
	}
	if lesson.UpdatedAt, err = parseTime(update); err != nil {
		return persistence.JournalLesson{}, err
	}
	lesson.Notes = stringPtr(notes)
	lesson.Room = stringPtr(room)
	lesson.Subject = stringPtr(subject)
	lesson.Source = persistence.LessonSource(source)
	return lesson, nil
}
