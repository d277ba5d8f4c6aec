package sqlite

import (
	"context"
	"database/sql"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
)

type attendanceRepository struct {
	q      querier
	mapper *ErrorMapper
}

func (r *attendanceRepository) CreateAttendance(ctx context.Context, attendance persistence.Attendance) error {
	if attendance.ID == "" {
		return persistence.ErrConstraintViolation
	}
	var mark sql.NullInt64
	if attendance.Mark != nil {
		mark = sql.NullInt64{Int64: int64(*attendance.Mark), Valid: true}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO attendance (id, lesson_id, student_id, present, mark, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		attendance.ID,
		attendance.LessonID,
		attendance.StudentID,
		attendance.Present,
		mark,
		formatTime(attendance.CreatedAt),
	)
	return r.mapper.MapError(err)
}

func (r *attendanceRepository) ListAttendance(ctx context.Context, lessonID string) ([]persistence.Attendance, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, lesson_id, student_id, present, mark, created_at
		FROM attendance
		WHERE lesson_id = ?
		ORDER BY student_id, id`, lessonID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var records []persistence.Attendance
	for rows.Next() {
		var (
			record  persistence.Attendance
			mark    sql.NullInt64
			created string
		)
		if err := rows.Scan(&record.ID, &record.LessonID, &record.StudentID, &record.Present, &mark, &created); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if mark.Valid {
			m := int(mark.Int64)
			record.Mark = &m
		}
		if record.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return records, nil
}

func (r *attendanceRepository) DeleteAttendanceForLesson(ctx context.Context, lessonID string) (int, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM attendance WHERE lesson_id = ?`, lessonID)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
