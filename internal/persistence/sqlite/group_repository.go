package sqlite

import (
	"context"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
)

type groupRepository struct {
	q      querier
	mapper *ErrorMapper
}

const groupColumns = `id, owner_id, name, course, education_form, color, created_at, updated_at`

func (r *groupRepository) CreateGroup(ctx context.Context, group persistence.Group) error {
	if group.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO groups (`+groupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		group.ID,
		group.OwnerID,
		group.Name,
		group.Course,
		group.EducationForm,
		group.Color,
		formatTime(group.CreatedAt),
		formatTime(group.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

func (r *groupRepository) GetGroup(ctx context.Context, id string) (persistence.Group, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = ?`, id)
	group, err := scanGroup(row)
	if err != nil {
		return persistence.Group{}, r.mapper.MapError(err)
	}
	return group, nil
}

func (r *groupRepository) FindGroupByName(ctx context.Context, ownerID, name string) (persistence.Group, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE owner_id = ? AND name = ?`, ownerID, name)
	group, err := scanGroup(row)
	if err != nil {
		return persistence.Group{}, r.mapper.MapError(err)
	}
	return group, nil
}

func (r *groupRepository) ListGroups(ctx context.Context, ownerID string) ([]persistence.Group, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE owner_id = ? ORDER BY name, id`, ownerID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var groups []persistence.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return groups, nil
}

func scanGroup(row rowScanner) (persistence.Group, error) {
	var (
		group            persistence.Group
		created, updated string
	)
	if err := row.Scan(
		&group.ID,
		&group.OwnerID,
		&group.Name,
		&group.Course,
		&group.EducationForm,
		&group.Color,
		&created,
		&updated,
	); err != nil {
		return persistence.Group{}, err
	}

	var err error
	if group.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Group{}, err
	}
	if group.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Group{}, err
	}
	return group, nil
}
