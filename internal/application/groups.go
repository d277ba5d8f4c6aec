package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dimasikck/teacher-tool/internal/persistence"
)

const (
	placeholderCourse        = "Не указан"
	placeholderEducationForm = "Не указана"
)

// groupPalette is cycled through as groups are created automatically.
var groupPalette = []string{
	"#3788d8", "#e67c73", "#33b679", "#f6bf26", "#8e24aa",
	"#f4511e", "#039be5", "#0b8043", "#7986cb", "#616161",
}

// groupResolver maps group names to the owner's groups inside one
// transaction, creating missing groups on first use.
type groupResolver struct {
	repos       persistence.Repositories
	ownerID     string
	idGenerator func() string
	now         time.Time
	byName      map[string]persistence.Group
	existing    int
	created     []string
}

func newGroupResolver(ctx context.Context, repos persistence.Repositories, ownerID string, idGenerator func() string, now time.Time) (*groupResolver, error) {
	groups, err := repos.Groups.ListGroups(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	byName := make(map[string]persistence.Group, len(groups))
	for _, group := range groups {
		byName[group.Name] = group
	}
	return &groupResolver{
		repos:       repos,
		ownerID:     ownerID,
		idGenerator: idGenerator,
		now:         now,
		byName:      byName,
		existing:    len(groups),
	}, nil
}

func (r *groupResolver) resolve(ctx context.Context, name string) (persistence.Group, error) {
	if group, ok := r.byName[name]; ok {
		return group, nil
	}

	group, err := r.repos.Groups.FindGroupByName(ctx, r.ownerID, name)
	switch {
	case err == nil:
		r.byName[name] = group
		return group, nil
	case !errors.Is(err, persistence.ErrNotFound):
		return persistence.Group{}, fmt.Errorf("find group %q: %w", name, err)
	}

	group = persistence.Group{
		ID:            r.idGenerator(),
		OwnerID:       r.ownerID,
		Name:          name,
		Course:        placeholderCourse,
		EducationForm: placeholderEducationForm,
		Color:         groupPalette[(r.existing+len(r.created))%len(groupPalette)],
		CreatedAt:     r.now,
		UpdatedAt:     r.now,
	}
	if err := r.repos.Groups.CreateGroup(ctx, group); err != nil {
		return persistence.Group{}, fmt.Errorf("create group %q: %w", name, err)
	}
	r.byName[name] = group
	r.created = append(r.created, name)
	return group, nil
}
