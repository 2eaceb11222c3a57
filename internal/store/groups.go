package store

import (
	"context"
	"errors"

	"example.com/postfeed/internal/models"
	sq "github.com/Masterminds/squirrel"
)

var groupColumns = []string{"id", "title", "slug", "description"}

// --- Group operations ---

// CreateGroup inserts the group and fills its ID. A duplicate slug yields ErrAlreadyExists.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	err := s.observe(ctx, "create_group", func(ctx context.Context) error {
		query, args, err := s.sb.Insert("post_groups").
			Columns("title", "slug", "description").
			Values(group.Title, group.Slug, group.Description).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		return s.db.QueryRowxContext(ctx, query, args...).Scan(&group.ID)
	})
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		logg.Error("store", "Failed to create group", err)
	}
	return err
}

func (s *Store) GetGroupByID(ctx context.Context, id int64) (models.Group, error) {
	return s.getGroup(ctx, "get_group_by_id", sq.Eq{"id": id})
}

func (s *Store) GetGroupBySlug(ctx context.Context, slug string) (models.Group, error) {
	return s.getGroup(ctx, "get_group_by_slug", sq.Eq{"slug": slug})
}

func (s *Store) getGroup(ctx context.Context, op string, where sq.Eq) (models.Group, error) {
	var group models.Group
	err := s.observe(ctx, op, func(ctx context.Context) error {
		query, args, err := s.sb.Select(groupColumns...).From("post_groups").Where(where).ToSql()
		if err != nil {
			return err
		}
		return s.db.GetContext(ctx, &group, query, args...)
	})
	return group, err
}

// ListGroups returns all groups ordered by title, for the post form's choices.
func (s *Store) ListGroups(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := s.observe(ctx, "list_groups", func(ctx context.Context) error {
		query, args, err := s.sb.Select(groupColumns...).From("post_groups").OrderBy("title", "id").ToSql()
		if err != nil {
			return err
		}
		return s.db.SelectContext(ctx, &groups, query, args...)
	})
	if err != nil {
		logg.Error("store", "Failed to list groups", err)
	}
	return groups, err
}

// DeleteGroup removes the group; its posts stay with group_id set to NULL.
func (s *Store) DeleteGroup(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "delete_group", "post_groups", id)
}
