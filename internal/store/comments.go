package store

import (
	"context"

	"example.com/postfeed/internal/models"
	sq "github.com/Masterminds/squirrel"
)

type commentRow struct {
	models.Comment
	AuthorUsername string `db:"author_username"`
}

// --- Comment operations ---

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	if comment.Created.IsZero() {
		comment.Created = s.now()
	}
	err := s.observe(ctx, "create_comment", func(ctx context.Context) error {
		query, args, err := s.sb.Insert("comments").
			Columns("post_id", "author_id", "text", "created_at").
			Values(comment.PostID, comment.AuthorID, comment.Text, comment.Created).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		return s.db.QueryRowxContext(ctx, query, args...).Scan(&comment.ID)
	})
	if err != nil {
		logg.Error("store", "Failed to add comment", err)
	}
	return err
}

// ListComments returns a post's comments in the order they were written.
func (s *Store) ListComments(ctx context.Context, postID int64) ([]models.Comment, error) {
	var rows []commentRow
	err := s.observe(ctx, "list_comments", func(ctx context.Context) error {
		query, args, err := s.sb.Select(
			"c.id", "c.post_id", "c.author_id", "c.text", "c.created_at",
			"u.username AS author_username",
		).
			From("comments c").
			Join("users u ON u.id = c.author_id").
			Where(sq.Eq{"c.post_id": postID}).
			OrderBy("c.created_at", "c.id").
			ToSql()
		if err != nil {
			return err
		}
		return s.db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		logg.Error("store", "Failed to list comments", err)
		return nil, err
	}

	comments := make([]models.Comment, len(rows))
	for i, r := range rows {
		c := r.Comment
		c.Author = &models.User{ID: c.AuthorID, Username: r.AuthorUsername}
		comments[i] = c
	}
	return comments, nil
}
