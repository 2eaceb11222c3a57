package store

import (
	"context"
	"database/sql"

	"example.com/postfeed/internal/models"
	sq "github.com/Masterminds/squirrel"
)

// postRow is a post joined with its author and optional group.
type postRow struct {
	models.Post
	AuthorUsername   string         `db:"author_username"`
	GroupTitle       sql.NullString `db:"group_title"`
	GroupSlug        sql.NullString `db:"group_slug"`
	GroupDescription sql.NullString `db:"group_description"`
}

func (r postRow) toPost() models.Post {
	p := r.Post
	p.Author = &models.User{ID: p.AuthorID, Username: r.AuthorUsername}
	if p.GroupID.Valid {
		p.Group = &models.Group{
			ID:          p.GroupID.Int64,
			Title:       r.GroupTitle.String,
			Slug:        r.GroupSlug.String,
			Description: r.GroupDescription.String,
		}
	}
	return p
}

func (s *Store) selectPosts() sq.SelectBuilder {
	return s.sb.Select(
		"p.id", "p.text", "p.pub_date", "p.author_id", "p.group_id", "p.image",
		"u.username AS author_username",
		"g.title AS group_title",
		"g.slug AS group_slug",
		"g.description AS group_description",
	).
		From("posts p").
		Join("users u ON u.id = p.author_id").
		LeftJoin("post_groups g ON g.id = p.group_id")
}

func applyPostFilter(b sq.SelectBuilder, f PostFilter) sq.SelectBuilder {
	if f.AuthorID != 0 {
		b = b.Where(sq.Eq{"p.author_id": f.AuthorID})
	}
	if f.GroupID != 0 {
		b = b.Where(sq.Eq{"p.group_id": f.GroupID})
	}
	if f.FollowerID != 0 {
		b = b.Where("p.author_id IN (SELECT f.author_id FROM follows f WHERE f.user_id = ?)", f.FollowerID)
	}
	return b
}

// --- Post operations ---

// CreatePost inserts the post, stamping pub_date when it is unset.
func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	if post.PubDate.IsZero() {
		post.PubDate = s.now()
	}
	err := s.observe(ctx, "create_post", func(ctx context.Context) error {
		query, args, err := s.sb.Insert("posts").
			Columns("text", "pub_date", "author_id", "group_id", "image").
			Values(post.Text, post.PubDate, post.AuthorID, post.GroupID, post.Image).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		return s.db.QueryRowxContext(ctx, query, args...).Scan(&post.ID)
	})
	if err != nil {
		logg.Error("store", "Failed to add post", err)
		return err
	}

	logg.Info("store", "Post added to posts table (post content anonymized)")
	return nil
}

// UpdatePost saves the editable fields: text, group and image.
func (s *Store) UpdatePost(ctx context.Context, post *models.Post) error {
	err := s.observe(ctx, "update_post", func(ctx context.Context) error {
		query, args, err := s.sb.Update("posts").
			Set("text", post.Text).
			Set("group_id", post.GroupID).
			Set("image", post.Image).
			Where(sq.Eq{"id": post.ID}).
			ToSql()
		if err != nil {
			return err
		}
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		logg.Error("store", "Failed to update post", err)
	}
	return err
}

// GetPost loads a post by id, requiring it to belong to the named author.
func (s *Store) GetPost(ctx context.Context, authorUsername string, id int64) (models.Post, error) {
	var row postRow
	err := s.observe(ctx, "get_post", func(ctx context.Context) error {
		query, args, err := s.selectPosts().
			Where(sq.Eq{"p.id": id, "u.username": authorUsername}).
			ToSql()
		if err != nil {
			return err
		}
		return s.db.GetContext(ctx, &row, query, args...)
	})
	if err != nil {
		return models.Post{}, err
	}
	return row.toPost(), nil
}

func (s *Store) CountPosts(ctx context.Context, filter PostFilter) (int, error) {
	var n int
	err := s.observe(ctx, "count_posts", func(ctx context.Context) error {
		query, args, err := applyPostFilter(s.sb.Select("COUNT(*)").From("posts p"), filter).ToSql()
		if err != nil {
			return err
		}
		return s.db.GetContext(ctx, &n, query, args...)
	})
	if err != nil {
		logg.Error("store", "Failed to count posts", err)
	}
	return n, err
}

// ListPosts returns posts newest first.
func (s *Store) ListPosts(ctx context.Context, filter PostFilter, limit, offset int) ([]models.Post, error) {
	var rows []postRow
	err := s.observe(ctx, "list_posts", func(ctx context.Context) error {
		b := applyPostFilter(s.selectPosts(), filter).OrderBy("p.pub_date DESC", "p.id DESC")
		if limit > 0 {
			b = b.Limit(uint64(limit)).Offset(uint64(offset))
		}
		query, args, err := b.ToSql()
		if err != nil {
			return err
		}
		return s.db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		logg.Error("store", "Failed to list posts", err)
		return nil, err
	}

	posts := make([]models.Post, len(rows))
	for i, r := range rows {
		posts[i] = r.toPost()
	}
	return posts, nil
}

// DeletePost removes the post and its comments.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "delete_post", "posts", id)
}
