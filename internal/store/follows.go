package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"
)

// --- Follow operations ---

// CreateFollow inserts a follow edge. It does not check for an existing one.
func (s *Store) CreateFollow(ctx context.Context, userID, authorID int64) error {
	err := s.observe(ctx, "create_follow", func(ctx context.Context) error {
		query, args, err := s.sb.Insert("follows").
			Columns("user_id", "author_id").
			Values(userID, authorID).
			ToSql()
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		logg.Error("store", "Failed to create follow relationship", err)
		return err
	}

	logg.Info("store", "Follow relationship created (user IDs anonymized)")
	return nil
}

func (s *Store) FollowExists(ctx context.Context, userID, authorID int64) (bool, error) {
	var n int
	err := s.observe(ctx, "follow_exists", func(ctx context.Context) error {
		query, args, err := s.sb.Select("COUNT(*)").From("follows").
			Where(sq.Eq{"user_id": userID, "author_id": authorID}).
			ToSql()
		if err != nil {
			return err
		}
		return s.db.GetContext(ctx, &n, query, args...)
	})
	return n > 0, err
}

// DeleteFollow removes every edge userID -> authorID, or returns ErrNotFound.
func (s *Store) DeleteFollow(ctx context.Context, userID, authorID int64) error {
	err := s.observe(ctx, "delete_follow", func(ctx context.Context) error {
		query, args, err := s.sb.Delete("follows").
			Where(sq.Eq{"user_id": userID, "author_id": authorID}).
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
	if err == nil {
		logg.Info("store", "Follow relationship deleted (user IDs anonymized)")
	}
	return err
}

// CountFollowers counts users following authorID.
func (s *Store) CountFollowers(ctx context.Context, authorID int64) (int, error) {
	return s.countFollows(ctx, "count_followers", sq.Eq{"author_id": authorID})
}

// CountFollowing counts authors userID follows.
func (s *Store) CountFollowing(ctx context.Context, userID int64) (int, error) {
	return s.countFollows(ctx, "count_following", sq.Eq{"user_id": userID})
}

func (s *Store) countFollows(ctx context.Context, op string, where sq.Eq) (int, error) {
	var n int
	err := s.observe(ctx, op, func(ctx context.Context) error {
		query, args, err := s.sb.Select("COUNT(*)").From("follows").Where(where).ToSql()
		if err != nil {
			return err
		}
		return s.db.GetContext(ctx, &n, query, args...)
	})
	return n, err
}
