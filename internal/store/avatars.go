package store

import (
	"context"
	"errors"

	"example.com/postfeed/internal/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// --- Avatar operations ---

// GetAvatar returns the first avatar of the profile, or ErrNotFound.
func (s *Store) GetAvatar(ctx context.Context, profileID int64) (models.Avatar, error) {
	var avatar models.Avatar
	err := s.observe(ctx, "get_avatar", func(ctx context.Context) error {
		return s.firstAvatar(ctx, s.db, profileID, &avatar)
	})
	return avatar, err
}

// SaveAvatar updates the profile's first avatar, creating it when there is none.
func (s *Store) SaveAvatar(ctx context.Context, profileID int64, image string) (models.Avatar, error) {
	avatar := models.Avatar{ProfileID: profileID, Image: image}
	err := s.observe(ctx, "save_avatar", func(ctx context.Context) error {
		return s.transaction(ctx, func(tx *sqlx.Tx) error {
			var existing models.Avatar
			err := s.firstAvatar(ctx, tx, profileID, &existing)
			switch {
			case err == nil:
				avatar.ID = existing.ID
				query, args, err := s.sb.Update("avatars").
					Set("image", image).
					Where(sq.Eq{"id": existing.ID}).
					ToSql()
				if err != nil {
					return err
				}
				_, err = tx.ExecContext(ctx, query, args...)
				return err
			case errors.Is(translate(err), ErrNotFound):
				query, args, err := s.sb.Insert("avatars").
					Columns("profile_id", "image").
					Values(profileID, image).
					Suffix("RETURNING id").
					ToSql()
				if err != nil {
					return err
				}
				return tx.QueryRowxContext(ctx, query, args...).Scan(&avatar.ID)
			default:
				return err
			}
		})
	})
	if err != nil {
		logg.Error("store", "Failed to save avatar", err)
		return models.Avatar{}, err
	}
	return avatar, nil
}

func (s *Store) firstAvatar(ctx context.Context, q sqlx.QueryerContext, profileID int64, dest *models.Avatar) error {
	query, args, err := s.sb.Select("id", "profile_id", "image").
		From("avatars").
		Where(sq.Eq{"profile_id": profileID}).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, q, dest, query, args...)
}
