package store

import (
	"context"
	"errors"
	"fmt"

	"example.com/postfeed/internal/models"
	sq "github.com/Masterminds/squirrel"
	"golang.org/x/crypto/bcrypt"
)

var userColumns = []string{"id", "username", "password_hash", "created_at"}

// --- User operations ---

// CreateUser stores a new user with a bcrypt-hashed password.
// Returns ErrAlreadyExists when the username is taken.
func (s *Store) CreateUser(ctx context.Context, username, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		PasswordHash: string(hash),
		Created:      s.now(),
	}

	err = s.observe(ctx, "create_user", func(ctx context.Context) error {
		query, args, err := s.sb.Insert("users").
			Columns("username", "password_hash", "created_at").
			Values(user.Username, user.PasswordHash, user.Created).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		return s.db.QueryRowxContext(ctx, query, args...).Scan(&user.ID)
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyExists) {
			logg.Error("store", "Failed to create user", err)
		}
		return models.User{}, err
	}

	logg.Info("store", "User created successfully (username anonymized)")
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	return s.getUser(ctx, "get_user_by_id", sq.Eq{"id": id})
}

// GetUserByUsername returns ErrNotFound when no such user exists.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.getUser(ctx, "get_user_by_username", sq.Eq{"username": username})
}

func (s *Store) getUser(ctx context.Context, op string, where sq.Eq) (models.User, error) {
	var user models.User
	err := s.observe(ctx, op, func(ctx context.Context) error {
		query, args, err := s.sb.Select(userColumns...).From("users").Where(where).ToSql()
		if err != nil {
			return err
		}
		return s.db.GetContext(ctx, &user, query, args...)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		logg.Error("store", "Failed to query user", err)
	}
	return user, err
}

// Authenticate checks the password of the named user.
func (s *Store) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.GetUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// DeleteUser removes the user; posts, comments, follows and avatars go with it.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "delete_user", "users", id)
}

func (s *Store) deleteByID(ctx context.Context, op, table string, id int64) error {
	return s.observe(ctx, op, func(ctx context.Context) error {
		query, args, err := s.sb.Delete(table).Where(sq.Eq{"id": id}).ToSql()
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
}
