package store

import (
	"context"
	"errors"

	"example.com/postfeed/internal/models"
)

var activityColumns = []string{"id", "event_id", "kind", "actor_id", "payload", "occurred_at"}

// --- Activity journal ---

// RecordActivity appends an event to the journal. Replaying an event with the
// same EventID returns ErrAlreadyExists and leaves the journal unchanged.
func (s *Store) RecordActivity(ctx context.Context, a models.Activity) error {
	err := s.observe(ctx, "record_activity", func(ctx context.Context) error {
		query, args, err := s.sb.Insert("activity").
			Columns("event_id", "kind", "actor_id", "payload", "occurred_at").
			Values(a.EventID, a.Kind, a.ActorID, a.Payload, a.OccurredAt.UTC()).
			ToSql()
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		logg.Error("store", "Failed to record activity", err)
	}
	return err
}

// ListActivity returns the latest journal entries, newest first.
func (s *Store) ListActivity(ctx context.Context, limit int) ([]models.Activity, error) {
	var out []models.Activity
	err := s.observe(ctx, "list_activity", func(ctx context.Context) error {
		b := s.sb.Select(activityColumns...).From("activity").OrderBy("occurred_at DESC", "id DESC")
		if limit > 0 {
			b = b.Limit(uint64(limit))
		}
		query, args, err := b.ToSql()
		if err != nil {
			return err
		}
		return s.db.SelectContext(ctx, &out, query, args...)
	})
	return out, err
}
