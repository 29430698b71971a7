package dedup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Repository tracks provider event ids that have already been handed to the
// fulfillment worker, so redelivered webhooks become no-ops before they touch
// an order.
type Repository interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}

type repo struct {
	db *sql.DB
}

// NewRepository creates a dedup repository.
func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Seen(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1
		FROM webhook_events_seen
		WHERE event_id = $1
	`, eventID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select seen event: %w", err)
	}
	return true, nil
}

func (r *repo) MarkSeen(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_events_seen (event_id, received_at)
		VALUES ($1, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`, eventID)
	if err != nil {
		return fmt.Errorf("mark event seen: %w", err)
	}
	return nil
}
