package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBPool matches the methods from *pgxpool.Pool that the store uses.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Store is the session-scoped cart storage. The storefront writes to it
// while the customer shops; the checkout pipeline reads it exactly once at
// checkout initiation and clears it after successful fulfillment.
type Store interface {
	Get(ctx context.Context, sessionID string) (Snapshot, error)
	Put(ctx context.Context, sessionID string, snap Snapshot) error
	Clear(ctx context.Context, sessionID string) error
}

type PostgresStore struct {
	pool DBPool
}

func NewPostgresStore(pool DBPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the live session cart. A session with no cart row reads as an
// empty cart, not an error.
func (s *PostgresStore) Get(ctx context.Context, sessionID string) (Snapshot, error) {
	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT cart FROM session_carts WHERE session_id=$1`, sessionID)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("select session cart: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode session cart: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) Put(ctx context.Context, sessionID string, snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode session cart: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO session_carts (session_id, cart, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET cart=EXCLUDED.cart, updated_at=now()
	`, sessionID, raw)
	if err != nil {
		return fmt.Errorf("upsert session cart: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM session_carts WHERE session_id=$1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session cart: %w", err)
	}
	return nil
}
