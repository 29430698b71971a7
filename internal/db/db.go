package db

import (
	"context"
	"database/sql"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// Open opens a database connection without pinging.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}

// MustOpen returns an open and verified database connection.
func MustOpen(dsn string) *sql.DB {
	if dsn == "" {
		log.Fatal("CHECKOUT_DB_DSN not set")
	}

	conn, err := Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	if err := conn.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	return conn
}

// NewPool creates a pgx pool. The session cart store uses pgx directly
// instead of database/sql.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	return pgxpool.NewWithConfig(ctx, cfg)
}
