// Package repository is the PostgreSQL persistence layer. Every write that
// has to satisfy a cross-table invariant runs in a single transaction.
package repository

import (
	"context"
	"database/sql"
	"time"

	"tasktracker/internal/models"
)

// Store wraps the connection pool.
type Store struct {
	db *sql.DB

	// Now is the clock used for "today" checks.
	Now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, Now: time.Now}
}

func (s *Store) today() models.Date {
	return models.DateOf(s.Now())
}

// Ping checks the connection, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
