// Package postgres persists outreach records with pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitchpilot/outreach/internal/outreach"
)

//go:embed schema.sql
var schema string

const migrationLockID int64 = 7310452

// Store implements outreach.Store on a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ outreach.Store = (*Store)(nil)

// New connects to databaseURL and verifies the connection.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies the schema. Concurrent callers are serialised with an
// advisory lock and every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgCode(err) == uniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == foreignKeyViolation
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, outreach.ErrNotFound)
}

// wrap maps driver errors onto the outreach taxonomy.
func wrap(op, kind, id string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return notFound(kind, id)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, outreach.ErrDuplicate)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: referenced record missing: %w", op, outreach.ErrNotFound)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// nullable stores empty identifiers as NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// limitArg turns a non-positive limit into LIMIT NULL, which is no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
