// Package pgstore provides a PostgreSQL implementation of
// pipeline.SeenStore, for deployments where dedup must survive restarts
// and be shared between replicas.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var tracer = otel.Tracer("github.com/linnemanlabs/augur/internal/pipeline/pgstore")

//go:embed schema.sql
var schema string

// Store persists processed alert identities in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Seen reports whether identity was already processed.
func (s *Store) Seen(ctx context.Context, identity string) (bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Seen", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	var one int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM seen_alerts WHERE identity = $1`, identity).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("query seen: %w", err)
	}
	return true, nil
}

// MarkSeen records identity as processed. Marking the same identity
// twice is a no-op.
func (s *Store) MarkSeen(ctx context.Context, identity string) error {
	ctx, span := tracer.Start(ctx, "pgstore.MarkSeen", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO seen_alerts (identity) VALUES ($1) ON CONFLICT (identity) DO NOTHING`,
		identity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}
