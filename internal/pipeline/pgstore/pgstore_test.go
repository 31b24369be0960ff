package pgstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/augur/internal/pipeline/pgstore"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("AUGUR_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("AUGUR_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func TestSeenMarkSeen(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	identity := "test-" + ulid.Make().String()

	seen, err := s.Seen(ctx, identity)
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Error("fresh identity reported as seen")
	}

	if err := s.MarkSeen(ctx, identity); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	seen, err = s.Seen(ctx, identity)
	if err != nil {
		t.Fatalf("Seen after mark: %v", err)
	}
	if !seen {
		t.Error("marked identity not reported as seen")
	}
}

func TestMarkSeenIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	identity := "test-" + ulid.Make().String()
	if err := s.MarkSeen(ctx, identity); err != nil {
		t.Fatalf("first MarkSeen: %v", err)
	}
	if err := s.MarkSeen(ctx, identity); err != nil {
		t.Fatalf("second MarkSeen: %v", err)
	}
}
