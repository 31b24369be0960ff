// Package redisstore provides a Redis implementation of
// pipeline.SeenStore, for deployments that already run Redis and want
// dedup state shared between replicas with bounded retention.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "augur:seen:"

	// seenTTL bounds how long an identity is remembered. Alert files
	// rotate well inside a week.
	seenTTL = 7 * 24 * time.Hour
)

// Store remembers processed alert identities in Redis.
type Store struct {
	client *redis.Client
}

// New connects to the Redis server at addr and verifies the connection.
func New(ctx context.Context, addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{client: client}, nil
}

// Close shuts down the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Seen reports whether identity was already processed.
func (s *Store) Seen(ctx context.Context, identity string) (bool, error) {
	n, err := s.client.Exists(ctx, keyPrefix+identity).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// MarkSeen records identity as processed for the retention window.
func (s *Store) MarkSeen(ctx context.Context, identity string) error {
	if err := s.client.Set(ctx, keyPrefix+identity, 1, seenTTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
