// Package idempotency makes client retries of write operations safe by
// remembering the result of the first attempt under a caller-supplied key.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Store maps (tenant, idempotency key) to the ID of the resource the first
// attempt produced. Redis-backed; when Redis is unavailable it degrades to
// non-idempotent behavior with a warning rather than failing writes.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewStore creates a new idempotency store. A nil client disables it.
func NewStore(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl, logger: logger}
}

// Enabled reports whether a backing Redis client is configured
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *Store) redisKey(tenantID uuid.UUID, key string) string {
	return fmt.Sprintf("idem:%s:%s", tenantID, key)
}

// Lookup returns the resource ID stored for the key, if any
func (s *Store) Lookup(ctx context.Context, tenantID uuid.UUID, key string) (uuid.UUID, bool) {
	if !s.Enabled() || key == "" {
		return uuid.Nil, false
	}

	val, err := s.client.Get(ctx, s.redisKey(tenantID, key)).Result()
	if err == redis.Nil {
		return uuid.Nil, false
	}
	if err != nil {
		s.logger.WithError(err).Warn("Idempotency lookup failed, treating request as new")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(val)
	if err != nil {
		s.logger.WithField("value", val).Warn("Corrupt idempotency entry, ignoring")
		return uuid.Nil, false
	}
	return id, true
}

// Save records the resource ID produced under the key. First writer wins;
// a replayed request keeps returning the original result.
func (s *Store) Save(ctx context.Context, tenantID uuid.UUID, key string, resourceID uuid.UUID) {
	if !s.Enabled() || key == "" {
		return
	}

	if err := s.client.SetNX(ctx, s.redisKey(tenantID, key), resourceID.String(), s.ttl).Err(); err != nil {
		s.logger.WithError(err).Warn("Failed to save idempotency entry")
	}
}
