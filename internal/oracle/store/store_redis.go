package store

import (
	"context"
	"log/slog"

	"soulbound/internal/oracle/models"
	"soulbound/internal/oracle/ports"
	"soulbound/internal/platform/redis"
	id "soulbound/pkg/domain"
)

const nonceKeyPrefix = "soulbound:nonce:"

// CachedNonceStore puts a Redis set-membership fast path in front of a
// durable nonce store. The cache is advisory: a miss falls through to the
// backing store, and cache failures never fail the request. The backing
// store remains the source of truth for exactly-once consumption.
type CachedNonceStore struct {
	backing ports.NonceStore
	cache   *redis.Client
	logger  *slog.Logger
}

func NewCached(backing ports.NonceStore, cache *redis.Client, logger *slog.Logger) *CachedNonceStore {
	return &CachedNonceStore{backing: backing, cache: cache, logger: logger}
}

var _ ports.NonceStore = (*CachedNonceStore)(nil)

func (s *CachedNonceStore) Consumed(ctx context.Context, externalID id.ExternalClaimID) (bool, error) {
	if hit, err := s.cache.Exists(ctx, nonceKey(externalID)).Result(); err == nil && hit > 0 {
		return true, nil
	} else if err != nil {
		s.logger.WarnContext(ctx, "nonce cache read failed", "error", err.Error())
	}

	consumed, err := s.backing.Consumed(ctx, externalID)
	if err != nil {
		return false, err
	}
	if consumed {
		s.fill(ctx, externalID)
	}
	return consumed, nil
}

func (s *CachedNonceStore) Consume(ctx context.Context, record models.NonceRecord) error {
	// Write-after-commit: the cache is only filled once the durable
	// store has accepted the record.
	if err := s.backing.Consume(ctx, record); err != nil {
		return err
	}
	s.fill(ctx, record.ExternalID)
	return nil
}

func (s *CachedNonceStore) fill(ctx context.Context, externalID id.ExternalClaimID) {
	// Consumed nonces never expire, so no TTL.
	if err := s.cache.Set(ctx, nonceKey(externalID), "1", 0).Err(); err != nil {
		s.logger.WarnContext(ctx, "nonce cache write failed", "error", err.Error())
	}
}

func nonceKey(externalID id.ExternalClaimID) string {
	return nonceKeyPrefix + externalID.String()
}
