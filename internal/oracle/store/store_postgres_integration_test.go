//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulbound/internal/oracle/models"
	"soulbound/internal/oracle/store"
	"soulbound/internal/platform/logger"
	platformredis "soulbound/internal/platform/redis"
	id "soulbound/pkg/domain"
	"soulbound/pkg/platform/sentinel"
	"soulbound/pkg/testutil/containers"
)

type PostgresNonceStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresNonceStore
}

func TestPostgresNonceStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresNonceStoreSuite))
}

func (s *PostgresNonceStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresNonceStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "consumed_claims")
	s.Require().NoError(err)
}

func record(externalID string) models.NonceRecord {
	return models.NonceRecord{
		ExternalID: id.ExternalClaimID("claim-" + externalID),
		Recipient:  "alice.near",
		ConsumedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresNonceStoreSuite) TestConsume_ExactlyOnce() {
	ctx := context.Background()

	consumed, err := s.store.Consumed(ctx, "claim-001")
	s.Require().NoError(err)
	s.False(consumed)

	s.Require().NoError(s.store.Consume(ctx, record("001")))

	consumed, err = s.store.Consumed(ctx, "claim-001")
	s.Require().NoError(err)
	s.True(consumed)

	s.ErrorIs(s.store.Consume(ctx, record("001")), sentinel.ErrConflict)
}

func (s *PostgresNonceStoreSuite) TestConsume_ConcurrentAdmitsExactlyOne() {
	ctx := context.Background()
	const workers = 32

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.store.Consume(ctx, record("contested"))
		}(i)
	}
	wg.Wait()

	var winners int
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			s.Require().ErrorIs(err, sentinel.ErrConflict)
		}
	}
	s.Equal(1, winners)
}

func (s *PostgresNonceStoreSuite) TestConsumed_IsolatedPerClaim() {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Require().NoError(s.store.Consume(ctx, record(fmt.Sprintf("%03d", i))))
	}

	consumed, err := s.store.Consumed(ctx, "claim-002")
	s.Require().NoError(err)
	s.True(consumed)

	consumed, err = s.store.Consumed(ctx, "claim-999")
	s.Require().NoError(err)
	s.False(consumed)
}

type CachedNonceStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redis    *containers.RedisContainer
	cache    *platformredis.Client
	store    *store.CachedNonceStore
}

func TestCachedNonceStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedNonceStoreSuite))
}

func (s *CachedNonceStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redis = mgr.GetRedis(s.T())

	cache, err := platformredis.New(s.redis.Addr)
	s.Require().NoError(err)
	s.Require().NotNil(cache)
	s.cache = cache

	s.store = store.NewCached(store.NewPostgres(s.postgres.DB), cache, logger.New("error"))
}

func (s *CachedNonceStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "consumed_claims"))
	s.Require().NoError(s.redis.FlushAll(ctx))
}

func (s *CachedNonceStoreSuite) TestConsume_FillsCache() {
	ctx := context.Background()

	s.Require().NoError(s.store.Consume(ctx, record("cached")))

	hit, err := s.cache.Exists(ctx, "soulbound:nonce:claim-cached").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), hit)

	consumed, err := s.store.Consumed(ctx, "claim-cached")
	s.Require().NoError(err)
	s.True(consumed)
}

func (s *CachedNonceStoreSuite) TestConsumed_CacheMissFallsThrough() {
	ctx := context.Background()

	// Seed the durable store directly so the cache starts cold.
	durable := store.NewPostgres(s.postgres.DB)
	s.Require().NoError(durable.Consume(ctx, record("cold")))

	consumed, err := s.store.Consumed(ctx, "claim-cold")
	s.Require().NoError(err)
	s.True(consumed)

	// The read-through fill makes the next lookup a cache hit.
	hit, err := s.cache.Exists(ctx, "soulbound:nonce:claim-cold").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), hit)
}

func (s *CachedNonceStoreSuite) TestConsume_ConflictDoesNotFillCache() {
	ctx := context.Background()

	durable := store.NewPostgres(s.postgres.DB)
	s.Require().NoError(durable.Consume(ctx, record("taken")))

	s.Require().ErrorIs(s.store.Consume(ctx, record("taken")), sentinel.ErrConflict)
}
