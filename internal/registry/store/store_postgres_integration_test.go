//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"soulbound/internal/registry/models"
	"soulbound/internal/registry/ports"
	"soulbound/internal/registry/store"
	id "soulbound/pkg/domain"
	"soulbound/pkg/platform/sentinel"
	"soulbound/pkg/testutil/containers"
)

type PostgresTokenStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	tokens   *store.PostgresTokenStore
	classes  *store.PostgresClassStore
}

func TestPostgresTokenStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresTokenStoreSuite))
}

func (s *PostgresTokenStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.tokens = store.NewPostgresTokenStore(s.postgres.DB)
	s.classes = store.NewPostgresClassStore(s.postgres.DB)
}

func (s *PostgresTokenStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "tokens", "classes")
	s.Require().NoError(err)
}

func newToken(owner, class string, issuedAt time.Time) *models.Token {
	return &models.Token{
		Owner:    id.AccountID(owner),
		IssuerID: id.IssuerID("oracle.human"),
		ClassID:  id.ClassID(class),
		IssuedAt: issuedAt,
	}
}

func (s *PostgresTokenStoreSuite) TestCreate_AssignsMonotonicIDs() {
	ctx := context.Background()
	issuedAt := time.Now().UTC().Truncate(time.Microsecond)

	var last id.TokenID
	for i, owner := range []string{"alice.near", "bob.near", "carol.near"} {
		tokenID, err := s.tokens.Create(ctx, newToken(owner, "kyc-v1", issuedAt), ports.CreateConstraint{})
		s.Require().NoError(err)
		if i > 0 {
			s.Greater(tokenID, last)
		}
		last = tokenID
	}
}

func (s *PostgresTokenStoreSuite) TestCreate_UniqueRejectsActiveDuplicate() {
	ctx := context.Background()
	issuedAt := time.Now().UTC().Truncate(time.Microsecond)
	constraint := ports.CreateConstraint{Unique: true}

	_, err := s.tokens.Create(ctx, newToken("alice.near", "kyc-v1", issuedAt), constraint)
	s.Require().NoError(err)

	_, err = s.tokens.Create(ctx, newToken("alice.near", "kyc-v1", issuedAt.Add(time.Minute)), constraint)
	s.ErrorIs(err, sentinel.ErrConflict)

	// Same class for a different owner is unaffected.
	_, err = s.tokens.Create(ctx, newToken("bob.near", "kyc-v1", issuedAt), constraint)
	s.NoError(err)
}

func (s *PostgresTokenStoreSuite) TestCreate_AllowedAgainAfterRevocation() {
	ctx := context.Background()
	issuedAt := time.Now().UTC().Truncate(time.Microsecond)
	constraint := ports.CreateConstraint{Unique: true}

	first := newToken("alice.near", "kyc-v1", issuedAt)
	firstID, err := s.tokens.Create(ctx, first, constraint)
	s.Require().NoError(err)

	stored, err := s.tokens.Get(ctx, firstID)
	s.Require().NoError(err)
	revokedAt := issuedAt.Add(time.Minute)
	stored.Revoked = true
	stored.RevokedAt = &revokedAt
	s.Require().NoError(s.tokens.Update(ctx, stored))

	secondID, err := s.tokens.Create(ctx, newToken("alice.near", "kyc-v1", issuedAt.Add(2*time.Minute)), constraint)
	s.Require().NoError(err)
	s.Greater(secondID, firstID)
}

func (s *PostgresTokenStoreSuite) TestCreate_AllowedAgainAfterExpiry() {
	ctx := context.Background()
	issuedAt := time.Now().UTC().Truncate(time.Microsecond)
	constraint := ports.CreateConstraint{Unique: true}

	expired := newToken("alice.near", "kyc-v1", issuedAt)
	expiresAt := issuedAt.Add(time.Hour)
	expired.ExpiresAt = &expiresAt
	_, err := s.tokens.Create(ctx, expired, constraint)
	s.Require().NoError(err)

	// While the first token is still active the duplicate is rejected.
	_, err = s.tokens.Create(ctx, newToken("alice.near", "kyc-v1", issuedAt.Add(30*time.Minute)), constraint)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// Once the request time passes the expiry the slot frees up.
	_, err = s.tokens.Create(ctx, newToken("alice.near", "kyc-v1", issuedAt.Add(2*time.Hour)), constraint)
	s.NoError(err)
}

func (s *PostgresTokenStoreSuite) TestCreate_MaxPerOwnerCapsActiveSupply() {
	ctx := context.Background()
	issuedAt := time.Now().UTC().Truncate(time.Microsecond)
	constraint := ports.CreateConstraint{MaxPerOwner: 2}

	for i := 0; i < 2; i++ {
		_, err := s.tokens.Create(ctx, newToken("alice.near", "badge-v1", issuedAt), constraint)
		s.Require().NoError(err)
	}

	_, err := s.tokens.Create(ctx, newToken("alice.near", "badge-v1", issuedAt), constraint)
	s.ErrorIs(err, sentinel.ErrExhausted)

	// The cap is per owner.
	_, err = s.tokens.Create(ctx, newToken("bob.near", "badge-v1", issuedAt), constraint)
	s.NoError(err)
}

func (s *PostgresTokenStoreSuite) TestCreate_ConcurrentUniqueAdmitsExactlyOne() {
	ctx := context.Background()
	issuedAt := time.Now().UTC().Truncate(time.Microsecond)
	constraint := ports.CreateConstraint{Unique: true}

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.tokens.Create(ctx, newToken("alice.near", "kyc-v1", issuedAt), constraint)
		}(i)
	}
	wg.Wait()

	var created, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		default:
			s.Require().ErrorIs(err, sentinel.ErrConflict)
			conflicts++
		}
	}
	s.Equal(1, created)
	s.Equal(attempts-1, conflicts)
}

func (s *PostgresTokenStoreSuite) TestListByOwner_PaginatesByTokenID() {
	ctx := context.Background()
	issuedAt := time.Now().UTC().Truncate(time.Microsecond)

	var ids []id.TokenID
	for i := 0; i < 5; i++ {
		tokenID, err := s.tokens.Create(ctx, newToken("alice.near", "badge-v1", issuedAt), ports.CreateConstraint{})
		s.Require().NoError(err)
		ids = append(ids, tokenID)
	}
	_, err := s.tokens.Create(ctx, newToken("bob.near", "badge-v1", issuedAt), ports.CreateConstraint{})
	s.Require().NoError(err)

	page, err := s.tokens.ListByOwner(ctx, "alice.near", 0, 2)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(ids[0], page[0].ID)
	s.Equal(ids[1], page[1].ID)

	page, err = s.tokens.ListByOwner(ctx, "alice.near", page[1].ID+1, 10)
	s.Require().NoError(err)
	s.Require().Len(page, 3)
	s.Equal(ids[2], page[0].ID)
	s.Equal(ids[4], page[2].ID)
}

func (s *PostgresTokenStoreSuite) TestCounts_ExcludeRevokedAndExpired() {
	ctx := context.Background()
	issuedAt := time.Now().UTC().Truncate(time.Microsecond)

	_, err := s.tokens.Create(ctx, newToken("alice.near", "kyc-v1", issuedAt), ports.CreateConstraint{})
	s.Require().NoError(err)

	revoked := newToken("alice.near", "badge-v1", issuedAt)
	revokedID, err := s.tokens.Create(ctx, revoked, ports.CreateConstraint{})
	s.Require().NoError(err)
	stored, err := s.tokens.Get(ctx, revokedID)
	s.Require().NoError(err)
	revokedAt := issuedAt.Add(time.Minute)
	stored.Revoked = true
	stored.RevokedAt = &revokedAt
	s.Require().NoError(s.tokens.Update(ctx, stored))

	expired := newToken("alice.near", "temp-v1", issuedAt)
	expiresAt := issuedAt.Add(time.Hour)
	expired.ExpiresAt = &expiresAt
	_, err = s.tokens.Create(ctx, expired, ports.CreateConstraint{})
	s.Require().NoError(err)

	later := issuedAt.Add(2 * time.Hour)
	byOwner, err := s.tokens.CountActiveByOwner(ctx, "alice.near", later)
	s.Require().NoError(err)
	s.Equal(int64(1), byOwner)

	byIssuer, err := s.tokens.CountActiveByIssuer(ctx, "oracle.human", later)
	s.Require().NoError(err)
	s.Equal(int64(1), byIssuer)
}

func (s *PostgresTokenStoreSuite) TestSweep_RemovesOnlyDefunctTokens() {
	ctx := context.Background()
	issuedAt := time.Now().UTC().Truncate(time.Microsecond)

	keepID, err := s.tokens.Create(ctx, newToken("alice.near", "kyc-v1", issuedAt), ports.CreateConstraint{})
	s.Require().NoError(err)

	expired := newToken("bob.near", "kyc-v1", issuedAt)
	expiresAt := issuedAt.Add(time.Hour)
	expired.ExpiresAt = &expiresAt
	expiredID, err := s.tokens.Create(ctx, expired, ports.CreateConstraint{})
	s.Require().NoError(err)

	revoked := newToken("carol.near", "kyc-v1", issuedAt)
	revokedID, err := s.tokens.Create(ctx, revoked, ports.CreateConstraint{})
	s.Require().NoError(err)
	stored, err := s.tokens.Get(ctx, revokedID)
	s.Require().NoError(err)
	revokedAt := issuedAt.Add(time.Minute)
	stored.Revoked = true
	stored.RevokedAt = &revokedAt
	s.Require().NoError(s.tokens.Update(ctx, stored))

	removed, err := s.tokens.Sweep(ctx, issuedAt.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(2), removed)

	_, err = s.tokens.Get(ctx, keepID)
	s.NoError(err)
	_, err = s.tokens.Get(ctx, expiredID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.tokens.Get(ctx, revokedID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresTokenStoreSuite) TestGet_RoundTripsFields() {
	ctx := context.Background()
	issuedAt := time.Now().UTC().Truncate(time.Microsecond)

	token := newToken("alice.near", "kyc-v1", issuedAt)
	expiresAt := issuedAt.Add(24 * time.Hour)
	token.ExpiresAt = &expiresAt

	tokenID, err := s.tokens.Create(ctx, token, ports.CreateConstraint{})
	s.Require().NoError(err)

	got, err := s.tokens.Get(ctx, tokenID)
	s.Require().NoError(err)
	s.Equal(tokenID, got.ID)
	s.Equal(id.AccountID("alice.near"), got.Owner)
	s.Equal(id.IssuerID("oracle.human"), got.IssuerID)
	s.Equal(id.ClassID("kyc-v1"), got.ClassID)
	s.True(got.IssuedAt.Equal(issuedAt))
	s.Require().NotNil(got.ExpiresAt)
	s.True(got.ExpiresAt.Equal(expiresAt))
	s.False(got.Revoked)
	s.Nil(got.RevokedAt)
}

func (s *PostgresTokenStoreSuite) TestClassStore_CreateGetList() {
	ctx := context.Background()

	class := &models.Class{
		ID:                  "kyc-v1",
		Stackable:           false,
		DefaultValidity:     24 * time.Hour,
		MaxSupplyPerAccount: 3,
		CreatedAt:           time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.classes.Create(ctx, class))

	s.ErrorIs(s.classes.Create(ctx, class), sentinel.ErrConflict)

	got, err := s.classes.Get(ctx, "kyc-v1")
	s.Require().NoError(err)
	s.Equal(class.ID, got.ID)
	s.Equal(class.DefaultValidity, got.DefaultValidity)
	s.Equal(class.MaxSupplyPerAccount, got.MaxSupplyPerAccount)

	_, err = s.classes.Get(ctx, "missing-v1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.classes.Create(ctx, &models.Class{ID: "badge-v1", Stackable: true, CreatedAt: class.CreatedAt}))
	all, err := s.classes.List(ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}
