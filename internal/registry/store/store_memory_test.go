package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soulbound/internal/registry/models"
	"soulbound/internal/registry/ports"
	id "soulbound/pkg/domain"
	"soulbound/pkg/platform/sentinel"
)

func token(owner, issuer, class string, issuedAt time.Time, ttl time.Duration) *models.Token {
	t := &models.Token{
		Owner:    id.AccountID(owner),
		IssuerID: id.IssuerID(issuer),
		ClassID:  id.ClassID(class),
		IssuedAt: issuedAt,
	}
	if ttl > 0 {
		exp := issuedAt.Add(ttl)
		t.ExpiresAt = &exp
	}
	return t
}

func TestInMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	t.Run("ids are assigned monotonically", func(t *testing.T) {
		store := NewMemoryTokenStore()
		first, err := store.Create(ctx, token("alice", "iss", "a", now, time.Hour), ports.CreateConstraint{})
		require.NoError(t, err)
		second, err := store.Create(ctx, token("bob", "iss", "a", now, time.Hour), ports.CreateConstraint{})
		require.NoError(t, err)
		assert.Greater(t, second, first)
	})

	t.Run("unique constraint rejects active duplicate", func(t *testing.T) {
		store := NewMemoryTokenStore()
		_, err := store.Create(ctx, token("alice", "iss", "a", now, time.Hour), ports.CreateConstraint{Unique: true})
		require.NoError(t, err)

		_, err = store.Create(ctx, token("alice", "iss", "a", now, time.Hour), ports.CreateConstraint{Unique: true})
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("unique constraint ignores expired and revoked tokens", func(t *testing.T) {
		store := NewMemoryTokenStore()
		first := token("alice", "iss", "a", now, time.Hour)
		_, err := store.Create(ctx, first, ports.CreateConstraint{Unique: true})
		require.NoError(t, err)

		// After expiry a new token may be created.
		later := now.Add(2 * time.Hour)
		_, err = store.Create(ctx, token("alice", "iss", "a", later, time.Hour), ports.CreateConstraint{Unique: true})
		require.NoError(t, err)
	})

	t.Run("unique constraint is scoped to the issuer", func(t *testing.T) {
		store := NewMemoryTokenStore()
		_, err := store.Create(ctx, token("alice", "iss-one", "a", now, time.Hour), ports.CreateConstraint{Unique: true})
		require.NoError(t, err)

		_, err = store.Create(ctx, token("alice", "iss-two", "a", now, time.Hour), ports.CreateConstraint{Unique: true})
		require.NoError(t, err)
	})

	t.Run("per-owner supply cap spans issuers", func(t *testing.T) {
		store := NewMemoryTokenStore()
		_, err := store.Create(ctx, token("alice", "iss-one", "a", now, time.Hour), ports.CreateConstraint{MaxPerOwner: 2})
		require.NoError(t, err)
		_, err = store.Create(ctx, token("alice", "iss-two", "a", now, time.Hour), ports.CreateConstraint{MaxPerOwner: 2})
		require.NoError(t, err)

		_, err = store.Create(ctx, token("alice", "iss-three", "a", now, time.Hour), ports.CreateConstraint{MaxPerOwner: 2})
		assert.ErrorIs(t, err, sentinel.ErrExhausted)
	})

	t.Run("sweep removes only dead tokens", func(t *testing.T) {
		store := NewMemoryTokenStore()
		live, err := store.Create(ctx, token("alice", "iss", "a", now, 2*time.Hour), ports.CreateConstraint{})
		require.NoError(t, err)
		_, err = store.Create(ctx, token("alice", "iss", "b", now, time.Minute), ports.CreateConstraint{})
		require.NoError(t, err)

		revoked := token("alice", "iss", "c", now, 0)
		_, err = store.Create(ctx, revoked, ports.CreateConstraint{})
		require.NoError(t, err)
		revoked.Revoked = true
		require.NoError(t, store.Update(ctx, revoked))

		removed, err := store.Sweep(ctx, now.Add(time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 2, removed)

		remaining, err := store.ListByOwner(ctx, id.AccountID("alice"), 0, 0)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, live, remaining[0].ID)
	})
}

func TestInMemoryClassStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryClassStore()

	require.NoError(t, store.Create(ctx, &models.Class{ID: id.ClassID("a"), Stackable: true}))
	assert.ErrorIs(t, store.Create(ctx, &models.Class{ID: id.ClassID("a")}), sentinel.ErrConflict)

	got, err := store.Get(ctx, id.ClassID("a"))
	require.NoError(t, err)
	assert.True(t, got.Stackable)

	_, err = store.Get(ctx, id.ClassID("missing"))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
