package ports

import (
	"context"
	"time"

	"soulbound/internal/registry/models"
	id "soulbound/pkg/domain"
)

// CreateConstraint carries the class rules a token store enforces
// atomically with insertion.
type CreateConstraint struct {
	// Unique rejects the insert when an active token already exists for
	// the token's (owner, issuer, class) triple.
	Unique bool
	// MaxPerOwner caps active tokens of the class for the owner across
	// issuers. Zero means uncapped.
	MaxPerOwner int64
}

// TokenStore persists token records and assigns monotonically increasing
// token ids. Implementations return sentinel errors; services translate.
type TokenStore interface {
	// Create inserts the token and assigns its id. The uniqueness and
	// supply checks run atomically with the insert, evaluated at the
	// token's IssuedAt. Returns sentinel.ErrConflict on an active
	// duplicate and sentinel.ErrExhausted when MaxPerOwner is reached.
	Create(ctx context.Context, token *models.Token, constraint CreateConstraint) (id.TokenID, error)

	Get(ctx context.Context, tokenID id.TokenID) (*models.Token, error)

	// Update rewrites the token's mutable fields (expiry, revocation).
	Update(ctx context.Context, token *models.Token) error

	// ListByOwner returns the owner's tokens ordered by token id,
	// starting at fromID inclusive. A limit of zero means no limit.
	ListByOwner(ctx context.Context, owner id.AccountID, fromID id.TokenID, limit int) ([]*models.Token, error)

	// ActiveByOwnerClass returns the owner's active tokens of a class at
	// the given time, across issuers.
	ActiveByOwnerClass(ctx context.Context, owner id.AccountID, classID id.ClassID, now time.Time) ([]*models.Token, error)

	CountActiveByIssuer(ctx context.Context, issuerID id.IssuerID, now time.Time) (int64, error)
	CountActiveByOwner(ctx context.Context, owner id.AccountID, now time.Time) (int64, error)

	// Sweep physically removes tokens that are revoked or expired at the
	// given time and reports how many were removed.
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// ClassStore persists credential classes. Class ids are immutable once
// created.
type ClassStore interface {
	// Create registers a class. Returns sentinel.ErrConflict when the id
	// is taken.
	Create(ctx context.Context, class *models.Class) error
	Get(ctx context.Context, classID id.ClassID) (*models.Class, error)
	List(ctx context.Context) ([]*models.Class, error)
}
