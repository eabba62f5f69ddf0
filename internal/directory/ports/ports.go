package ports

import (
	"context"

	"soulbound/internal/directory/models"
	id "soulbound/pkg/domain"
)

// Store persists issuer records. Implementations return sentinel errors
// (sentinel.ErrNotFound, sentinel.ErrConflict, sentinel.ErrExhausted) which
// the service translates into domain errors.
type Store interface {
	// Create registers a new issuer. Returns sentinel.ErrConflict when the
	// issuer already exists; issuer records are never deleted.
	Create(ctx context.Context, issuer *models.Issuer) error

	Get(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error)
	List(ctx context.Context) ([]*models.Issuer, error)

	SetBanned(ctx context.Context, issuerID id.IssuerID, banned bool) error

	// UpsertGrant creates or replaces the issuer's grant for a class,
	// resetting its used counter.
	UpsertGrant(ctx context.Context, issuerID id.IssuerID, grant models.Grant) error
	DeleteGrant(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error

	// ConsumeQuota atomically takes one unit of the grant's quota.
	// Returns sentinel.ErrNotFound when no grant exists and
	// sentinel.ErrExhausted when the quota has no remaining capacity.
	ConsumeQuota(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error

	// RefundQuota gives back one unit after a mint that consumed quota
	// failed before the token was created.
	RefundQuota(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error
}
