package ports

import (
	"context"

	"soulbound/internal/oracle/models"
	id "soulbound/pkg/domain"
)

// NonceStore is the consumed-claim set. Records are append-only and never
// deleted; replay protection outlives the tokens it guarded.
type NonceStore interface {
	// Consumed reports whether the external claim id has been redeemed.
	Consumed(ctx context.Context, externalID id.ExternalClaimID) (bool, error)

	// Consume marks the external claim id redeemed. Returns
	// sentinel.ErrConflict when it is already present.
	Consume(ctx context.Context, record models.NonceRecord) error
}
