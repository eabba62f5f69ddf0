package models

import (
	"time"

	id "soulbound/pkg/domain"
)

// Token is an issued credential instance. Tokens are non-transferable;
// the owner is fixed at mint time.
type Token struct {
	ID       id.TokenID
	Owner    id.AccountID
	IssuerID id.IssuerID
	ClassID  id.ClassID
	IssuedAt time.Time
	// ExpiresAt is nil for non-expiring tokens.
	ExpiresAt *time.Time
	Revoked   bool
	RevokedAt *time.Time
}

// Expired reports whether the token's expiry has passed at the given time.
// Non-expiring tokens never expire.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// Active reports whether the token is neither revoked nor expired at the
// given time.
func (t *Token) Active(now time.Time) bool {
	return !t.Revoked && !t.Expired(now)
}

// Clone returns a copy safe to hand out from memory stores.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	out := *t
	if t.ExpiresAt != nil {
		exp := *t.ExpiresAt
		out.ExpiresAt = &exp
	}
	if t.RevokedAt != nil {
		rev := *t.RevokedAt
		out.RevokedAt = &rev
	}
	return &out
}

// Class is a named credential category. The identifier is immutable once
// created; validity changes apply only to future issuances.
type Class struct {
	ID id.ClassID
	// Stackable permits multiple active tokens per (owner, issuer, class).
	Stackable bool
	// DefaultValidity is the issuance TTL when the mint request does not
	// supply one. Zero means tokens of this class do not expire.
	DefaultValidity time.Duration
	// MaxSupplyPerAccount caps active tokens of this class per owner
	// across all issuers. Zero means uncapped.
	MaxSupplyPerAccount int64
	CreatedAt           time.Time
}

// Clone returns a copy safe to hand out from memory stores.
func (c *Class) Clone() *Class {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}
