package models

import (
	"crypto/ed25519"
	"time"

	id "soulbound/pkg/domain"
)

// Grant is a per-class minting authorization held by an issuer.
// Quota is the total number of tokens the issuer may mint for the class;
// zero means unlimited. Used counts consumed quota.
type Grant struct {
	ClassID id.ClassID
	Quota   int64
	Used    int64
}

// Remaining reports how much quota is left, or -1 for unlimited grants.
func (g Grant) Remaining() int64 {
	if g.Quota <= 0 {
		return -1
	}
	if g.Used >= g.Quota {
		return 0
	}
	return g.Quota - g.Used
}

// Issuer is a registered minting authority. Issuer records are never
// deleted; bans flip a flag so the audit trail stays intact.
type Issuer struct {
	ID     id.IssuerID
	Grants map[id.ClassID]*Grant
	Banned bool

	// VerificationKey is the ed25519 public key oracle-style issuers sign
	// claims with. Nil for issuers that mint directly.
	VerificationKey ed25519.PublicKey

	// ClaimTTL is the freshness window for this issuer's signed claims.
	// Zero falls back to the registry-wide default.
	ClaimTTL time.Duration

	// APIKeyHash is the bcrypt hash of the issuer's minting API key.
	APIKeyHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Grant looks up the issuer's grant for a class, or nil when not authorized.
func (i *Issuer) Grant(classID id.ClassID) *Grant {
	if i == nil || i.Grants == nil {
		return nil
	}
	return i.Grants[classID]
}

// Clone returns a deep copy so memory stores never leak shared state.
func (i *Issuer) Clone() *Issuer {
	if i == nil {
		return nil
	}
	out := *i
	out.Grants = make(map[id.ClassID]*Grant, len(i.Grants))
	for classID, grant := range i.Grants {
		g := *grant
		out.Grants[classID] = &g
	}
	if i.VerificationKey != nil {
		out.VerificationKey = append(ed25519.PublicKey(nil), i.VerificationKey...)
	}
	return &out
}
