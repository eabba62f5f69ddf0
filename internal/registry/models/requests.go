package models

import (
	"strings"
	"time"

	registrycontract "soulbound/contracts/registry"
	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
)

// MintRequest creates a token for an owner. The issuer comes from the
// authenticated request context, never from the body.
type MintRequest struct {
	Owner   string `json:"owner"`
	ClassID string `json:"class_id"`
	// TTLSeconds overrides the class default validity. Zero uses the
	// class default; it cannot make a token outlive a non-expiring class.
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

func (r *MintRequest) Normalize() {
	r.Owner = strings.TrimSpace(r.Owner)
	r.ClassID = strings.TrimSpace(r.ClassID)
}

func (r *MintRequest) Validate() error {
	if _, err := id.ParseAccountID(r.Owner); err != nil {
		return err
	}
	if _, err := id.ParseClassID(r.ClassID); err != nil {
		return err
	}
	if r.TTLSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "ttl_seconds must not be negative")
	}
	return nil
}

// TTL converts the requested override to a duration.
func (r *MintRequest) TTL() time.Duration {
	return time.Duration(r.TTLSeconds) * time.Second
}

// RenewRequest extends a token's expiration.
type RenewRequest struct {
	TokenID uint64 `json:"token_id"`
}

func (r *RenewRequest) Validate() error {
	if r.TokenID == 0 {
		return dErrors.New(dErrors.CodeValidation, "token_id is required")
	}
	return nil
}

// RevokeRequest marks a token revoked.
type RevokeRequest struct {
	TokenID uint64 `json:"token_id"`
}

func (r *RevokeRequest) Validate() error {
	if r.TokenID == 0 {
		return dErrors.New(dErrors.CodeValidation, "token_id is required")
	}
	return nil
}

// CreateClassRequest registers a credential class. Governance only.
type CreateClassRequest struct {
	ClassID                string `json:"class_id"`
	Stackable              bool   `json:"stackable"`
	DefaultValiditySeconds int64  `json:"default_validity_seconds,omitempty"`
	MaxSupplyPerAccount    int64  `json:"max_supply_per_account,omitempty"`
}

func (r *CreateClassRequest) Normalize() {
	r.ClassID = strings.TrimSpace(r.ClassID)
}

func (r *CreateClassRequest) Validate() error {
	if _, err := id.ParseClassID(r.ClassID); err != nil {
		return err
	}
	if r.DefaultValiditySeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "default_validity_seconds must not be negative")
	}
	if r.MaxSupplyPerAccount < 0 {
		return dErrors.New(dErrors.CodeValidation, "max_supply_per_account must not be negative")
	}
	return nil
}

// DefaultValidity converts the configured seconds to a duration.
func (r *CreateClassRequest) DefaultValidity() time.Duration {
	return time.Duration(r.DefaultValiditySeconds) * time.Second
}

// MintResponse reports the id of the freshly minted token.
type MintResponse struct {
	TokenID uint64     `json:"token_id"`
	Expires *time.Time `json:"expires_at,omitempty"`
}

// RenewResponse reports the new expiration. Nil means the token does not
// expire.
type RenewResponse struct {
	TokenID uint64     `json:"token_id"`
	Expires *time.Time `json:"expires_at,omitempty"`
}

// TokensOfResponse is a paginated token listing.
type TokensOfResponse struct {
	Owner  string                           `json:"owner"`
	Tokens []registrycontract.TokenRecord   `json:"tokens"`
	// NextFrom is the cursor for the next page, zero when exhausted.
	NextFrom uint64 `json:"next_from,omitempty"`
}

// SupplyResponse reports a count of active tokens.
type SupplyResponse struct {
	Count int64 `json:"count"`
}

// ToRecord converts a token to its wire representation.
func ToRecord(t *Token) registrycontract.TokenRecord {
	return registrycontract.TokenRecord{
		TokenID:   uint64(t.ID),
		Owner:     t.Owner.String(),
		IssuerID:  t.IssuerID.String(),
		ClassID:   t.ClassID.String(),
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
		Revoked:   t.Revoked,
	}
}
