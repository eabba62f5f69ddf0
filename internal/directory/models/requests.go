package models

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"time"

	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
)

// RegisterIssuerRequest is the governance request to register a new issuer.
type RegisterIssuerRequest struct {
	IssuerID string `json:"issuer_id"`
	// VerificationKey is the base64-encoded ed25519 public key for
	// oracle-style issuers. Optional for direct minting issuers.
	VerificationKey string `json:"verification_key,omitempty"`
	// ClaimTTLSeconds overrides the registry default freshness window.
	ClaimTTLSeconds int64 `json:"claim_ttl_seconds,omitempty"`
}

func (r *RegisterIssuerRequest) Normalize() {
	r.IssuerID = strings.TrimSpace(r.IssuerID)
	r.VerificationKey = strings.TrimSpace(r.VerificationKey)
}

func (r *RegisterIssuerRequest) Validate() error {
	if _, err := id.ParseIssuerID(r.IssuerID); err != nil {
		return err
	}
	if r.VerificationKey != "" {
		key, err := base64.StdEncoding.DecodeString(r.VerificationKey)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "verification_key must be base64")
		}
		if len(key) != ed25519.PublicKeySize {
			return dErrors.New(dErrors.CodeValidation, "verification_key must be an ed25519 public key")
		}
	}
	if r.ClaimTTLSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "claim_ttl_seconds must not be negative")
	}
	return nil
}

// Key decodes the verification key. Call after Validate.
func (r *RegisterIssuerRequest) Key() ed25519.PublicKey {
	if r.VerificationKey == "" {
		return nil
	}
	key, _ := base64.StdEncoding.DecodeString(r.VerificationKey)
	return ed25519.PublicKey(key)
}

// ClaimTTL converts the configured seconds to a duration.
func (r *RegisterIssuerRequest) ClaimTTL() time.Duration {
	return time.Duration(r.ClaimTTLSeconds) * time.Second
}

// AuthorizeRequest grants an issuer a per-class quota.
type AuthorizeRequest struct {
	ClassID string `json:"class_id"`
	Quota   int64  `json:"quota"`
}

func (r *AuthorizeRequest) Normalize() {
	r.ClassID = strings.TrimSpace(r.ClassID)
}

func (r *AuthorizeRequest) Validate() error {
	if _, err := id.ParseClassID(r.ClassID); err != nil {
		return err
	}
	if r.Quota < 0 {
		return dErrors.New(dErrors.CodeValidation, "quota must not be negative")
	}
	return nil
}

// RegisterIssuerResponse reports the issuer's freshly generated API key.
// The key is returned exactly once; only its hash is stored.
type RegisterIssuerResponse struct {
	IssuerID string `json:"issuer_id"`
	Created  bool   `json:"created"`
	APIKey   string `json:"api_key,omitempty"`
}

// IssuerResponse is the read model for governance listings.
type IssuerResponse struct {
	IssuerID  string          `json:"issuer_id"`
	Banned    bool            `json:"banned"`
	Grants    []GrantResponse `json:"grants"`
	CreatedAt time.Time       `json:"created_at"`
}

type GrantResponse struct {
	ClassID   string `json:"class_id"`
	Quota     int64  `json:"quota"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
}
