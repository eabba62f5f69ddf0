package models

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"time"

	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
)

// claimDomain separates claim signatures from any other ed25519 use of
// the issuer's key. Changing it invalidates all outstanding claims.
const claimDomain = "soulbound.claim.v1"

// Claim is an off-chain-signed attestation that a recipient qualifies
// for a credential class.
type Claim struct {
	Recipient string `json:"recipient"`
	ClassID   string `json:"class_id"`
	// ExternalID uniquely identifies this claim for replay protection.
	ExternalID string `json:"external_id"`
	// IssuedAt is the claim's signing time in unix seconds.
	IssuedAt int64 `json:"issued_at"`
}

// IssuedAtTime converts the unix timestamp.
func (c *Claim) IssuedAtTime() time.Time {
	return time.Unix(c.IssuedAt, 0).UTC()
}

// Digest returns the SHA-256 hash of the claim's deterministic encoding.
// The encoding is domain-separated and length-prefixed, so no two
// distinct claims share an encoding.
func (c *Claim) Digest() []byte {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeField(claimDomain)
	writeField(c.Recipient)
	writeField(c.ClassID)
	writeField(c.ExternalID)
	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(c.IssuedAt))
	h.Write(tsBuf[:])
	return h.Sum(nil)
}

// RedeemRequest submits a signed claim for redemption. The issuer names
// whose registered key verifies the signature.
type RedeemRequest struct {
	IssuerID string `json:"issuer_id"`
	Claim    Claim  `json:"claim"`
	// Signature is the base64-encoded detached ed25519 signature over
	// the claim digest.
	Signature string `json:"signature"`
}

func (r *RedeemRequest) Normalize() {
	r.IssuerID = strings.TrimSpace(r.IssuerID)
	r.Claim.Recipient = strings.TrimSpace(r.Claim.Recipient)
	r.Claim.ClassID = strings.TrimSpace(r.Claim.ClassID)
	r.Claim.ExternalID = strings.TrimSpace(r.Claim.ExternalID)
	r.Signature = strings.TrimSpace(r.Signature)
}

func (r *RedeemRequest) Validate() error {
	if _, err := id.ParseIssuerID(r.IssuerID); err != nil {
		return err
	}
	if _, err := id.ParseAccountID(r.Claim.Recipient); err != nil {
		return err
	}
	if _, err := id.ParseClassID(r.Claim.ClassID); err != nil {
		return err
	}
	if _, err := id.ParseExternalClaimID(r.Claim.ExternalID); err != nil {
		return err
	}
	if r.Claim.IssuedAt <= 0 {
		return dErrors.New(dErrors.CodeValidation, "issued_at must be a positive unix timestamp")
	}
	if r.Signature == "" {
		return dErrors.New(dErrors.CodeValidation, "signature is required")
	}
	if _, err := base64.StdEncoding.DecodeString(r.Signature); err != nil {
		return dErrors.New(dErrors.CodeValidation, "signature must be base64")
	}
	return nil
}

// SignatureBytes decodes the signature. Call after Validate.
func (r *RedeemRequest) SignatureBytes() []byte {
	sig, _ := base64.StdEncoding.DecodeString(r.Signature)
	return sig
}

// RedeemResponse reports the token created by a successful redemption.
type RedeemResponse struct {
	TokenID   uint64     `json:"token_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NonceRecord marks an external claim id as consumed. Append-only and
// permanent; replay protection never expires.
type NonceRecord struct {
	ExternalID id.ExternalClaimID
	Recipient  id.AccountID
	ConsumedAt time.Time
}
