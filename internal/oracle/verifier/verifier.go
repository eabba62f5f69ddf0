// Package verifier validates detached claim signatures. Pure functions,
// no state.
package verifier

import (
	"crypto/ed25519"

	"soulbound/internal/oracle/models"
	dErrors "soulbound/pkg/domain-errors"
)

// Verify checks the detached ed25519 signature over the claim's digest.
func Verify(key ed25519.PublicKey, claim *models.Claim, signature []byte) error {
	if len(key) != ed25519.PublicKeySize {
		return dErrors.New(dErrors.CodeInvalidSignature, "issuer has no valid verification key")
	}
	if len(signature) != ed25519.SignatureSize {
		return dErrors.New(dErrors.CodeInvalidSignature, "signature has wrong length")
	}
	if !ed25519.Verify(key, claim.Digest(), signature) {
		return dErrors.New(dErrors.CodeInvalidSignature, "signature does not match claim")
	}
	return nil
}
