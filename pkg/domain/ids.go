// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strconv"

	dErrors "soulbound/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing an IssuerID where a ClassID
// is expected. Accounts, issuers, and classes use chain-style string names;
// tokens use a globally monotonic numeric id assigned by the registry.
type (
	AccountID AccountName
	IssuerID  AccountName
	ClassID   string
)

// AccountName is the raw string form shared by account-like identifiers.
type AccountName = string

// TokenID is the registry-assigned token identifier. IDs are unique and
// monotonically increasing across all issuers.
type TokenID uint64

// ExternalClaimID is the issuer-side identifier of an off-chain claim. It is
// opaque to the registry and only compared for replay protection.
type ExternalClaimID string

const (
	minNameLen = 2
	maxNameLen = 64
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseAccountID(s string) (AccountID, error) {
	if err := validateName(s, "account ID"); err != nil {
		return "", err
	}
	return AccountID(s), nil
}

func ParseIssuerID(s string) (IssuerID, error) {
	if err := validateName(s, "issuer ID"); err != nil {
		return "", err
	}
	return IssuerID(s), nil
}

func ParseClassID(s string) (ClassID, error) {
	if err := validateName(s, "class ID"); err != nil {
		return "", err
	}
	return ClassID(s), nil
}

func ParseTokenID(s string) (TokenID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "token ID cannot be empty")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid token ID format")
	}
	return TokenID(n), nil
}

func ParseExternalClaimID(s string) (ExternalClaimID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "external claim ID cannot be empty")
	}
	if len(s) > 128 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "external claim ID too long")
	}
	return ExternalClaimID(s), nil
}

// String methods - for logging and debugging.

func (id AccountID) String() string       { return string(id) }
func (id IssuerID) String() string        { return string(id) }
func (id ClassID) String() string         { return string(id) }
func (id TokenID) String() string         { return strconv.FormatUint(uint64(id), 10) }
func (id ExternalClaimID) String() string { return string(id) }

// IsNil checks - used for service-layer validation.

func (id AccountID) IsNil() bool       { return id == "" }
func (id IssuerID) IsNil() bool        { return id == "" }
func (id ClassID) IsNil() bool         { return id == "" }
func (id TokenID) IsNil() bool         { return id == 0 }
func (id ExternalClaimID) IsNil() bool { return id == "" }

// validateName is the shared validation logic for chain-style names:
// lowercase alphanumeric segments joined by '.', '-', or '_', with no
// leading, trailing, or doubled separators.
func validateName(s, label string) error {
	if s == "" {
		return dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	if len(s) < minNameLen || len(s) > maxNameLen {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" length")
	}
	prevSep := true // treat start as separator so names cannot begin with one
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			prevSep = false
		case c == '.' || c == '-' || c == '_':
			if prevSep {
				return dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
			}
			prevSep = true
		default:
			return dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
		}
	}
	if prevSep {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return nil
}
