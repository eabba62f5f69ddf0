package registry

import "time"

// ContractVersion identifies the schema for registry records shared across services.
const ContractVersion = "v0.1.0"

// TokenRecord is the wire form of an issued soulbound token. Downstream
// services gate access on these fields without talking to registry storage.
type TokenRecord struct {
	TokenID   uint64     `json:"token_id"`
	Owner     string     `json:"owner"`
	IssuerID  string     `json:"issuer_id"`
	ClassID   string     `json:"class_id"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Revoked   bool       `json:"revoked"`
}

// ClassRecord describes a credential class as exposed to consumers.
type ClassRecord struct {
	ClassID         string `json:"class_id"`
	Stackable       bool   `json:"stackable"`
	DefaultValidity string `json:"default_validity,omitempty"`
	MaxPerAccount   int    `json:"max_per_account,omitempty"`
}

// HasClassResult is the wire response for class membership checks.
type HasClassResult struct {
	Owner   string `json:"owner"`
	ClassID string `json:"class_id"`
	Holds   bool   `json:"holds"`
}
