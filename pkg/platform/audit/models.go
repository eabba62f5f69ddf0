package audit

import (
	"context"
	"time"

	id "soulbound/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// Issuer registration, bans, and authorization changes are never deleted.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring.
	// Examples: rejected claims, signature failures, replay attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers events useful for operational visibility.
	// Examples: token issuance, renewals, sweeps.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// Actor is the identity performing the action: an issuer id or
	// "governance" for admin operations.
	Actor string `json:"actor,omitempty"`
	// Owner is the account affected by the action, when applicable.
	Owner    id.AccountID `json:"owner,omitempty"`
	IssuerID id.IssuerID  `json:"issuer_id,omitempty"`
	ClassID  id.ClassID   `json:"class_id,omitempty"`
	TokenID  id.TokenID   `json:"token_id,omitempty"`
	// Reason carries the rejection code for failed operations.
	Reason string `json:"reason,omitempty"`
	// RequestID is the correlation ID from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	// Registry events
	EventTokenMinted  AuditEvent = "token_minted"
	EventTokenRenewed AuditEvent = "token_renewed"
	EventTokenRevoked AuditEvent = "token_revoked"
	EventTokensSwept  AuditEvent = "tokens_swept"
	EventClassCreated AuditEvent = "class_created"

	// Directory events
	EventIssuerRegistered   AuditEvent = "issuer_registered"
	EventIssuerAuthorized   AuditEvent = "issuer_authorized"
	EventIssuerGrantRevoked AuditEvent = "issuer_grant_revoked"
	EventIssuerBanned       AuditEvent = "issuer_banned"
	EventIssuerUnbanned     AuditEvent = "issuer_unbanned"

	// Oracle events
	EventClaimRedeemed AuditEvent = "claim_redeemed"
	EventClaimRejected AuditEvent = "claim_rejected"
)

// Store persists audit events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is the interface for audit event emission.
// Satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
