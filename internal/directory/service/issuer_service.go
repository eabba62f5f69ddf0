package service

import (
	"context"
	"errors"
	"time"

	"soulbound/internal/directory/models"
	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
	"soulbound/pkg/platform/audit"
	"soulbound/pkg/platform/sentinel"
	"soulbound/pkg/requestcontext"
	"soulbound/pkg/secrets"
)

// governanceActor labels audit events triggered by admin endpoints.
const governanceActor = "governance"

// Register creates a new issuer and mints its API key. Registering an
// existing issuer is a no-op reporting Created=false; the stored record
// and its key are left untouched.
func (s *Service) Register(ctx context.Context, req *models.RegisterIssuerRequest) (*models.RegisterIssuerResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid issuer registration")
	}
	issuerID, err := id.ParseIssuerID(req.IssuerID)
	if err != nil {
		return nil, err
	}

	apiKey, err := secrets.Generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate api key")
	}
	keyHash, err := secrets.Hash(apiKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash api key")
	}

	now := requestcontext.Now(ctx)
	issuer := &models.Issuer{
		ID:              issuerID,
		Grants:          make(map[id.ClassID]*models.Grant),
		VerificationKey: req.Key(),
		ClaimTTL:        req.ClaimTTL(),
		APIKeyHash:      keyHash,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, issuer); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return &models.RegisterIssuerResponse{IssuerID: issuerID.String(), Created: false}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register issuer")
	}

	s.logAudit(ctx, audit.EventIssuerRegistered, audit.Event{
		Category: audit.CategoryCompliance,
		IssuerID: issuerID,
	})
	return &models.RegisterIssuerResponse{
		IssuerID: issuerID.String(),
		Created:  true,
		APIKey:   apiKey,
	}, nil
}

// Authorize grants an issuer the right to mint a class, replacing any
// existing grant and resetting its used counter.
func (s *Service) Authorize(ctx context.Context, issuerID id.IssuerID, req *models.AuthorizeRequest) error {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid authorization request")
	}
	classID, err := id.ParseClassID(req.ClassID)
	if err != nil {
		return err
	}

	grant := models.Grant{ClassID: classID, Quota: req.Quota}
	if err := s.store.UpsertGrant(ctx, issuerID, grant); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "issuer not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to authorize issuer")
	}

	s.logAudit(ctx, audit.EventIssuerAuthorized, audit.Event{
		Category: audit.CategoryCompliance,
		IssuerID: issuerID,
		ClassID:  classID,
	})
	return nil
}

// RevokeAuthorization removes an issuer's grant for a class. Tokens the
// issuer already minted are unaffected.
func (s *Service) RevokeAuthorization(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error {
	if err := s.store.DeleteGrant(ctx, issuerID, classID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "grant not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke authorization")
	}

	s.logAudit(ctx, audit.EventIssuerGrantRevoked, audit.Event{
		Category: audit.CategoryCompliance,
		IssuerID: issuerID,
		ClassID:  classID,
	})
	return nil
}

// Ban marks an issuer as banned. Banned issuers cannot mint or renew.
func (s *Service) Ban(ctx context.Context, issuerID id.IssuerID) error {
	return s.setBanned(ctx, issuerID, true, audit.EventIssuerBanned)
}

// Unban lifts an issuer ban.
func (s *Service) Unban(ctx context.Context, issuerID id.IssuerID) error {
	return s.setBanned(ctx, issuerID, false, audit.EventIssuerUnbanned)
}

func (s *Service) setBanned(ctx context.Context, issuerID id.IssuerID, banned bool, event audit.AuditEvent) error {
	if err := s.store.SetBanned(ctx, issuerID, banned); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "issuer not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update issuer ban")
	}

	s.logAudit(ctx, event, audit.Event{
		Category: audit.CategoryCompliance,
		IssuerID: issuerID,
	})
	return nil
}

// Get returns an issuer record.
func (s *Service) Get(ctx context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	issuer, err := s.store.Get(ctx, issuerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "issuer not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load issuer")
	}
	return issuer, nil
}

// List returns all registered issuers.
func (s *Service) List(ctx context.Context) ([]*models.Issuer, error) {
	issuers, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issuers")
	}
	return issuers, nil
}

// CheckMintAuthorization verifies an issuer may mint a class right now.
// It does not consume quota.
func (s *Service) CheckMintAuthorization(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) (*models.Issuer, error) {
	issuer, err := s.Get(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	if issuer.Banned {
		return nil, dErrors.New(dErrors.CodeForbidden, "issuer is banned")
	}
	if issuer.Grant(classID) == nil {
		return nil, dErrors.New(dErrors.CodeForbidden, "issuer not authorized for class")
	}
	return issuer, nil
}

// ConsumeQuota atomically takes one unit of the issuer's quota for a class.
func (s *Service) ConsumeQuota(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error {
	if err := s.store.ConsumeQuota(ctx, issuerID, classID); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeForbidden, "issuer not authorized for class")
		case errors.Is(err, sentinel.ErrExhausted):
			return dErrors.New(dErrors.CodeQuotaExceeded, "issuer quota exhausted for class")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume quota")
	}
	return nil
}

// RefundQuota compensates a consumed quota unit when the mint that took it
// failed before the token was persisted.
func (s *Service) RefundQuota(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error {
	if err := s.store.RefundQuota(ctx, issuerID, classID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to refund quota")
	}
	return nil
}

// VerifyAPIKey authenticates an issuer's minting API key.
func (s *Service) VerifyAPIKey(ctx context.Context, issuerID id.IssuerID, apiKey string) error {
	issuer, err := s.store.Get(ctx, issuerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeUnauthorized, "unknown issuer")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load issuer")
	}
	if err := secrets.Verify(apiKey, issuer.APIKeyHash); err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid api key")
	}
	return nil
}

// ClaimTTL returns the issuer's freshness window for signed claims,
// falling back to the supplied default.
func (s *Service) ClaimTTL(issuer *models.Issuer, fallback time.Duration) time.Duration {
	if issuer != nil && issuer.ClaimTTL > 0 {
		return issuer.ClaimTTL
	}
	return fallback
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	event.Action = string(action)
	if event.Actor == "" {
		event.Actor = requestcontext.Actor(ctx)
	}
	if event.Actor == "" {
		event.Actor = governanceActor
	}
	if s.auditLog != nil {
		s.auditLog.Log(ctx, event)
		return
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, event.Action,
			"log_type", "audit",
			"issuer_id", event.IssuerID.String(),
		)
	}
}
