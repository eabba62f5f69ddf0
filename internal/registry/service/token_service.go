package service

import (
	"context"
	"errors"
	"time"

	"soulbound/internal/registry/models"
	"soulbound/internal/registry/ports"
	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
	"soulbound/pkg/platform/audit"
	"soulbound/pkg/platform/sentinel"
	"soulbound/pkg/requestcontext"
)

// Mint creates a token for an owner under the given class. Authorization,
// quota, and uniqueness are all enforced before the record is written;
// quota consumed for a mint that subsequently fails is refunded.
func (s *Service) Mint(ctx context.Context, issuerID id.IssuerID, req *models.MintRequest) (*models.Token, error) {
	start := time.Now()
	defer s.observeMint(start)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid mint request")
	}
	owner, err := id.ParseAccountID(req.Owner)
	if err != nil {
		return nil, err
	}
	classID, err := id.ParseClassID(req.ClassID)
	if err != nil {
		return nil, err
	}

	class, err := s.classes.Get(ctx, classID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.rejectMint(ctx, issuerID, owner, classID, dErrors.New(dErrors.CodeNotFound, "class not found"))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load class")
	}
	if _, err := s.directory.CheckMintAuthorization(ctx, issuerID, classID); err != nil {
		return nil, s.rejectMint(ctx, issuerID, owner, classID, err)
	}
	if err := s.directory.ConsumeQuota(ctx, issuerID, classID); err != nil {
		return nil, s.rejectMint(ctx, issuerID, owner, classID, err)
	}

	now := requestcontext.Now(ctx)
	token := &models.Token{
		Owner:    owner,
		IssuerID: issuerID,
		ClassID:  classID,
		IssuedAt: now,
	}
	ttl := class.DefaultValidity
	if req.TTLSeconds > 0 {
		ttl = req.TTL()
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		token.ExpiresAt = &expires
	}

	constraint := ports.CreateConstraint{
		Unique:      !class.Stackable,
		MaxPerOwner: class.MaxSupplyPerAccount,
	}
	if _, err := s.tokens.Create(ctx, token, constraint); err != nil {
		// Give the quota unit back: the mint did not produce a token.
		if refundErr := s.directory.RefundQuota(ctx, issuerID, classID); refundErr != nil {
			s.logger.ErrorContext(ctx, "failed to refund quota after mint failure",
				"issuer_id", issuerID.String(),
				"class_id", classID.String(),
				"error", refundErr.Error(),
			)
		}
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, s.rejectMint(ctx, issuerID, owner, classID,
				dErrors.New(dErrors.CodeDuplicateActiveToken, "active token already exists for owner and class"))
		case errors.Is(err, sentinel.ErrExhausted):
			return nil, s.rejectMint(ctx, issuerID, owner, classID,
				dErrors.New(dErrors.CodeQuotaExceeded, "class supply per account reached"))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create token")
	}

	s.logAudit(ctx, audit.EventTokenMinted, audit.Event{
		IssuerID: issuerID,
		Owner:    owner,
		ClassID:  classID,
		TokenID:  token.ID,
	})
	if s.metrics != nil {
		s.metrics.TokensMinted.WithLabelValues(classID.String()).Inc()
	}
	return token, nil
}

// Renew extends a token's expiration by the class validity measured from
// the current time. The new expiration never goes backwards. Renewing a
// token of a non-expiring class is a no-op.
func (s *Service) Renew(ctx context.Context, issuerID id.IssuerID, tokenID id.TokenID) (*time.Time, error) {
	token, err := s.getToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token.IssuerID != issuerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "token was issued by another issuer")
	}
	if token.Revoked {
		return nil, dErrors.New(dErrors.CodeAlreadyRevoked, "token is revoked")
	}
	issuer, err := s.directory.Get(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	if issuer.Banned {
		return nil, dErrors.New(dErrors.CodeForbidden, "issuer is banned")
	}

	class, err := s.classes.Get(ctx, token.ClassID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load class")
	}
	if class.DefaultValidity == 0 {
		// Non-expiring class; nothing to extend.
		return nil, nil
	}

	now := requestcontext.Now(ctx)
	newExpiry := now.Add(class.DefaultValidity)
	if token.ExpiresAt != nil && token.ExpiresAt.After(newExpiry) {
		newExpiry = *token.ExpiresAt
	}
	token.ExpiresAt = &newExpiry
	if err := s.tokens.Update(ctx, token); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to renew token")
	}

	s.logAudit(ctx, audit.EventTokenRenewed, audit.Event{
		IssuerID: issuerID,
		Owner:    token.Owner,
		ClassID:  token.ClassID,
		TokenID:  token.ID,
	})
	if s.metrics != nil {
		s.metrics.TokensRenewed.Inc()
	}
	return &newExpiry, nil
}

// Revoke sets a token's revocation flag. Idempotent and irreversible. The
// issuing issuer may revoke its own tokens; governance (nil issuer) may
// revoke any token.
func (s *Service) Revoke(ctx context.Context, actor id.IssuerID, tokenID id.TokenID) error {
	token, err := s.getToken(ctx, tokenID)
	if err != nil {
		return err
	}
	if !actor.IsNil() && token.IssuerID != actor {
		return dErrors.New(dErrors.CodeForbidden, "token was issued by another issuer")
	}
	if token.Revoked {
		return nil
	}

	now := requestcontext.Now(ctx)
	token.Revoked = true
	token.RevokedAt = &now
	if err := s.tokens.Update(ctx, token); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}

	event := audit.Event{
		IssuerID: token.IssuerID,
		Owner:    token.Owner,
		ClassID:  token.ClassID,
		TokenID:  token.ID,
	}
	if actor.IsNil() {
		event.Actor = governanceActor(ctx)
	}
	s.logAudit(ctx, audit.EventTokenRevoked, event)
	if s.metrics != nil {
		s.metrics.TokensRevoked.Inc()
	}
	return nil
}

// TokensOf lists an owner's tokens ordered by token id, starting at fromID.
// Read-only.
func (s *Service) TokensOf(ctx context.Context, owner id.AccountID, fromID id.TokenID, limit int) ([]*models.Token, error) {
	tokens, err := s.tokens.ListByOwner(ctx, owner, fromID, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tokens")
	}
	return tokens, nil
}

// SupplyByIssuer counts an issuer's active tokens at the request time.
func (s *Service) SupplyByIssuer(ctx context.Context, issuerID id.IssuerID) (int64, error) {
	count, err := s.tokens.CountActiveByIssuer(ctx, issuerID, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count issuer supply")
	}
	return count, nil
}

// SupplyByOwner counts an owner's active tokens at the request time.
func (s *Service) SupplyByOwner(ctx context.Context, owner id.AccountID) (int64, error) {
	count, err := s.tokens.CountActiveByOwner(ctx, owner, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count owner supply")
	}
	return count, nil
}

// Sweep physically removes tokens that are revoked or expired. Expired and
// revoked tokens are already invisible to queries; sweeping reclaims their
// storage. Governance only.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	removed, err := s.tokens.Sweep(ctx, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sweep tokens")
	}
	if removed > 0 {
		s.logAudit(ctx, audit.EventTokensSwept, audit.Event{Actor: governanceActor(ctx)})
		if s.metrics != nil {
			s.metrics.TokensSwept.Add(float64(removed))
		}
	}
	return removed, nil
}

// CreateClass registers a credential class. Class ids are immutable once
// created; re-creating an existing id fails with a conflict.
func (s *Service) CreateClass(ctx context.Context, req *models.CreateClassRequest) (*models.Class, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid class request")
	}
	classID, err := id.ParseClassID(req.ClassID)
	if err != nil {
		return nil, err
	}

	class := &models.Class{
		ID:                  classID,
		Stackable:           req.Stackable,
		DefaultValidity:     req.DefaultValidity(),
		MaxSupplyPerAccount: req.MaxSupplyPerAccount,
		CreatedAt:           requestcontext.Now(ctx),
	}
	if err := s.classes.Create(ctx, class); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "class already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create class")
	}

	s.logAudit(ctx, audit.EventClassCreated, audit.Event{
		Category: audit.CategoryCompliance,
		Actor:    governanceActor(ctx),
		ClassID:  classID,
	})
	return class, nil
}

// GetClass returns a class definition.
func (s *Service) GetClass(ctx context.Context, classID id.ClassID) (*models.Class, error) {
	class, err := s.classes.Get(ctx, classID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "class not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load class")
	}
	return class, nil
}

// ListClasses returns all registered classes.
func (s *Service) ListClasses(ctx context.Context) ([]*models.Class, error) {
	classes, err := s.classes.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list classes")
	}
	return classes, nil
}

func (s *Service) getToken(ctx context.Context, tokenID id.TokenID) (*models.Token, error) {
	token, err := s.tokens.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "token not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load token")
	}
	return token, nil
}

func (s *Service) rejectMint(ctx context.Context, issuerID id.IssuerID, owner id.AccountID, classID id.ClassID, err error) error {
	if s.metrics != nil {
		s.metrics.MintRejected.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
	}
	s.logger.WarnContext(ctx, "mint rejected",
		"issuer_id", issuerID.String(),
		"owner", owner.String(),
		"class_id", classID.String(),
		"reason", string(dErrors.CodeOf(err)),
	)
	return err
}

func (s *Service) observeMint(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveMint(start)
	}
}
