package service

import (
	"context"
	"errors"
	"time"

	"soulbound/internal/oracle/models"
	"soulbound/internal/oracle/tracer"
	"soulbound/internal/oracle/verifier"
	registryModel "soulbound/internal/registry/models"
	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
	"soulbound/pkg/platform/audit"
	"soulbound/pkg/platform/sentinel"
	"soulbound/pkg/requestcontext"
)

// Redeem runs a claim through the verification pipeline: signature,
// freshness, replay, then mint. The nonce is consumed only after the mint
// succeeds, so registry-side failures (quota, duplicate, ban) leave the
// claim redeemable by a corrected resubmission. Signature, freshness, and
// replay failures are terminal for the claim.
func (s *Service) Redeem(ctx context.Context, req *models.RedeemRequest) (*models.RedeemResponse, error) {
	start := time.Now()
	defer s.observeRedeem(start)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid redeem request")
	}
	issuerID, err := id.ParseIssuerID(req.IssuerID)
	if err != nil {
		return nil, err
	}
	externalID := id.ExternalClaimID(req.Claim.ExternalID)

	ctx, span := s.tracer.Start(ctx, tracer.SpanRedeem,
		tracer.String(tracer.AttrIssuerID, issuerID.String()),
		tracer.String(tracer.AttrClassID, req.Claim.ClassID),
		tracer.String(tracer.AttrExternalID, externalID.String()),
	)
	var redeemErr error
	defer func() { span.End(redeemErr) }()

	issuer, err := s.directory.Get(ctx, issuerID)
	if err != nil {
		redeemErr = err
		return nil, err
	}

	if err := s.checkSignature(ctx, issuer.VerificationKey, req); err != nil {
		redeemErr = s.reject(ctx, req, err)
		return nil, redeemErr
	}
	if err := s.checkFreshness(ctx, req, s.directory.ClaimTTL(issuer, s.defaultClaimTTL)); err != nil {
		redeemErr = s.reject(ctx, req, err)
		return nil, redeemErr
	}
	if err := s.checkNonce(ctx, externalID); err != nil {
		redeemErr = s.reject(ctx, req, err)
		return nil, redeemErr
	}

	token, err := s.mint(ctx, issuerID, req)
	if err != nil {
		// Registry rejections propagate unchanged and do not consume
		// the nonce; the claim stays redeemable.
		redeemErr = s.reject(ctx, req, err)
		return nil, redeemErr
	}

	// Commit the nonce only now that the token exists.
	record := models.NonceRecord{
		ExternalID: externalID,
		Recipient:  token.Owner,
		ConsumedAt: requestcontext.Now(ctx),
	}
	if err := s.nonces.Consume(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a race with a concurrent redemption of the same
			// claim after both minted. Surface the replay; the earlier
			// winner's token stands.
			s.logger.ErrorContext(ctx, "nonce consumed concurrently after mint",
				"external_id", externalID.String(),
				"token_id", token.ID.String(),
			)
			redeemErr = dErrors.New(dErrors.CodeReplayedClaim, "claim was already redeemed")
			return nil, redeemErr
		}
		redeemErr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume claim nonce")
		return nil, redeemErr
	}
	span.AddEvent(tracer.EventNonceConsumed)

	s.logAudit(ctx, audit.EventClaimRedeemed, audit.Event{
		Category: audit.CategoryOperations,
		Actor:    issuerID.String(),
		IssuerID: issuerID,
		Owner:    token.Owner,
		ClassID:  token.ClassID,
		TokenID:  token.ID,
	})
	if s.metrics != nil {
		s.metrics.ClaimsRedeemed.Inc()
	}
	return &models.RedeemResponse{
		TokenID:   uint64(token.ID),
		ExpiresAt: token.ExpiresAt,
	}, nil
}

func (s *Service) checkSignature(ctx context.Context, key []byte, req *models.RedeemRequest) error {
	_, span := s.tracer.Start(ctx, tracer.SpanSignature)
	err := verifier.Verify(key, &req.Claim, req.SignatureBytes())
	span.End(err)
	return err
}

// checkFreshness enforces now − issued_at ≤ claim_ttl with zero clock
// skew tolerance: claims from the apparent future are rejected too.
func (s *Service) checkFreshness(ctx context.Context, req *models.RedeemRequest, claimTTL time.Duration) error {
	_, span := s.tracer.Start(ctx, tracer.SpanFreshness)
	now := requestcontext.Now(ctx)
	issuedAt := req.Claim.IssuedAtTime()
	age := now.Sub(issuedAt)
	span.SetAttributes(tracer.Duration(tracer.AttrClaimAge, age))

	var err error
	switch {
	case age < 0:
		err = dErrors.New(dErrors.CodeClaimExpired, "claim is issued in the future")
	case age > claimTTL:
		err = dErrors.New(dErrors.CodeClaimExpired, "claim is older than the freshness window")
	}
	span.End(err)
	return err
}

func (s *Service) checkNonce(ctx context.Context, externalID id.ExternalClaimID) error {
	_, span := s.tracer.Start(ctx, tracer.SpanNonce)
	consumed, err := s.nonces.Consumed(ctx, externalID)
	if err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to check claim nonce")
		span.End(err)
		return err
	}
	if consumed {
		err = dErrors.New(dErrors.CodeReplayedClaim, "claim was already redeemed")
	}
	span.End(err)
	return err
}

func (s *Service) mint(ctx context.Context, issuerID id.IssuerID, req *models.RedeemRequest) (*registryModel.Token, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanMint)
	token, err := s.registry.Mint(ctx, issuerID, &registryModel.MintRequest{
		Owner:   req.Claim.Recipient,
		ClassID: req.Claim.ClassID,
	})
	if err == nil {
		span.SetAttributes(tracer.Int64(tracer.AttrTokenID, int64(token.ID)))
	}
	span.End(err)
	return token, err
}

func (s *Service) reject(ctx context.Context, req *models.RedeemRequest, err error) error {
	reason := string(dErrors.CodeOf(err))
	s.logAudit(ctx, audit.EventClaimRejected, audit.Event{
		Category: audit.CategorySecurity,
		Actor:    req.IssuerID,
		IssuerID: id.IssuerID(req.IssuerID),
		Owner:    id.AccountID(req.Claim.Recipient),
		ClassID:  id.ClassID(req.Claim.ClassID),
		Reason:   reason,
	})
	if s.metrics != nil {
		s.metrics.ClaimsRejected.WithLabelValues(reason).Inc()
	}
	s.logger.WarnContext(ctx, "claim rejected",
		"issuer_id", req.IssuerID,
		"external_id", req.Claim.ExternalID,
		"reason", reason,
	)
	return err
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	event.Action = string(action)
	if s.auditLog != nil {
		s.auditLog.Log(ctx, event)
	}
}

func (s *Service) observeRedeem(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveRedeem(start)
	}
}
