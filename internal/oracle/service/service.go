package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	directoryModel "soulbound/internal/directory/models"
	"soulbound/internal/oracle/metrics"
	"soulbound/internal/oracle/ports"
	"soulbound/internal/oracle/tracer"
	registryModel "soulbound/internal/registry/models"
	id "soulbound/pkg/domain"
	"soulbound/pkg/platform/audit"
)

// Registry is the token registry surface the oracle invokes on a fully
// verified claim.
type Registry interface {
	Mint(ctx context.Context, issuerID id.IssuerID, req *registryModel.MintRequest) (*registryModel.Token, error)
}

// Directory resolves the issuer whose key signs claims.
type Directory interface {
	Get(ctx context.Context, issuerID id.IssuerID) (*directoryModel.Issuer, error)
	ClaimTTL(issuer *directoryModel.Issuer, fallback time.Duration) time.Duration
}

// Service turns signed off-chain claims into registry mints, exactly once
// per external claim id.
type Service struct {
	registry        Registry
	directory       Directory
	nonces          ports.NonceStore
	defaultClaimTTL time.Duration
	logger          *slog.Logger
	auditLog        *audit.Logger
	metrics         *metrics.Metrics
	tracer          tracer.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditLogger(auditLog *audit.Logger) Option {
	return func(s *Service) {
		s.auditLog = auditLog
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service. Registry, directory, and nonce store are
// required; defaultClaimTTL is the freshness window for issuers without
// their own.
func New(registry Registry, directory Directory, nonces ports.NonceStore, defaultClaimTTL time.Duration, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, errors.New("oracle service requires the token registry")
	}
	if directory == nil {
		return nil, errors.New("oracle service requires the issuer directory")
	}
	if nonces == nil {
		return nil, errors.New("oracle service requires a nonce store")
	}
	if defaultClaimTTL <= 0 {
		return nil, errors.New("oracle service requires a positive default claim ttl")
	}
	s := &Service{
		registry:        registry,
		directory:       directory,
		nonces:          nonces,
		defaultClaimTTL: defaultClaimTTL,
		logger:          slog.Default(),
		tracer:          tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}
