package service

import (
	"context"
	"errors"
	"log/slog"

	directoryModel "soulbound/internal/directory/models"
	"soulbound/internal/registry/metrics"
	"soulbound/internal/registry/ports"
	id "soulbound/pkg/domain"
	"soulbound/pkg/platform/audit"
	"soulbound/pkg/requestcontext"
)

// Directory is the issuer directory surface the registry depends on.
type Directory interface {
	CheckMintAuthorization(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) (*directoryModel.Issuer, error)
	ConsumeQuota(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error
	RefundQuota(ctx context.Context, issuerID id.IssuerID, classID id.ClassID) error
	Get(ctx context.Context, issuerID id.IssuerID) (*directoryModel.Issuer, error)
}

// Service is the token registry: the single ledger of record for issued
// tokens across all issuers.
type Service struct {
	tokens    ports.TokenStore
	classes   ports.ClassStore
	directory Directory
	logger    *slog.Logger
	auditLog  *audit.Logger
	metrics   *metrics.Metrics
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

// New constructs a Service. Token store, class store, and directory are
// required.
func New(tokens ports.TokenStore, classes ports.ClassStore, directory Directory, opts ...Option) (*Service, error) {
	if tokens == nil {
		return nil, errors.New("registry service requires a token store")
	}
	if classes == nil {
		return nil, errors.New("registry service requires a class store")
	}
	if directory == nil {
		return nil, errors.New("registry service requires the issuer directory")
	}
	s := &Service{
		tokens:    tokens,
		classes:   classes,
		directory: directory,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// governanceActor names the operator behind an admin request, falling back
// to the generic label when the shared admin token was used.
func governanceActor(ctx context.Context) string {
	if actor := requestcontext.Actor(ctx); actor != "" {
		return actor
	}
	return "governance"
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	event.Action = string(action)
	if event.Category == "" {
		event.Category = audit.CategoryOperations
	}
	if event.Actor == "" && !event.IssuerID.IsNil() {
		event.Actor = event.IssuerID.String()
	}
	if s.auditLog != nil {
		s.auditLog.Log(ctx, event)
	}
}
