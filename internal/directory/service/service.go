package service

import (
	"errors"
	"log/slog"

	"soulbound/internal/directory/ports"
	"soulbound/pkg/platform/audit"
)

// Service manages the issuer directory: registration, per-class grants,
// quotas, and bans. All mutations flow through governance endpoints.
type Service struct {
	store    ports.Store
	logger   *slog.Logger
	auditLog *audit.Logger
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

// New constructs a Service. The store is required.
func New(store ports.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("directory service requires a store")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}
