package store

import (
	"context"
	"sync"
	"time"

	"soulbound/internal/directory/models"
	"soulbound/internal/directory/ports"
	id "soulbound/pkg/domain"
	"soulbound/pkg/platform/sentinel"
)

// InMemoryStore keeps issuer records in process memory. Used in tests and
// single-node deployments without postgres configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	issuers map[id.IssuerID]*models.Issuer
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		issuers: make(map[id.IssuerID]*models.Issuer),
	}
}

func (s *InMemoryStore) Create(_ context.Context, issuer *models.Issuer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.issuers[issuer.ID]; exists {
		return sentinel.ErrConflict
	}
	s.issuers[issuer.ID] = issuer.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, issuerID id.IssuerID) (*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issuer, exists := s.issuers[issuerID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return issuer.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Issuer, 0, len(s.issuers))
	for _, issuer := range s.issuers {
		out = append(out, issuer.Clone())
	}
	return out, nil
}

func (s *InMemoryStore) SetBanned(_ context.Context, issuerID id.IssuerID, banned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuer, exists := s.issuers[issuerID]
	if !exists {
		return sentinel.ErrNotFound
	}
	issuer.Banned = banned
	issuer.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) UpsertGrant(_ context.Context, issuerID id.IssuerID, grant models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuer, exists := s.issuers[issuerID]
	if !exists {
		return sentinel.ErrNotFound
	}
	g := grant
	g.Used = 0
	issuer.Grants[grant.ClassID] = &g
	issuer.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) DeleteGrant(_ context.Context, issuerID id.IssuerID, classID id.ClassID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuer, exists := s.issuers[issuerID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if _, ok := issuer.Grants[classID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(issuer.Grants, classID)
	issuer.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) ConsumeQuota(_ context.Context, issuerID id.IssuerID, classID id.ClassID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, err := s.grantLocked(issuerID, classID)
	if err != nil {
		return err
	}
	if grant.Quota > 0 && grant.Used >= grant.Quota {
		return sentinel.ErrExhausted
	}
	grant.Used++
	return nil
}

func (s *InMemoryStore) RefundQuota(_ context.Context, issuerID id.IssuerID, classID id.ClassID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, err := s.grantLocked(issuerID, classID)
	if err != nil {
		return err
	}
	if grant.Used > 0 {
		grant.Used--
	}
	return nil
}

func (s *InMemoryStore) grantLocked(issuerID id.IssuerID, classID id.ClassID) (*models.Grant, error) {
	issuer, exists := s.issuers[issuerID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	grant, ok := issuer.Grants[classID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return grant, nil
}

var _ ports.Store = (*InMemoryStore)(nil)
