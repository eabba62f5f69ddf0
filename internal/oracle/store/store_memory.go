package store

import (
	"context"
	"sync"

	"soulbound/internal/oracle/models"
	"soulbound/internal/oracle/ports"
	id "soulbound/pkg/domain"
	"soulbound/pkg/platform/sentinel"
)

// InMemoryNonceStore keeps consumed claim ids in process memory.
type InMemoryNonceStore struct {
	mu       sync.RWMutex
	consumed map[id.ExternalClaimID]models.NonceRecord
}

func NewMemory() *InMemoryNonceStore {
	return &InMemoryNonceStore{consumed: make(map[id.ExternalClaimID]models.NonceRecord)}
}

func (s *InMemoryNonceStore) Consumed(_ context.Context, externalID id.ExternalClaimID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.consumed[externalID]
	return ok, nil
}

func (s *InMemoryNonceStore) Consume(_ context.Context, record models.NonceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.consumed[record.ExternalID]; ok {
		return sentinel.ErrConflict
	}
	s.consumed[record.ExternalID] = record
	return nil
}

var _ ports.NonceStore = (*InMemoryNonceStore)(nil)
