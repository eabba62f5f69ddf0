package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"soulbound/internal/registry/models"
	"soulbound/internal/registry/ports"
	id "soulbound/pkg/domain"
	"soulbound/pkg/platform/sentinel"
)

// InMemoryTokenStore keeps token records in process memory with a single
// counter for id assignment.
type InMemoryTokenStore struct {
	mu      sync.RWMutex
	nextID  uint64
	tokens  map[id.TokenID]*models.Token
	byOwner map[id.AccountID][]id.TokenID
}

func NewMemoryTokenStore() *InMemoryTokenStore {
	return &InMemoryTokenStore{
		nextID:  1,
		tokens:  make(map[id.TokenID]*models.Token),
		byOwner: make(map[id.AccountID][]id.TokenID),
	}
}

func (s *InMemoryTokenStore) Create(_ context.Context, token *models.Token, constraint ports.CreateConstraint) (id.TokenID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := token.IssuedAt
	if constraint.Unique {
		for _, existing := range s.tokens {
			if existing.Owner == token.Owner &&
				existing.IssuerID == token.IssuerID &&
				existing.ClassID == token.ClassID &&
				existing.Active(now) {
				return 0, sentinel.ErrConflict
			}
		}
	}
	if constraint.MaxPerOwner > 0 {
		var count int64
		for _, existing := range s.tokens {
			if existing.Owner == token.Owner &&
				existing.ClassID == token.ClassID &&
				existing.Active(now) {
				count++
			}
		}
		if count >= constraint.MaxPerOwner {
			return 0, sentinel.ErrExhausted
		}
	}

	token.ID = id.TokenID(s.nextID)
	s.nextID++
	s.tokens[token.ID] = token.Clone()
	s.byOwner[token.Owner] = append(s.byOwner[token.Owner], token.ID)
	return token.ID, nil
}

func (s *InMemoryTokenStore) Get(_ context.Context, tokenID id.TokenID) (*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, exists := s.tokens[tokenID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return token.Clone(), nil
}

func (s *InMemoryTokenStore) Update(_ context.Context, token *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tokens[token.ID]; !exists {
		return sentinel.ErrNotFound
	}
	s.tokens[token.ID] = token.Clone()
	return nil
}

func (s *InMemoryTokenStore) ListByOwner(_ context.Context, owner id.AccountID, fromID id.TokenID, limit int) ([]*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := append([]id.TokenID(nil), s.byOwner[owner]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*models.Token
	for _, tokenID := range ids {
		if tokenID < fromID {
			continue
		}
		out = append(out, s.tokens[tokenID].Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryTokenStore) ActiveByOwnerClass(_ context.Context, owner id.AccountID, classID id.ClassID, now time.Time) ([]*models.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Token
	for _, tokenID := range s.byOwner[owner] {
		token := s.tokens[tokenID]
		if token.ClassID == classID && token.Active(now) {
			out = append(out, token.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryTokenStore) CountActiveByIssuer(_ context.Context, issuerID id.IssuerID, now time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, token := range s.tokens {
		if token.IssuerID == issuerID && token.Active(now) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryTokenStore) CountActiveByOwner(_ context.Context, owner id.AccountID, now time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, tokenID := range s.byOwner[owner] {
		if s.tokens[tokenID].Active(now) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryTokenStore) Sweep(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for tokenID, token := range s.tokens {
		if token.Active(now) {
			continue
		}
		delete(s.tokens, tokenID)
		owned := s.byOwner[token.Owner]
		for i, ownedID := range owned {
			if ownedID == tokenID {
				s.byOwner[token.Owner] = append(owned[:i], owned[i+1:]...)
				break
			}
		}
		if len(s.byOwner[token.Owner]) == 0 {
			delete(s.byOwner, token.Owner)
		}
		removed++
	}
	return removed, nil
}

var _ ports.TokenStore = (*InMemoryTokenStore)(nil)

// InMemoryClassStore keeps class records in process memory.
type InMemoryClassStore struct {
	mu      sync.RWMutex
	classes map[id.ClassID]*models.Class
}

func NewMemoryClassStore() *InMemoryClassStore {
	return &InMemoryClassStore{classes: make(map[id.ClassID]*models.Class)}
}

func (s *InMemoryClassStore) Create(_ context.Context, class *models.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.classes[class.ID]; exists {
		return sentinel.ErrConflict
	}
	s.classes[class.ID] = class.Clone()
	return nil
}

func (s *InMemoryClassStore) Get(_ context.Context, classID id.ClassID) (*models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	class, exists := s.classes[classID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return class.Clone(), nil
}

func (s *InMemoryClassStore) List(_ context.Context) ([]*models.Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Class, 0, len(s.classes))
	for _, class := range s.classes {
		out = append(out, class.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

var _ ports.ClassStore = (*InMemoryClassStore)(nil)
