package store

import (
	"context"
	"sync"

	"mutualpool/internal/claims/models"
	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/sentinel"
)

// Error Contract:
// - Find/Update return sentinel.ErrNotFound when the claim is absent
// - Create returns sentinel.ErrAlreadyUsed when the claim id exists

// InMemoryStore keeps claims keyed by their sequential id.
type InMemoryStore struct {
	mu     sync.RWMutex
	claims map[id.ClaimID]*models.Claim
	last   id.ClaimID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{claims: make(map[id.ClaimID]*models.Claim)}
}

// Clone returns an independent deep copy used as a transaction snapshot.
func (s *InMemoryStore) Clone() *InMemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &InMemoryStore{claims: make(map[id.ClaimID]*models.Claim, len(s.claims)), last: s.last}
	for k, v := range s.claims {
		c.claims[k] = v.Clone()
	}
	return c
}

// NextID allocates the next claim id, starting at 1.
func (s *InMemoryStore) NextID(_ context.Context) (id.ClaimID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last, nil
}

func (s *InMemoryStore) Create(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[claim.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.claims[claim.ID] = claim.Clone()
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, claimID id.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[claimID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[claim.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.claims[claim.ID] = claim.Clone()
	return nil
}
