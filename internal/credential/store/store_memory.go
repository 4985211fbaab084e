package store

import (
	"context"
	"sync"

	"mutualpool/internal/credential/models"
	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/sentinel"
)

// Error Contract:
// - FindByHolder/FindByLicense return sentinel.ErrNotFound when absent
// - Create returns sentinel.ErrAlreadyUsed when the holder or license is already bound

// InMemoryStore keeps credentials keyed by holder with a license index.
type InMemoryStore struct {
	mu        sync.RWMutex
	byHolder  map[id.AccountID]*models.Credential
	byLicense map[string]id.AccountID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byHolder:  make(map[id.AccountID]*models.Credential),
		byLicense: make(map[string]id.AccountID),
	}
}

// Clone returns an independent deep copy used as a transaction snapshot.
func (s *InMemoryStore) Clone() *InMemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &InMemoryStore{
		byHolder:  make(map[id.AccountID]*models.Credential, len(s.byHolder)),
		byLicense: make(map[string]id.AccountID, len(s.byLicense)),
	}
	for k, v := range s.byHolder {
		copied := *v
		c.byHolder[k] = &copied
	}
	for k, v := range s.byLicense {
		c.byLicense[k] = v
	}
	return c
}

func (s *InMemoryStore) Create(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHolder[credential.Holder]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.byLicense[credential.LicenseRef]; ok {
		return sentinel.ErrAlreadyUsed
	}
	copied := *credential
	s.byHolder[credential.Holder] = &copied
	s.byLicense[credential.LicenseRef] = credential.Holder
	return nil
}

func (s *InMemoryStore) FindByHolder(_ context.Context, holder id.AccountID) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byHolder[holder]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *InMemoryStore) FindByLicense(_ context.Context, licenseRef string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	holder, ok := s.byLicense[licenseRef]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.byHolder[holder]
	return &copied, nil
}

func (s *InMemoryStore) Update(_ context.Context, credential *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHolder[credential.Holder]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *credential
	s.byHolder[credential.Holder] = &copied
	return nil
}

func (s *InMemoryStore) ListByHolders(_ context.Context, holders []id.AccountID) (map[id.AccountID]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.AccountID]*models.Credential, len(holders))
	for _, h := range holders {
		if c, ok := s.byHolder[h]; ok {
			copied := *c
			out[h] = &copied
		}
	}
	return out, nil
}
