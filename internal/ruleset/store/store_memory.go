package store

import (
	"context"
	"sort"
	"sync"

	"mutualpool/internal/ruleset/models"
	id "mutualpool/pkg/domain"
)

// InMemoryStore keeps role grants and ledger settings in memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	grants   map[models.Role]map[id.AccountID]models.Grant
	settings models.Settings
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{grants: make(map[models.Role]map[id.AccountID]models.Grant)}
}

// Clone returns an independent deep copy used as a transaction snapshot.
func (s *InMemoryStore) Clone() *InMemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &InMemoryStore{
		grants:   make(map[models.Role]map[id.AccountID]models.Grant, len(s.grants)),
		settings: s.settings,
	}
	for role, members := range s.grants {
		m := make(map[id.AccountID]models.Grant, len(members))
		for k, v := range members {
			m[k] = v
		}
		c.grants[role] = m
	}
	return c
}

func (s *InMemoryStore) HasRole(_ context.Context, account id.AccountID, role models.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.grants[role][account]
	return ok, nil
}

func (s *InMemoryStore) GrantRole(_ context.Context, grant models.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.grants[grant.Role]
	if !ok {
		members = make(map[id.AccountID]models.Grant)
		s.grants[grant.Role] = members
	}
	members[grant.Account] = grant
	return nil
}

func (s *InMemoryStore) RevokeRole(_ context.Context, account id.AccountID, role models.Role) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[role][account]; !ok {
		return false, nil
	}
	delete(s.grants[role], account)
	return true, nil
}

func (s *InMemoryStore) ListGrants(_ context.Context, role models.Role) ([]models.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Grant, 0, len(s.grants[role]))
	for _, g := range s.grants[role] {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out, nil
}

func (s *InMemoryStore) Settings(_ context.Context) (*models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := s.settings
	return &copied, nil
}

func (s *InMemoryStore) SaveSettings(_ context.Context, settings *models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = *settings
	return nil
}
