package store

import (
	"context"
	"slices"
	"sync"

	"mutualpool/internal/eligibility/models"
	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/sentinel"
)

// Error Contract:
// - Find/Update return sentinel.ErrNotFound when the participant is absent
// - Create returns sentinel.ErrAlreadyUsed when the account or DID is already registered
// - HashOwner returns sentinel.ErrNotFound for an unseen identity hash
// - MarkHashUsed returns sentinel.ErrAlreadyUsed when another participant owns the hash

// InMemoryStore keeps participants, identity hashes, checkpoints and reputation history.
type InMemoryStore struct {
	mu           sync.RWMutex
	participants map[id.AccountID]*models.Participant
	byDID        map[string]id.AccountID
	hashes       map[string]id.AccountID
	checkpoints  map[id.AccountID][]models.Checkpoint
	history      map[id.AccountID][]models.ReputationChange
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		participants: make(map[id.AccountID]*models.Participant),
		byDID:        make(map[string]id.AccountID),
		hashes:       make(map[string]id.AccountID),
		checkpoints:  make(map[id.AccountID][]models.Checkpoint),
		history:      make(map[id.AccountID][]models.ReputationChange),
	}
}

// Clone returns an independent deep copy used as a transaction snapshot.
func (s *InMemoryStore) Clone() *InMemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := NewInMemory()
	for k, v := range s.participants {
		c.participants[k] = v.Clone()
	}
	for k, v := range s.byDID {
		c.byDID[k] = v
	}
	for k, v := range s.hashes {
		c.hashes[k] = v
	}
	for k, v := range s.checkpoints {
		c.checkpoints[k] = slices.Clone(v)
	}
	for k, v := range s.history {
		c.history[k] = slices.Clone(v)
	}
	return c
}

func (s *InMemoryStore) Create(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.Account]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.byDID[p.DID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.participants[p.Account] = p.Clone()
	s.byDID[p.DID] = p.Account
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, account id.AccountID) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[account]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *InMemoryStore) FindByDID(_ context.Context, did string) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byDID[did]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.participants[account].Clone(), nil
}

// Update replaces the mutable fields; DID and account are immutable.
func (s *InMemoryStore) Update(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.Account]; !ok {
		return sentinel.ErrNotFound
	}
	s.participants[p.Account] = p.Clone()
	return nil
}

func (s *InMemoryStore) ListByAccounts(_ context.Context, accounts []id.AccountID) (map[id.AccountID]*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.AccountID]*models.Participant, len(accounts))
	for _, a := range accounts {
		if p, ok := s.participants[a]; ok {
			out[a] = p.Clone()
		}
	}
	return out, nil
}

func (s *InMemoryStore) HashOwner(_ context.Context, hash string) (id.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.hashes[hash]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return owner, nil
}

func (s *InMemoryStore) MarkHashUsed(_ context.Context, hash string, account id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.hashes[hash]; ok && owner != account {
		return sentinel.ErrAlreadyUsed
	}
	s.hashes[hash] = account
	return nil
}

func (s *InMemoryStore) AppendCheckpoint(_ context.Context, cp models.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.Participant] = append(s.checkpoints[cp.Participant], cp)
	return nil
}

func (s *InMemoryStore) ListCheckpoints(_ context.Context, account id.AccountID) ([]models.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.checkpoints[account]), nil
}

func (s *InMemoryStore) AppendReputationChange(_ context.Context, change models.ReputationChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[change.Participant] = append(s.history[change.Participant], change)
	return nil
}

func (s *InMemoryStore) ListReputationChanges(_ context.Context, account id.AccountID) ([]models.ReputationChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history[account]), nil
}
