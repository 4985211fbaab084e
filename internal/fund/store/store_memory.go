package store

import (
	"context"
	"maps"
	"sync"

	"mutualpool/internal/fund/models"
	id "mutualpool/pkg/domain"
)

// InMemoryStore keeps the pool state, wallets and stakes.
// Missing wallets and stakes read as zero.
type InMemoryStore struct {
	mu      sync.RWMutex
	state   *models.State
	wallets map[id.AccountID]uint64
	stakes  map[id.AccountID]uint64
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		state:   &models.State{},
		wallets: make(map[id.AccountID]uint64),
		stakes:  make(map[id.AccountID]uint64),
	}
}

// Clone returns an independent deep copy used as a transaction snapshot.
func (s *InMemoryStore) Clone() *InMemoryStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &InMemoryStore{
		state:   s.state.Clone(),
		wallets: maps.Clone(s.wallets),
		stakes:  maps.Clone(s.stakes),
	}
}

func (s *InMemoryStore) State(_ context.Context) (*models.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone(), nil
}

func (s *InMemoryStore) SaveState(_ context.Context, state *models.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
	return nil
}

func (s *InMemoryStore) Wallet(_ context.Context, account id.AccountID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wallets[account], nil
}

func (s *InMemoryStore) SetWallet(_ context.Context, account id.AccountID, balance uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if balance == 0 {
		delete(s.wallets, account)
		return nil
	}
	s.wallets[account] = balance
	return nil
}

func (s *InMemoryStore) Stake(_ context.Context, account id.AccountID) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stakes[account], nil
}

func (s *InMemoryStore) SetStake(_ context.Context, account id.AccountID, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if amount == 0 {
		delete(s.stakes, account)
		return nil
	}
	s.stakes[account] = amount
	return nil
}
