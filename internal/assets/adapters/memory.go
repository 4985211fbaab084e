package adapters

import (
	"context"
	"sync"

	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/sentinel"
)

type asset struct {
	owner     id.AccountID
	history   uint64
	attesters map[id.AccountID]struct{}
}

// MemoryRegistry is an in-process asset registry for tests and local runs.
type MemoryRegistry struct {
	mu     sync.RWMutex
	assets map[id.SubjectID]*asset
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{assets: make(map[id.SubjectID]*asset)}
}

// Register records subject as owned by owner, replacing any previous owner.
func (r *MemoryRegistry) Register(subject id.SubjectID, owner id.AccountID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assets[subject]
	if !ok {
		a = &asset{attesters: make(map[id.AccountID]struct{})}
		r.assets[subject] = a
	}
	a.owner = owner
}

// AddRecords appends n historical records to subject.
func (r *MemoryRegistry) AddRecords(subject id.SubjectID, n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.assets[subject]; ok {
		a.history += n
	}
}

func (r *MemoryRegistry) AuthorizeAttester(subject id.SubjectID, attester id.AccountID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.assets[subject]; ok {
		a.attesters[attester] = struct{}{}
	}
}

func (r *MemoryRegistry) OwnerOf(_ context.Context, subject id.SubjectID) (id.AccountID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[subject]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return a.owner, nil
}

func (r *MemoryRegistry) HistoryLength(_ context.Context, subject id.SubjectID) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if a, ok := r.assets[subject]; ok {
		return a.history, nil
	}
	return 0, nil
}

func (r *MemoryRegistry) IsAttesterAuthorized(_ context.Context, subject id.SubjectID, attester id.AccountID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[subject]
	if !ok {
		return false, nil
	}
	_, authorized := a.attesters[attester]
	return authorized, nil
}
