// Package selection picks a claim's review panel from the eligible stakers.
package selection

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"slices"

	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
)

// PanelSelector chooses size members from candidates. Candidates arrive in
// staker-set order and are already filtered for eligibility. Implementations
// must be deterministic so a replayed operation selects the same panel.
type PanelSelector interface {
	SelectPanel(claim id.ClaimID, candidates []id.AccountID, size int) ([]id.AccountID, error)
}

func checkSize(candidates []id.AccountID, size int) error {
	if size <= 0 {
		return dErrors.New(dErrors.CodeValidation, "panel size must be positive")
	}
	if len(candidates) < size {
		return dErrors.New(dErrors.CodeInsufficientResource, "not enough eligible panel candidates")
	}
	return nil
}

// FirstEligible takes the first size candidates.
type FirstEligible struct{}

func (FirstEligible) SelectPanel(_ id.ClaimID, candidates []id.AccountID, size int) ([]id.AccountID, error) {
	if err := checkSize(candidates, size); err != nil {
		return nil, err
	}
	return slices.Clone(candidates[:size]), nil
}

// SeededShuffle draws a Fisher-Yates sample keyed on an operator seed, the
// claim and the candidate list. It is unpredictable only as long as the seed
// stays secret; it is not a verifiable random source.
type SeededShuffle struct {
	seed []byte
}

func NewSeededShuffle(seed []byte) *SeededShuffle {
	return &SeededShuffle{seed: slices.Clone(seed)}
}

func (s *SeededShuffle) SelectPanel(claim id.ClaimID, candidates []id.AccountID, size int) ([]id.AccountID, error) {
	if err := checkSize(candidates, size); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewChaCha8(s.key(claim, candidates, size)))
	pool := slices.Clone(candidates)
	for i := 0; i < size; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:size:size], nil
}

func (s *SeededShuffle) key(claim id.ClaimID, candidates []id.AccountID, size int) [32]byte {
	h := sha256.New()
	h.Write(s.seed)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(claim))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(size))
	h.Write(buf[:])
	for _, c := range candidates {
		h.Write([]byte(c))
		h.Write([]byte{0})
	}
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}
