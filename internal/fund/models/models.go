package models

import (
	"math/bits"
	"slices"

	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
)

// Deposit split in percent. The risk bucket takes the remainder so the three
// parts always sum to the deposited amount.
const (
	ImmediatePercent = 30
	StablePercent    = 60
)

// Pool is the three-bucket premium fund.
type Pool struct {
	Immediate uint64 `json:"immediate"`
	Stable    uint64 `json:"stable"`
	Risk      uint64 `json:"risk"`
}

func (p Pool) Total() uint64 {
	return p.Immediate + p.Stable + p.Risk
}

// Split divides amount into immediate, stable and risk parts.
func Split(amount uint64) Pool {
	immediate := mulDiv100(amount, ImmediatePercent)
	stable := mulDiv100(amount, StablePercent)
	return Pool{Immediate: immediate, Stable: stable, Risk: amount - immediate - stable}
}

func mulDiv100(amount, percent uint64) uint64 {
	hi, lo := bits.Mul64(amount, percent)
	q, _ := bits.Div64(hi, lo, 100)
	return q
}

// Deposit adds the split of amount to the pool.
func (p *Pool) Deposit(amount uint64) (Pool, error) {
	if err := p.checkHeadroom(amount); err != nil {
		return Pool{}, err
	}
	parts := Split(amount)
	p.Immediate += parts.Immediate
	p.Stable += parts.Stable
	p.Risk += parts.Risk
	return parts, nil
}

// CreditRisk adds amount to the risk reserve only.
func (p *Pool) CreditRisk(amount uint64) error {
	if err := p.checkHeadroom(amount); err != nil {
		return err
	}
	p.Risk += amount
	return nil
}

func (p *Pool) checkHeadroom(amount uint64) error {
	if _, carry := bits.Add64(p.Total(), amount, 0); carry != 0 {
		return dErrors.New(dErrors.CodeValidation, "pool balance overflows")
	}
	return nil
}

// Withdraw draws amount from immediate, then stable, then risk.
func (p *Pool) Withdraw(amount uint64) error {
	if p.Total() < amount {
		return dErrors.New(dErrors.CodeInsufficientResource, "pool balance is insufficient")
	}
	for _, bucket := range []*uint64{&p.Immediate, &p.Stable, &p.Risk} {
		take := min(*bucket, amount)
		*bucket -= take
		amount -= take
	}
	return nil
}

// StakerSet is an enumerable set with O(1) membership and swap-remove deletion.
// Removal does not preserve order.
type StakerSet struct {
	members []id.AccountID
	index   map[id.AccountID]int
}

func NewStakerSet(members []id.AccountID) *StakerSet {
	s := &StakerSet{index: make(map[id.AccountID]int, len(members))}
	for _, m := range members {
		s.Add(m)
	}
	return s
}

// Add inserts account and reports whether it was absent.
func (s *StakerSet) Add(account id.AccountID) bool {
	if _, ok := s.index[account]; ok {
		return false
	}
	s.index[account] = len(s.members)
	s.members = append(s.members, account)
	return true
}

// Remove deletes account by moving the last member into its slot.
func (s *StakerSet) Remove(account id.AccountID) bool {
	i, ok := s.index[account]
	if !ok {
		return false
	}
	last := len(s.members) - 1
	if i != last {
		moved := s.members[last]
		s.members[i] = moved
		s.index[moved] = i
	}
	s.members = s.members[:last]
	delete(s.index, account)
	return true
}

func (s *StakerSet) Contains(account id.AccountID) bool {
	_, ok := s.index[account]
	return ok
}

func (s *StakerSet) Len() int {
	return len(s.members)
}

// Members returns the current enumeration order.
func (s *StakerSet) Members() []id.AccountID {
	return slices.Clone(s.members)
}

// State is the persisted singleton of the fund ledger.
type State struct {
	Pool    Pool
	Stakers []id.AccountID
}

func (s *State) Clone() *State {
	return &State{Pool: s.Pool, Stakers: slices.Clone(s.Stakers)}
}

// Transfer is one credit to an account wallet out of the pool.
type Transfer struct {
	To     id.AccountID `json:"to"`
	Amount uint64       `json:"amount"`
}

// TotalOf sums transfers, failing on overflow.
func TotalOf(transfers []Transfer) (uint64, error) {
	var total uint64
	for _, t := range transfers {
		sum, carry := bits.Add64(total, t.Amount, 0)
		if carry != 0 {
			return 0, dErrors.New(dErrors.CodeValidation, "transfer total overflows")
		}
		total = sum
	}
	return total, nil
}

// Balance is an account's wallet and stake.
type Balance struct {
	Account id.AccountID `json:"account"`
	Wallet  uint64       `json:"wallet"`
	Stake   uint64       `json:"stake"`
}
