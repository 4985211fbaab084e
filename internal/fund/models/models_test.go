package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
)

func TestSplitIsExact(t *testing.T) {
	tests := []struct {
		amount uint64
		want   Pool
	}{
		{amount: 100, want: Pool{Immediate: 30, Stable: 60, Risk: 10}},
		{amount: 1, want: Pool{Immediate: 0, Stable: 0, Risk: 1}},
		{amount: 7, want: Pool{Immediate: 2, Stable: 4, Risk: 1}},
		{amount: 0, want: Pool{}},
	}
	for _, tt := range tests {
		got := Split(tt.amount)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.amount, got.Total())
	}

	for amount := uint64(0); amount < 1000; amount++ {
		require.Equal(t, amount, Split(amount).Total(), "amount %d", amount)
	}
	assert.Equal(t, uint64(math.MaxUint64), Split(math.MaxUint64).Total())
}

func TestPoolDepositAndWithdraw(t *testing.T) {
	var p Pool
	parts, err := p.Deposit(100)
	require.NoError(t, err)
	assert.Equal(t, Pool{Immediate: 30, Stable: 60, Risk: 10}, parts)
	require.NoError(t, p.CreditRisk(10))
	assert.Equal(t, uint64(110), p.Total())

	require.NoError(t, p.Withdraw(50))
	assert.Equal(t, Pool{Immediate: 0, Stable: 40, Risk: 20}, p)

	err = p.Withdraw(61)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientResource))
	assert.Equal(t, uint64(60), p.Total(), "failed withdraw leaves the pool unchanged")

	require.NoError(t, p.Withdraw(60))
	assert.Zero(t, p.Total())
}

func TestPoolOverflow(t *testing.T) {
	p := Pool{Risk: math.MaxUint64}
	_, err := p.Deposit(1)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(p.CreditRisk(1), dErrors.CodeValidation))
}

func TestStakerSetSwapRemove(t *testing.T) {
	s := NewStakerSet([]id.AccountID{"a", "b", "c", "d"})
	assert.False(t, s.Add("b"))
	assert.Equal(t, 4, s.Len())

	assert.True(t, s.Remove("b"))
	assert.Equal(t, []id.AccountID{"a", "d", "c"}, s.Members())
	assert.False(t, s.Contains("b"))
	assert.False(t, s.Remove("b"))

	assert.True(t, s.Remove("c"))
	assert.Equal(t, []id.AccountID{"a", "d"}, s.Members())

	assert.True(t, s.Add("e"))
	assert.True(t, s.Remove("a"))
	assert.Equal(t, []id.AccountID{"e", "d"}, s.Members())
	assert.True(t, s.Contains("d"))
}

func TestTotalOf(t *testing.T) {
	total, err := TotalOf([]Transfer{{To: "a", Amount: 80}, {To: "b", Amount: 20}})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), total)

	_, err = TotalOf([]Transfer{{Amount: math.MaxUint64}, {Amount: 1}})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
