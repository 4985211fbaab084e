package selection

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
)

func candidates(n int) []id.AccountID {
	out := make([]id.AccountID, n)
	for i := range out {
		out[i] = id.AccountID(fmt.Sprintf("staker-%02d", i))
	}
	return out
}

func TestFirstEligible(t *testing.T) {
	in := candidates(25)
	panel, err := FirstEligible{}.SelectPanel(1, in, 21)
	require.NoError(t, err)
	assert.Equal(t, in[:21], panel)

	panel[0] = "mallory"
	assert.Equal(t, id.AccountID("staker-00"), in[0], "selection must not alias the input")

	_, err = FirstEligible{}.SelectPanel(1, candidates(20), 21)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientResource))

	_, err = FirstEligible{}.SelectPanel(1, in, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestSeededShuffle(t *testing.T) {
	in := candidates(40)
	s := NewSeededShuffle([]byte("operator-seed"))

	a, err := s.SelectPanel(7, in, 21)
	require.NoError(t, err)
	b, err := s.SelectPanel(7, in, 21)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same inputs select the same panel")
	assert.Len(t, a, 21)

	seen := make(map[id.AccountID]bool, len(a))
	for _, m := range a {
		assert.Contains(t, in, m)
		assert.False(t, seen[m], "duplicate panelist %s", m)
		seen[m] = true
	}

	c, err := s.SelectPanel(8, in, 21)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "different claims draw different panels")

	other, err := NewSeededShuffle([]byte("other-seed")).SelectPanel(7, in, 21)
	require.NoError(t, err)
	assert.NotEqual(t, a, other)

	all, err := s.SelectPanel(1, in[:21], 21)
	require.NoError(t, err)
	assert.ElementsMatch(t, in[:21], all)

	_, err = s.SelectPanel(1, in[:20], 21)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientResource))
}
