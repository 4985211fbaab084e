package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutualpool/internal/fund/models"
	id "mutualpool/pkg/domain"
)

func TestInMemoryStore_ZeroDefaults(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	w, err := s.Wallet(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, w)

	state, err := s.State(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.Pool.Total())
	assert.Empty(t, state.Stakers)
}

func TestInMemoryStore_CloneIsolatesSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.SetWallet(ctx, "alice", 50))
	require.NoError(t, s.SaveState(ctx, &models.State{Stakers: []id.AccountID{"alice"}}))

	snap := s.Clone()
	require.NoError(t, snap.SetWallet(ctx, "alice", 10))
	require.NoError(t, snap.SetStake(ctx, "alice", 40))
	require.NoError(t, snap.SaveState(ctx, &models.State{Pool: models.Pool{Risk: 5}}))

	w, err := s.Wallet(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), w)
	st, err := s.Stake(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, st)
	state, err := s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, []id.AccountID{"alice"}, state.Stakers)
	assert.Zero(t, state.Pool.Risk)
}

func TestInMemoryStore_StateIsCopied(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	require.NoError(t, s.SaveState(ctx, &models.State{Stakers: []id.AccountID{"a"}}))

	state, err := s.State(ctx)
	require.NoError(t, err)
	state.Stakers[0] = "mallory"

	again, err := s.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, id.AccountID("a"), again.Stakers[0])
}
