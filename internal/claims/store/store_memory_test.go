package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutualpool/internal/claims/models"
	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/sentinel"
)

func newClaim(t *testing.T, s *InMemoryStore) *models.Claim {
	t.Helper()
	c, err := models.NewClaim("vehicle-1", "alice", "dr-who", "ipfs://x", 100, 10, time.Unix(0, 0).UTC(), time.Hour)
	require.NoError(t, err)
	c.ID, err = s.NextID(context.Background())
	require.NoError(t, err)
	return c
}

func TestInMemoryStore_SequentialIDs(t *testing.T) {
	s := NewInMemory()
	first := newClaim(t, s)
	second := newClaim(t, s)
	assert.Equal(t, id.ClaimID(1), first.ID)
	assert.Equal(t, id.ClaimID(2), second.ID)
}

func TestInMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	c := newClaim(t, s)
	require.NoError(t, s.Create(ctx, c))
	assert.ErrorIs(t, s.Create(ctx, c), sentinel.ErrAlreadyUsed)

	_, err := s.Find(ctx, 99)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	c.Status = models.StatusInReview
	require.NoError(t, s.Update(ctx, c))
	found, err := s.Find(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, found.Status)

	missing := *c
	missing.ID = 42
	assert.ErrorIs(t, s.Update(ctx, &missing), sentinel.ErrNotFound)
}

func TestInMemoryStore_CloneRollsBackIDs(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	snap := s.Clone()
	c := newClaim(t, snap)
	require.NoError(t, snap.Create(ctx, c))

	next, err := s.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id.ClaimID(1), next, "ids allocated in a discarded snapshot are reused")
}
