package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutualpool/internal/assets/ports"
	id "mutualpool/pkg/domain"
	"mutualpool/pkg/platform/sentinel"
)

var (
	_ ports.RegistryPort = (*MemoryRegistry)(nil)
	_ ports.RegistryPort = (*RedisRegistry)(nil)
)

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()

	_, err := r.OwnerOf(ctx, "vehicle-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	n, err := r.HistoryLength(ctx, "vehicle-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	r.Register("vehicle-1", "alice")
	r.AddRecords("vehicle-1", 3)
	r.AuthorizeAttester("vehicle-1", "dr-who")

	owner, err := r.OwnerOf(ctx, "vehicle-1")
	require.NoError(t, err)
	assert.Equal(t, id.AccountID("alice"), owner)

	n, err = r.HistoryLength(ctx, "vehicle-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	ok, err := r.IsAttesterAuthorized(ctx, "vehicle-1", "dr-who")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.IsAttesterAuthorized(ctx, "vehicle-1", "dr-no")
	require.NoError(t, err)
	assert.False(t, ok)
}
