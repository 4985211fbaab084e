package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"mutualpool/internal/assets/mocks"
	"mutualpool/internal/assets/ports"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
	"mutualpool/pkg/platform/circuit"
	"mutualpool/pkg/platform/sentinel"
)

var _ ports.RegistryPort = (*GuardedRegistry)(nil)

func TestGuardedRegistryOpensOnOutage(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockRegistryPort(ctrl)
	breaker := circuit.New("assets", circuit.WithFailureThreshold(2))
	g := NewGuardedRegistry(next, breaker)
	ctx := context.Background()

	outage := errors.New("dial tcp: connection refused")
	next.EXPECT().OwnerOf(ctx, gomock.Any()).Return(id.AccountID(""), outage).Times(2)

	_, err := g.OwnerOf(ctx, "vehicle-1")
	assert.ErrorIs(t, err, outage)
	_, err = g.OwnerOf(ctx, "vehicle-1")
	assert.ErrorIs(t, err, outage)

	// open: the backing registry is not called again
	_, err = g.HistoryLength(ctx, "vehicle-1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	_, err = g.IsAttesterAuthorized(ctx, "vehicle-1", "dr-who")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestGuardedRegistryPassesAnswersThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockRegistryPort(ctrl)
	breaker := circuit.New("assets", circuit.WithFailureThreshold(1))
	g := NewGuardedRegistry(next, breaker)
	ctx := context.Background()

	next.EXPECT().OwnerOf(ctx, gomock.Any()).Return(id.AccountID(""), sentinel.ErrNotFound)
	next.EXPECT().HistoryLength(ctx, gomock.Any()).Return(uint64(4), nil)
	next.EXPECT().IsAttesterAuthorized(ctx, gomock.Any(), gomock.Any()).Return(true, nil)

	_, err := g.OwnerOf(ctx, "vehicle-9")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.Equal(t, circuit.StateClosed, breaker.State())

	n, err := g.HistoryLength(ctx, "vehicle-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	ok, err := g.IsAttesterAuthorized(ctx, "vehicle-1", "dr-who")
	require.NoError(t, err)
	assert.True(t, ok)
}
