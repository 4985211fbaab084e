package premium

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"mutualpool/internal/assets/mocks"
	id "mutualpool/pkg/domain"
	dErrors "mutualpool/pkg/domain-errors"
)

func TestHistoryOracle(t *testing.T) {
	tests := []struct {
		name    string
		history uint64
		want    uint64
	}{
		{name: "no history is baseline", history: 0, want: 100},
		{name: "one record", history: 1, want: 110},
		{name: "ten records doubles", history: 10, want: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			registry := mocks.NewMockRegistryPort(ctrl)
			registry.EXPECT().HistoryLength(gomock.Any(), id.SubjectID("vehicle-1")).Return(tt.history, nil)

			got, err := NewHistoryOracle(registry).RiskMultiplier(context.Background(), "vehicle-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistoryOracle_RegistryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockRegistryPort(ctrl)
	registry.EXPECT().HistoryLength(gomock.Any(), gomock.Any()).Return(uint64(0), errors.New("registry down"))

	_, err := NewHistoryOracle(registry).RiskMultiplier(context.Background(), "vehicle-1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestHistoryOracle_Overflow(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockRegistryPort(ctrl)
	registry.EXPECT().HistoryLength(gomock.Any(), gomock.Any()).Return(uint64(math.MaxUint64/10), nil)

	_, err := NewHistoryOracle(registry).RiskMultiplier(context.Background(), "vehicle-1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

type fixedOracle uint64

func (f fixedOracle) RiskMultiplier(context.Context, id.SubjectID) (uint64, error) {
	return uint64(f), nil
}

func TestCalculator_Premium(t *testing.T) {
	tests := []struct {
		name       string
		base       uint64
		multiplier uint64
		want       uint64
	}{
		{name: "baseline", base: 100, multiplier: 100, want: 100},
		{name: "three records", base: 100, multiplier: 130, want: 130},
		{name: "rounds down", base: 7, multiplier: 110, want: 7},
		{name: "large base", base: math.MaxUint64 / 2, multiplier: 100, want: math.MaxUint64 / 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCalculator(fixedOracle(tt.multiplier), tt.base)
			got, err := c.Premium(context.Background(), "vehicle-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCalculator_PremiumOverflow(t *testing.T) {
	c := NewCalculator(fixedOracle(math.MaxUint64), math.MaxUint64)
	_, err := c.Premium(context.Background(), "vehicle-1")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
