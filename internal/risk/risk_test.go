package risk

import (
	"errors"
	"testing"

	"trade-journal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionSize(t *testing.T) {
	settings := models.DefaultRiskSettings(1)

	testCases := []struct {
		name        string
		entry, stop float64
		override    float64
		shares      int64
		calculated  int64
		value       float64
		risked      float64
		pct         float64
	}{
		{"DefaultBudget", 10, 9.5, 0, 200, 200, 2000, 100, 1},
		{"ShortStopAbove", 10, 10.5, 0, 200, 200, 2000, 100, 1},
		{"CappedByMaxPosition", 10, 9.9, 0, 500, 1000, 5000, 50, 0.5},
		{"Override", 20, 19, 50, 50, 50, 1000, 50, 0.5},
		{"FractionalFloors", 3, 2.7, 0, 333, 333, 999, 99.9, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			got, err := PositionSize(settings, tc.entry, tc.stop, tc.override)

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tc.shares, got.RecommendedShares)
			assert.Equal(t, tc.calculated, got.CalculatedShares)
			assert.InDelta(t, tc.value, got.PositionValue, 1e-9)
			assert.InDelta(t, tc.risked, got.RiskAmount, 1e-9)
			assert.InDelta(t, tc.pct, got.RiskPercent, 1e-9)
			assert.Equal(t, settings.MaxOrderValue, got.LimitsApplied.MaxOrder)
		})
	}
}

func TestPositionSizeErrors(t *testing.T) {
	settings := models.DefaultRiskSettings(1)

	_, err := PositionSize(settings, 10, 10, 0)
	assert.True(t, errors.Is(err, ErrZeroRisk))

	_, err = PositionSize(settings, 0, 1, 0)
	assert.True(t, errors.Is(err, ErrInvalidPrice))
}

func TestBudgetFor(t *testing.T) {
	s := models.DefaultRiskSettings(1)
	assert.Equal(t, 75.0, BudgetFor(s, 75))
	assert.Equal(t, 100.0, BudgetFor(s, 0))

	s.DefaultRiskPerTrade = 0
	assert.Equal(t, 100.0, BudgetFor(s, 0))
	s.RiskPercentPerTrade = 2
	assert.Equal(t, 200.0, BudgetFor(s, 0))
}
