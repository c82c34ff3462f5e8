package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	g := testGenerator(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	t.Run("OutOfRange", func(t *testing.T) {
		_, err := g.Scenarios(99)
		assert.Error(t, err)
		_, err = g.Scenarios(5001)
		assert.Error(t, err)
	})

	t.Run("Percentiles", func(t *testing.T) {
		set, err := g.Scenarios(200)
		require.NoError(t, err)
		assert.Equal(t, 200, set.NScenarios)
		assert.Equal(t, 96, set.HorizonIntervals)
		require.Len(t, set.Timestamps, 96)
		require.Len(t, set.Percentiles.P50, 96)
		require.Len(t, set.Statistics.Mean, 96)
		for i := range 96 {
			assert.LessOrEqual(t, set.Statistics.Min[i], set.Percentiles.P5[i])
			assert.LessOrEqual(t, set.Percentiles.P5[i], set.Percentiles.P25[i])
			assert.LessOrEqual(t, set.Percentiles.P25[i], set.Percentiles.P50[i])
			assert.LessOrEqual(t, set.Percentiles.P50[i], set.Percentiles.P75[i])
			assert.LessOrEqual(t, set.Percentiles.P75[i], set.Percentiles.P95[i])
			assert.LessOrEqual(t, set.Percentiles.P95[i], set.Statistics.Max[i])
			assert.Greater(t, set.Statistics.Std[i], 0.0)
		}
		assert.Contains(t, set.Scenarios, "baseline")
		assert.Equal(t, 10700.0, set.Scenarios["extreme_heat"].Mean)
	})

	t.Run("Heatmap", func(t *testing.T) {
		hm, err := g.Heatmap()
		require.NoError(t, err)
		assert.Equal(t, PowerRange{Min: 2000, Max: 10000, Bins: 50}, hm.PowerRange)
		require.Len(t, hm.Density, 96)
		for _, row := range hm.Density {
			require.Len(t, row, 50)
			var sum float64
			for _, v := range row {
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		}
	})
}
