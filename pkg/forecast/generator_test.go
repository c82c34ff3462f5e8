package forecast

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/powercast/powercast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGenerator(now time.Time) *Generator {
	g := NewGenerator(rand.New(rand.NewPCG(42, 7)))
	g.now = func() time.Time { return now }
	return g
}

func TestGeneratorTarget(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	g := testGenerator(now)

	t.Run("Load", func(t *testing.T) {
		fc := g.Target(types.TargetLoad, 24)
		require.Len(t, fc.Predictions, 96)
		assert.Equal(t, now, fc.Predictions[0].Timestamp)
		assert.Equal(t, now.Add(15*time.Minute), fc.Predictions[1].Timestamp)
		for _, p := range fc.Predictions {
			assert.InDelta(t, p.Point-400, p.Q10, 1e-9)
			assert.InDelta(t, p.Point+400, p.Q90, 1e-9)
			// base 9500 plus at most 1500 of daily variation, noise well within 1000
			assert.Greater(t, p.Point, 8500.0)
			assert.Less(t, p.Point, 12000.0)
		}
		assert.Equal(t, "mock", fc.Metadata.ModelType)
		assert.Equal(t, 15, fc.Metadata.IntervalMinutes)
		assert.Equal(t, 0.90, fc.Metadata.Confidence)
		assert.Equal(t, "load", fc.Metadata.PlantType)
		assert.NotEmpty(t, fc.Metadata.Warning)
	})

	t.Run("Solar", func(t *testing.T) {
		fc := g.Target(types.TargetSolar, 2)
		require.Len(t, fc.Predictions, 8)
		for _, p := range fc.Predictions {
			assert.Greater(t, p.Point, 1000.0)
			assert.Less(t, p.Point, 1600.0)
		}
	})
}

func TestGeneratorPlantForecast(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 30, 0, 0, time.UTC)

	t.Run("SolarNight", func(t *testing.T) {
		g := testGenerator(now)
		resp := g.PlantForecast(types.PlantForecastRequest{PlantType: types.PlantTypeSolar, Capacity: 500, Horizon: 24})
		require.Len(t, resp.Forecast, 24)
		assert.Equal(t, types.SourceFallback, resp.Source)
		assert.Equal(t, time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC), resp.Forecast[0].Timestamp)

		var dayMax float64
		for _, v := range resp.Forecast {
			h := v.Timestamp.Hour()
			if h < 6 || h >= 20 {
				assert.Zero(t, v.Predicted, "hour %d", h)
			}
			dayMax = max(dayMax, v.Predicted)
			assert.LessOrEqual(t, v.Predicted, 500.0)
		}
		assert.Greater(t, dayMax, 0.0)
	})

	t.Run("BoundsAndClamp", func(t *testing.T) {
		g := testGenerator(now)
		for _, pt := range types.PlantTypes {
			resp := g.PlantForecast(types.PlantForecastRequest{PlantType: pt, Capacity: 100, Horizon: 48})
			require.Len(t, resp.Forecast, 48)
			for _, v := range resp.Forecast {
				assert.GreaterOrEqual(t, v.Predicted, 0.0)
				assert.LessOrEqual(t, v.Predicted, 100.0)
				assert.LessOrEqual(t, v.Lower, v.Predicted)
				assert.GreaterOrEqual(t, v.Upper, v.Predicted)
				assert.LessOrEqual(t, v.Upper, 100.0)
			}
		}
	})

	t.Run("AnchoredOnHistory", func(t *testing.T) {
		g := testGenerator(now)
		history := []types.HistoricalPoint{{Timestamp: now, Value: 400}, {Timestamp: now, Value: 400}}
		resp := g.PlantForecast(types.PlantForecastRequest{PlantType: types.PlantTypeHydro, Capacity: 1000, Horizon: 12, HistoricalData: history})
		for _, v := range resp.Forecast {
			assert.InDelta(t, 400, v.Predicted, 60)
		}
	})
}
