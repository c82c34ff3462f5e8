package learning

import (
	"context"
	"testing"

	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func eventWith(point []float64, band float64) types.ForecastEvent {
	q10 := make([]float64, len(point))
	q90 := make([]float64, len(point))
	for i, p := range point {
		q10[i] = p - band
		q90[i] = p + band
	}
	return types.ForecastEvent{
		ForecastID:  "fc_test",
		RegionCode:  types.DefaultRegionCode,
		Predictions: types.Predictions{Point: point, Q10: q10, Q90: q90},
	}
}

func byType(errs []types.ForecastError) map[types.ErrorType]types.ForecastError {
	out := map[types.ErrorType]types.ForecastError{}
	for _, e := range errs {
		out[e.ErrorType] = e
	}
	return out
}

func TestThresholds(t *testing.T) {
	assert.Equal(t, types.SeverityLow, mapeThresholds.severity(9.99))
	assert.Equal(t, types.SeverityMedium, mapeThresholds.severity(10))
	assert.Equal(t, types.SeverityHigh, mapeThresholds.severity(15))
	assert.Equal(t, types.SeverityCritical, mapeThresholds.severity(25))
}

func TestObserverAnalyze(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		o := NewObserver(nil, nil)
		errs, err := o.Analyze(ctx, eventWith(flat(4, 100), 10), nil)
		require.NoError(t, err)
		assert.Empty(t, errs)
	})

	t.Run("Accurate", func(t *testing.T) {
		o := NewObserver(nil, nil)
		point := flat(8, 1000)
		errs, err := o.Analyze(ctx, eventWith(point, 100), flat(8, 1010))
		require.NoError(t, err)
		assert.Empty(t, errs)
	})

	t.Run("MAPESpike", func(t *testing.T) {
		db := newTestDB(t)
		o := NewObserver(db, nil)
		// 30% over every interval, far outside the band
		errs, err := o.Analyze(ctx, eventWith(flat(8, 1300), 50), flat(8, 1000))
		require.NoError(t, err)
		found := byType(errs)

		require.Contains(t, found, types.ErrorMAPESpike)
		mape := found[types.ErrorMAPESpike]
		assert.Equal(t, types.SeverityCritical, mape.Severity)
		assert.InDelta(t, 30, *mape.MAPE, 1e-9)
		assert.InDelta(t, 300, *mape.MAE, 1e-9)
		assert.True(t, mape.AnalysisTriggered)

		require.Contains(t, found, types.ErrorVariance)
		assert.Equal(t, types.SeverityHigh, found[types.ErrorVariance].Severity)
		assert.InDelta(t, 0, *found[types.ErrorVariance].CoveragePct, 1e-9)

		// a 300 MW peak error is medium
		require.Contains(t, found, types.ErrorPeakMiss)
		assert.Equal(t, types.SeverityMedium, found[types.ErrorPeakMiss].Severity)
		assert.False(t, found[types.ErrorPeakMiss].AnalysisTriggered)

		stored, err := db.ListForecastErrors(ctx, storage.ErrorFilter{})
		require.NoError(t, err)
		assert.Len(t, stored, len(errs))

		pending, err := o.PendingAnalysis(ctx, 0)
		require.NoError(t, err)
		for _, p := range pending {
			assert.True(t, p.AnalysisTriggered)
		}
	})

	t.Run("PeakTiming", func(t *testing.T) {
		o := NewObserver(nil, nil)
		point := flat(20, 1000)
		actual := flat(20, 1000)
		// same magnitude, but the actual peak comes 15 intervals later
		point[0] = 1250
		actual[15] = 1250
		errs, err := o.Analyze(ctx, eventWith(point, 300), actual)
		require.NoError(t, err)
		found := byType(errs)
		require.Contains(t, found, types.ErrorPeakMiss)
		// 0 MW magnitude error is low, bumped to medium by timing
		assert.Equal(t, types.SeverityMedium, found[types.ErrorPeakMiss].Severity)
	})

	t.Run("Ramp", func(t *testing.T) {
		o := NewObserver(nil, nil)
		point := []float64{1000, 1000, 1000}
		actual := []float64{1000, 1060, 1000}
		errs, err := o.Analyze(ctx, eventWith(point, 100), actual)
		require.NoError(t, err)
		found := byType(errs)
		require.Contains(t, found, types.ErrorRamp)
		// 60 MW in 15 minutes is 240 MW/h
		assert.InDelta(t, 240, *found[types.ErrorRamp].RampErrorMWPerHour, 1e-9)
		assert.Equal(t, types.SeverityHigh, found[types.ErrorRamp].Severity)
	})

	t.Run("MissingQuantiles", func(t *testing.T) {
		o := NewObserver(nil, nil)
		event := types.ForecastEvent{ForecastID: "x", Predictions: types.Predictions{Point: flat(4, 1000)}}
		errs, err := o.Analyze(ctx, event, flat(4, 1050))
		require.NoError(t, err)
		assert.NotContains(t, byType(errs), types.ErrorVariance)
	})
}

func TestSystemEvaluate(t *testing.T) {
	ctx := context.Background()
	s := NewSystem(newTestDB(t), nil)
	event, err := s.Logger.Log(ctx, LogRequest{Predictions: types.Predictions{Point: flat(4, 1500)}})
	require.NoError(t, err)

	errs, err := s.Evaluate(ctx, event.ForecastID, flat(4, 1000))
	require.NoError(t, err)
	assert.NotEmpty(t, errs)

	_, err = s.Evaluate(ctx, "missing", flat(4, 1000))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	h := s.Health()
	assert.Equal(t, "healthy", h.Status)
	assert.Empty(t, h.Components.Sinks.Enabled)
}
