package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForecastTarget(t *testing.T) {
	got, err := ParseForecastTarget("")
	require.NoError(t, err)
	assert.Equal(t, TargetLoad, got)

	got, err = ParseForecastTarget("net_load")
	require.NoError(t, err)
	assert.Equal(t, TargetNetLoad, got)

	_, err = ParseForecastTarget("hydro")
	assert.Error(t, err)
}

func TestValidateHorizon(t *testing.T) {
	assert.NoError(t, ValidateHorizon(1))
	assert.NoError(t, ValidateHorizon(48))
	assert.Error(t, ValidateHorizon(0))
	assert.Error(t, ValidateHorizon(49))
}

func TestPlantForecastRequestValidate(t *testing.T) {
	r := PlantForecastRequest{PlantType: PlantTypeHydro, Capacity: 800}
	require.NoError(t, r.Validate())
	assert.Equal(t, DefaultHorizon, r.Horizon)

	r = PlantForecastRequest{PlantType: "geothermal", Capacity: 800}
	assert.Error(t, r.Validate())

	r = PlantForecastRequest{PlantType: PlantTypeSolar, Capacity: -1}
	assert.Error(t, r.Validate())

	r = PlantForecastRequest{PlantType: PlantTypeSolar, Capacity: 10, Horizon: 72}
	assert.Error(t, r.Validate())
}

func TestPredictionsFromForecast(t *testing.T) {
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := PredictionsFromForecast([]ForecastPoint{
		{Timestamp: ts, Point: 10, Q10: 9, Q90: 11},
		{Timestamp: ts.Add(Interval), Point: 20, Q10: 18, Q90: 22},
	})
	assert.Equal(t, []float64{10, 20}, p.Point)
	assert.Equal(t, []float64{9, 18}, p.Q10)
	assert.Equal(t, []float64{11, 22}, p.Q90)
	assert.Equal(t, ts.Add(15*time.Minute), p.Timestamps[1])
}

func TestSeverityBump(t *testing.T) {
	assert.Equal(t, SeverityMedium, SeverityLow.Bump())
	assert.Equal(t, SeverityCritical, SeverityHigh.Bump())
	assert.Equal(t, SeverityCritical, SeverityCritical.Bump())
	assert.True(t, SeverityHigh.Rank() > SeverityMedium.Rank())
	assert.False(t, Severity("extreme").Valid())
}
