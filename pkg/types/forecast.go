package types

import (
	"fmt"
	"time"
)

// ForecastTarget is a grid-level quantity that can be forecast.
type ForecastTarget string

const (
	TargetLoad    ForecastTarget = "load"
	TargetSolar   ForecastTarget = "solar"
	TargetWind    ForecastTarget = "wind"
	TargetNetLoad ForecastTarget = "net_load"
)

// ForecastTargets is in the order the all-targets endpoint reports them.
var ForecastTargets = []ForecastTarget{TargetLoad, TargetSolar, TargetWind, TargetNetLoad}

// ParseForecastTarget returns TargetLoad for an empty string.
func ParseForecastTarget(s string) (ForecastTarget, error) {
	if s == "" {
		return TargetLoad, nil
	}
	for _, t := range ForecastTargets {
		if string(t) == s {
			return t, nil
		}
	}
	return "", invalid("target", "must be one of load, solar, wind, net_load")
}

const (
	// IntervalMinutes is the resolution of every forecast and series.
	IntervalMinutes     = 15
	Interval            = IntervalMinutes * time.Minute
	IntervalsPerHour    = 60 / IntervalMinutes
	DefaultHorizon      = 24
	MaxHorizon          = 48
	DefaultRegionCode   = "SWISS_GRID"
	DefaultModelVersion = "mock-1.0.0"
)

// ValidateHorizon checks a horizon in hours.
func ValidateHorizon(hours int) error {
	if hours < 1 || hours > MaxHorizon {
		return invalid("horizon_hours", "must be between 1 and %d", MaxHorizon)
	}
	return nil
}

// ForecastPoint is a point prediction with its 10% and 90% quantiles.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Point     float64   `json:"point"`
	Q10       float64   `json:"q10"`
	Q90       float64   `json:"q90"`
}

type ForecastMetadata struct {
	ModelType       string    `json:"model_type"`
	HorizonHours    int       `json:"horizon_hours"`
	IntervalMinutes int       `json:"interval_minutes"`
	PlantType       string    `json:"plant_type"`
	GeneratedAt     time.Time `json:"generated_at"`
	Confidence      float64   `json:"confidence"`
	Warning         string    `json:"warning,omitempty"`
	ForecastID      string    `json:"forecast_id,omitempty"`
}

// Forecast is a grid-level forecast for one target.
type Forecast struct {
	Predictions []ForecastPoint  `json:"predictions"`
	Metadata    ForecastMetadata `json:"metadata"`
}

// Accuracy summarizes the evaluation of recent forecasts.
type Accuracy struct {
	Period      string    `json:"period"`
	MAPE        float64   `json:"mape"`
	MAE         float64   `json:"mae"`
	Coverage80  float64   `json:"coverage_80"`
	Coverage95  float64   `json:"coverage_95"`
	Bias        float64   `json:"bias"`
	LastUpdated time.Time `json:"last_updated"`
}

// HistoricalPoint is an observed output sample sent along a plant forecast request.
type HistoricalPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// PlantForecastRequest is the body of POST /api/forecast.
type PlantForecastRequest struct {
	PlantType      PlantType         `json:"plantType"`
	Capacity       float64           `json:"capacity"`
	Horizon        int               `json:"horizon"`
	HistoricalData []HistoricalPoint `json:"historicalData"`
}

// Validate checks the request and fills the default horizon.
func (r *PlantForecastRequest) Validate() error {
	if !r.PlantType.Valid() {
		return invalid("plantType", "unknown plant type %q", r.PlantType)
	}
	if r.Capacity <= 0 {
		return invalid("capacity", "must be greater than 0")
	}
	if r.Horizon == 0 {
		r.Horizon = DefaultHorizon
	}
	if r.Horizon < 1 || r.Horizon > MaxHorizon {
		return invalid("horizon", "must be between 1 and %d", MaxHorizon)
	}
	return nil
}

// PlantForecastValue is one step of a plant forecast.
type PlantForecastValue struct {
	Timestamp time.Time `json:"timestamp"`
	Predicted float64   `json:"predicted"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

// ForecastSource tells whether a plant forecast came from the backend or the fallback generator.
type ForecastSource string

const (
	SourceBackend  ForecastSource = "backend"
	SourceFallback ForecastSource = "fallback"
)

type PlantForecastResponse struct {
	Forecast    []PlantForecastValue `json:"forecast"`
	Source      ForecastSource       `json:"source"`
	PlantType   PlantType            `json:"plantType"`
	Capacity    float64              `json:"capacity"`
	Horizon     int                  `json:"horizon"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Warning     string               `json:"warning,omitempty"`
}

// Validate checks a response received from the forecasting backend.
func (r PlantForecastResponse) Validate() error {
	if len(r.Forecast) == 0 {
		return fmt.Errorf("forecast is empty")
	}
	for i, v := range r.Forecast {
		if v.Timestamp.IsZero() {
			return fmt.Errorf("forecast step %d has no timestamp", i)
		}
	}
	return nil
}
