package types

import "time"

// Predictions holds the parallel arrays of a logged forecast.
type Predictions struct {
	Timestamps []time.Time `json:"timestamps"`
	Point      []float64   `json:"point"`
	Q10        []float64   `json:"q10"`
	Q90        []float64   `json:"q90"`
}

// PredictionsFromForecast flattens forecast points into arrays.
func PredictionsFromForecast(points []ForecastPoint) Predictions {
	p := Predictions{
		Timestamps: make([]time.Time, len(points)),
		Point:      make([]float64, len(points)),
		Q10:        make([]float64, len(points)),
		Q90:        make([]float64, len(points)),
	}
	for i, fp := range points {
		p.Timestamps[i] = fp.Timestamp
		p.Point[i] = fp.Point
		p.Q10[i] = fp.Q10
		p.Q90[i] = fp.Q90
	}
	return p
}

// ForecastEvent is the immutable record of one generated forecast.
type ForecastEvent struct {
	ForecastID    string         `json:"forecast_id"`
	RegionCode    string         `json:"region_code"`
	ModelVersion  string         `json:"model_version"`
	ForecastStart time.Time      `json:"forecast_start"`
	HorizonHours  int            `json:"horizon_hours"`
	Predictions   Predictions    `json:"predictions"`
	InputFeatures map[string]any `json:"input_features,omitempty"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     time.Time      `json:"created_at"`
}

type ErrorType string

const (
	ErrorMAPESpike ErrorType = "mape_spike"
	ErrorPeakMiss  ErrorType = "peak_miss"
	ErrorRamp      ErrorType = "ramp_error"
	ErrorBias      ErrorType = "bias"
	ErrorVariance  ErrorType = "variance"
)

// Severity is ordered from SeverityLow to SeverityCritical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Rank returns 0 for low up to 3 for critical, -1 when unknown.
func (s Severity) Rank() int {
	for i, v := range severities {
		if v == s {
			return i
		}
	}
	return -1
}

func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// Bump raises the severity by one level, stopping at critical.
func (s Severity) Bump() Severity {
	r := s.Rank()
	if r < 0 {
		return s
	}
	return severities[min(r+1, len(severities)-1)]
}

// ForecastError is a classified deviation between a forecast and actuals.
type ForecastError struct {
	ID                 string    `json:"id"`
	ForecastID         string    `json:"forecast_id"`
	RegionCode         string    `json:"region_code"`
	ErrorType          ErrorType `json:"error_type"`
	Severity           Severity  `json:"severity"`
	MAPE               *float64  `json:"mape,omitempty"`
	MAE                *float64  `json:"mae,omitempty"`
	PeakErrorMW        *float64  `json:"peak_error_mw,omitempty"`
	RampErrorMWPerHour *float64  `json:"ramp_error_mw_per_hour,omitempty"`
	CoveragePct        *float64  `json:"coverage_pct,omitempty"`
	AnalysisTriggered  bool      `json:"analysis_triggered"`
	Notes              string    `json:"notes"`
	ObservedAt         time.Time `json:"observed_at"`
}
