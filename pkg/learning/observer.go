package learning

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Thresholds are the lower bounds of the medium, high and critical
// severities of one metric. Anything below Medium is low.
type Thresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

func (t Thresholds) severity(v float64) types.Severity {
	switch {
	case v >= t.Critical:
		return types.SeverityCritical
	case v >= t.High:
		return types.SeverityHigh
	case v >= t.Medium:
		return types.SeverityMedium
	}
	return types.SeverityLow
}

var (
	mapeThresholds = Thresholds{Medium: 10, High: 15, Critical: 25}
	peakThresholds = Thresholds{Medium: 200, High: 400, Critical: 800}
	rampThresholds = Thresholds{Medium: 100, High: 200, Critical: 400}
)

const (
	// peakTimingIntervals is two hours of 15 minute intervals.
	peakTimingIntervals = 8
	coverageHigh        = 50.0
	coverageMedium      = 65.0
)

// Observer compares forecasts with actual values and records significant
// errors.
type Observer struct {
	db    storage.Database
	sinks Sinks
	now   func() time.Time
}

func NewObserver(db storage.Database, sinks Sinks) *Observer {
	return &Observer{db: db, sinks: sinks, now: time.Now}
}

// Analyze classifies the errors of event against actuals, aligned by index.
// Low severity findings are dropped; the rest are stored and published.
func (o *Observer) Analyze(ctx context.Context, event types.ForecastEvent, actuals []float64) ([]types.ForecastError, error) {
	pred := event.Predictions
	n := min(len(pred.Point), len(actuals))
	ctx = log.WithAttrs(ctx, slog.String("forecastID", event.ForecastID))
	if n == 0 {
		log.Ctx(ctx).WarnContext(ctx, "no data to analyze")
		return nil, nil
	}
	point := pred.Point[:n]
	actual := actuals[:n]
	q10 := bound(pred.Q10, point, 0.9)
	q90 := bound(pred.Q90, point, 1.1)

	var found []types.ForecastError
	for _, check := range []func() *types.ForecastError{
		func() *types.ForecastError { return checkMAPE(point, actual) },
		func() *types.ForecastError { return checkPeak(point, actual) },
		func() *types.ForecastError { return checkRamp(point, actual) },
		func() *types.ForecastError { return checkVariance(q10, q90, actual) },
	} {
		fe := check()
		if fe == nil || fe.Severity == types.SeverityLow {
			continue
		}
		fe.ID = uuid.NewString()
		fe.ForecastID = event.ForecastID
		fe.RegionCode = event.RegionCode
		fe.ObservedAt = o.now().UTC()
		fe.AnalysisTriggered = fe.Severity.Rank() >= types.SeverityHigh.Rank()
		found = append(found, *fe)
	}

	for _, fe := range found {
		if o.db != nil {
			if err := o.db.InsertForecastError(ctx, fe); err != nil {
				return found, fmt.Errorf("storing forecast error: %w", err)
			}
		}
		if err := o.sinks.PublishError(ctx, fe); err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to publish forecast error", slog.Any("error", err))
		}
	}
	log.Ctx(ctx).InfoContext(ctx, "analyzed forecast", slog.Int("errors", len(found)))
	return found, nil
}

// bound returns the first n quantile values, or point scaled by factor when
// the quantile is missing.
func bound(q, point []float64, factor float64) []float64 {
	n := len(point)
	if len(q) >= n {
		return q[:n]
	}
	out := make([]float64, n)
	floats.ScaleTo(out, factor, point)
	return out
}

func checkMAPE(point, actual []float64) *types.ForecastError {
	var ape []float64
	absErr := make([]float64, len(point))
	for i := range point {
		absErr[i] = math.Abs(actual[i] - point[i])
		if actual[i] != 0 {
			ape = append(ape, absErr[i]/math.Abs(actual[i]))
		}
	}
	if len(ape) == 0 {
		return nil
	}
	mape := stat.Mean(ape, nil) * 100
	mae := stat.Mean(absErr, nil)
	return &types.ForecastError{
		ErrorType: types.ErrorMAPESpike,
		Severity:  mapeThresholds.severity(mape),
		MAPE:      &mape,
		MAE:       &mae,
		Notes:     fmt.Sprintf("MAPE: %.2f%%, MAE: %.2f MW", mape, mae),
	}
}

func checkPeak(point, actual []float64) *types.ForecastError {
	pi := floats.MaxIdx(point)
	ai := floats.MaxIdx(actual)
	peakErr := math.Abs(point[pi] - actual[ai])
	timing := pi - ai
	if timing < 0 {
		timing = -timing
	}

	severity := peakThresholds.severity(peakErr)
	if timing > peakTimingIntervals {
		severity = severity.Bump()
	}
	return &types.ForecastError{
		ErrorType:   types.ErrorPeakMiss,
		Severity:    severity,
		PeakErrorMW: &peakErr,
		Notes:       fmt.Sprintf("Peak error: %.0f MW, timing off by %d minutes", peakErr, timing*types.IntervalMinutes),
	}
}

func checkRamp(point, actual []float64) *types.ForecastError {
	if len(point) < 2 {
		return nil
	}
	var maxErr float64
	for i := 1; i < len(point); i++ {
		d := math.Abs((point[i] - point[i-1]) - (actual[i] - actual[i-1]))
		maxErr = math.Max(maxErr, d)
	}
	perHour := maxErr * types.IntervalsPerHour
	return &types.ForecastError{
		ErrorType:          types.ErrorRamp,
		Severity:           rampThresholds.severity(perHour),
		RampErrorMWPerHour: &perHour,
		Notes:              fmt.Sprintf("Max ramp error: %.0f MW/hour", perHour),
	}
}

func checkVariance(q10, q90, actual []float64) *types.ForecastError {
	var inside int
	for i, a := range actual {
		if a >= q10[i] && a <= q90[i] {
			inside++
		}
	}
	coverage := float64(inside) / float64(len(actual)) * 100

	var severity types.Severity
	switch {
	case coverage < coverageHigh:
		severity = types.SeverityHigh
	case coverage < coverageMedium:
		severity = types.SeverityMedium
	default:
		return nil
	}
	return &types.ForecastError{
		ErrorType:   types.ErrorVariance,
		Severity:    severity,
		CoveragePct: &coverage,
		Notes:       fmt.Sprintf("Interval coverage: %.1f%% (expected ~80%%)", coverage),
	}
}

// Errors lists recorded errors.
func (o *Observer) Errors(ctx context.Context, filter storage.ErrorFilter) ([]types.ForecastError, error) {
	if o.db == nil {
		return nil, nil
	}
	return o.db.ListForecastErrors(ctx, filter)
}

// PendingAnalysis lists errors that triggered an analysis.
func (o *Observer) PendingAnalysis(ctx context.Context, limit int) ([]types.ForecastError, error) {
	return o.Errors(ctx, storage.ErrorFilter{PendingOnly: true, Limit: ClampRecent(limit)})
}

type ObserverHealth struct {
	Status string `json:"status"`
}

func (o *Observer) Health() ObserverHealth {
	if o.db == nil {
		return ObserverHealth{Status: "degraded"}
	}
	return ObserverHealth{Status: "healthy"}
}
