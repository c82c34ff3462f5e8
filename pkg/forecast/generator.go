package forecast

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/powercast/powercast/pkg/common"
	"github.com/powercast/powercast/pkg/types"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	mockModelType = "mock"
	mockWarning   = "Using mock data - ML model not loaded"
	mockBand      = 400.0
)

var targetBase = map[types.ForecastTarget]float64{
	types.TargetLoad:    9500,
	types.TargetSolar:   1200,
	types.TargetWind:    400,
	types.TargetNetLoad: 9500,
}

// Generator produces synthetic forecasts. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator returns a Generator drawing from rng. A nil rng is seeded
// randomly.
func NewGenerator(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng, now: time.Now}
}

// dailyShape is 0 at 04:00 and peaks at 1 around 10:00.
func dailyShape(hour float64) float64 {
	return 0.5 + 0.5*math.Sin(2*math.Pi*(hour-4)/24)
}

func fractionalHour(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60
}

func (g *Generator) normal(mu, sigma float64) distuv.Normal {
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: g.rng}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// Target returns a mock forecast for target with horizonHours*4 points.
func (g *Generator) Target(target types.ForecastTarget, horizonHours int) types.Forecast {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	base := targetBase[target]
	amplitude := 1500.0
	sigma := 100.0
	if target != types.TargetLoad {
		amplitude *= 0.2
		sigma = 20
	}
	noise := g.normal(0, sigma)

	n := horizonHours * types.IntervalsPerHour
	predictions := make([]types.ForecastPoint, n)
	for i := range n {
		ts := now.Add(time.Duration(i) * types.Interval)
		point := base + amplitude*dailyShape(fractionalHour(ts)) + noise.Rand()
		predictions[i] = types.ForecastPoint{
			Timestamp: ts,
			Point:     point,
			Q10:       point - mockBand,
			Q90:       point + mockBand,
		}
	}

	return types.Forecast{
		Predictions: predictions,
		Metadata: types.ForecastMetadata{
			ModelType:       mockModelType,
			HorizonHours:    horizonHours,
			IntervalMinutes: types.IntervalMinutes,
			PlantType:       string(target),
			GeneratedAt:     now,
			Confidence:      0.90,
			Warning:         mockWarning,
		},
	}
}

// typicalUtilization is the average share of capacity a plant type
// produces over a day.
var typicalUtilization = map[types.PlantType]float64{
	types.PlantTypeSolar:   0.25,
	types.PlantTypeWind:    0.35,
	types.PlantTypeHydro:   0.85,
	types.PlantTypeNuclear: 0.85,
	types.PlantTypeThermal: 0.85,
}

// historyLevel returns the mean historical output as a share of capacity,
// or the typical utilization of the plant type without history.
func historyLevel(req types.PlantForecastRequest) float64 {
	if len(req.HistoricalData) == 0 {
		return typicalUtilization[req.PlantType]
	}
	var sum float64
	for _, h := range req.HistoricalData {
		sum += h.Value
	}
	return clamp(sum/float64(len(req.HistoricalData))/req.Capacity, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// PlantForecast returns an hourly synthetic forecast for a single plant.
// The output level is anchored on the mean of the historical data when
// there is any.
func (g *Generator) PlantForecast(req types.PlantForecastRequest) types.PlantForecastResponse {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	start := now.Truncate(time.Hour).Add(time.Hour)
	level := historyLevel(req)

	// wind walks around the anchored level
	walk := level
	step := g.normal(0, 0.05)
	flat := g.normal(1, 0.02)

	values := make([]types.PlantForecastValue, req.Horizon)
	for i := range req.Horizon {
		ts := start.Add(time.Duration(i) * time.Hour)
		hour := float64(ts.Hour())

		var utilization float64
		switch req.PlantType {
		case types.PlantTypeSolar:
			if hour >= 6 && hour < 20 {
				// the daylight bell averages to ~0.34 of its peak over a day
				peak := clamp(level/0.34, 0.05, 1)
				utilization = peak * math.Sin(math.Pi*(hour-6)/14) * g.uniform(0.85, 1)
			}
		case types.PlantTypeWind:
			walk = clamp(walk+step.Rand(), 0.02, 0.98)
			utilization = walk
		default:
			utilization = level * flat.Rand()
		}

		predicted := clamp(utilization*req.Capacity, 0, req.Capacity)
		values[i] = types.PlantForecastValue{
			Timestamp: ts,
			Predicted: common.Round(predicted, 2),
			Lower:     common.Round(predicted*0.9, 2),
			Upper:     common.Round(math.Min(predicted*1.1, req.Capacity), 2),
		}
	}

	return types.PlantForecastResponse{
		Forecast:    values,
		Source:      types.SourceFallback,
		PlantType:   req.PlantType,
		Capacity:    req.Capacity,
		Horizon:     req.Horizon,
		GeneratedAt: now,
	}
}
