package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/powercast/powercast/pkg/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultScenarios   = 1000
	MinScenarios       = 100
	MaxScenarios       = 5000
	HeatmapScenarios   = 500
	scenarioIntervals  = 24 * types.IntervalsPerHour
	scenarioLevelSigma = 300.0
	scenarioStepSigma  = 100.0
	// scenarioPersistence is the AR(1) coefficient of the per-interval noise.
	scenarioPersistence = 0.8
)

// Percentiles holds one value per interval for each percentile.
type Percentiles struct {
	P5  []float64 `json:"p5"`
	P25 []float64 `json:"p25"`
	P50 []float64 `json:"p50"`
	P75 []float64 `json:"p75"`
	P95 []float64 `json:"p95"`
}

// Statistics holds one value per interval for each statistic.
type Statistics struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
	Min  []float64 `json:"min"`
	Max  []float64 `json:"max"`
}

type ScenarioSummary struct {
	Mean         float64 `json:"mean"`
	Std          float64 `json:"std"`
	Percentile5  float64 `json:"percentile_5"`
	Percentile95 float64 `json:"percentile_95"`
}

// ScenarioSet is the outcome of a Monte Carlo run over the load profile.
type ScenarioSet struct {
	GeneratedAt      time.Time                  `json:"generated_at"`
	NScenarios       int                        `json:"n_scenarios"`
	HorizonIntervals int                        `json:"horizon_intervals"`
	Timestamps       []time.Time                `json:"timestamps"`
	Percentiles      Percentiles                `json:"percentiles"`
	Statistics       Statistics                 `json:"statistics"`
	Scenarios        map[string]ScenarioSummary `json:"scenarios"`

	byInterval [][]float64
}

type PowerRange struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Bins int     `json:"bins"`
}

// Heatmap is the probability distribution view of a ScenarioSet.
type Heatmap struct {
	GeneratedAt      time.Time   `json:"generated_at"`
	HorizonIntervals int         `json:"horizon_intervals"`
	PowerRange       PowerRange  `json:"power_range"`
	Percentiles      Percentiles `json:"percentiles"`
	Statistics       Statistics  `json:"statistics"`
	// Density[i][b] is the share of scenarios of interval i in bin b.
	Density [][]float64 `json:"density"`
}

const baseLoad = 9500.0

// loadScenarios are the stress cases reported next to every run.
var loadScenarios = map[string]ScenarioSummary{
	"baseline":     {Mean: baseLoad, Std: 300, Percentile5: baseLoad - 450, Percentile95: baseLoad + 450},
	"extreme_heat": {Mean: baseLoad + 1200, Std: 450, Percentile5: baseLoad + 600, Percentile95: baseLoad + 1800},
	"extreme_cold": {Mean: baseLoad + 800, Std: 400, Percentile5: baseLoad + 350, Percentile95: baseLoad + 1250},
}

// ValidateScenarioCount checks a requested number of scenarios.
func ValidateScenarioCount(n int) error {
	if n < MinScenarios || n > MaxScenarios {
		return fmt.Errorf("n_scenarios must be between %d and %d", MinScenarios, MaxScenarios)
	}
	return nil
}

// Scenarios simulates n load trajectories over the next 24 hours. Each
// trajectory shifts the mock load profile by a random level and adds
// autocorrelated noise.
func (g *Generator) Scenarios(n int) (ScenarioSet, error) {
	if err := ValidateScenarioCount(n); err != nil {
		return ScenarioSet{}, err
	}

	g.mu.Lock()
	now := g.now()
	level := g.normal(0, scenarioLevelSigma)
	step := g.normal(0, scenarioStepSigma)

	timestamps := make([]time.Time, scenarioIntervals)
	profile := make([]float64, scenarioIntervals)
	for i := range scenarioIntervals {
		timestamps[i] = now.Add(time.Duration(i) * types.Interval)
		profile[i] = baseLoad + 1500*dailyShape(fractionalHour(timestamps[i]))
	}

	// byInterval[i] collects the values of every scenario at interval i
	byInterval := make([][]float64, scenarioIntervals)
	for i := range byInterval {
		byInterval[i] = make([]float64, n)
	}
	for s := range n {
		shift := level.Rand()
		var e float64
		for i := range scenarioIntervals {
			e = scenarioPersistence*e + step.Rand()
			byInterval[i][s] = profile[i] + shift + e
		}
	}
	g.mu.Unlock()

	set := ScenarioSet{
		GeneratedAt:      now,
		NScenarios:       n,
		HorizonIntervals: scenarioIntervals,
		Timestamps:       timestamps,
		Scenarios:        loadScenarios,
	}
	for _, values := range byInterval {
		sort.Float64s(values)
		set.Percentiles.P5 = append(set.Percentiles.P5, stat.Quantile(0.05, stat.Empirical, values, nil))
		set.Percentiles.P25 = append(set.Percentiles.P25, stat.Quantile(0.25, stat.Empirical, values, nil))
		set.Percentiles.P50 = append(set.Percentiles.P50, stat.Quantile(0.50, stat.Empirical, values, nil))
		set.Percentiles.P75 = append(set.Percentiles.P75, stat.Quantile(0.75, stat.Empirical, values, nil))
		set.Percentiles.P95 = append(set.Percentiles.P95, stat.Quantile(0.95, stat.Empirical, values, nil))

		mean, std := stat.MeanStdDev(values, nil)
		set.Statistics.Mean = append(set.Statistics.Mean, mean)
		set.Statistics.Std = append(set.Statistics.Std, std)
		set.Statistics.Min = append(set.Statistics.Min, floats.Min(values))
		set.Statistics.Max = append(set.Statistics.Max, floats.Max(values))
	}
	set.byInterval = byInterval
	return set, nil
}

// Heatmap bins a HeatmapScenarios run into 50 power bins between 2000 and
// 10000 MW.
func (g *Generator) Heatmap() (Heatmap, error) {
	set, err := g.Scenarios(HeatmapScenarios)
	if err != nil {
		return Heatmap{}, err
	}
	pr := PowerRange{Min: 2000, Max: 10000, Bins: 50}
	density := make([][]float64, len(set.byInterval))
	for i, values := range set.byInterval {
		counts := make([]float64, pr.Bins)
		for _, v := range values {
			// values outside the range land in the edge bins
			b := int(math.Floor((v - pr.Min) / (pr.Max - pr.Min) * float64(pr.Bins)))
			b = max(0, min(pr.Bins-1, b))
			counts[b]++
		}
		floats.Scale(1/float64(len(values)), counts)
		density[i] = counts
	}

	return Heatmap{
		GeneratedAt:      set.GeneratedAt,
		HorizonIntervals: set.HorizonIntervals,
		PowerRange:       pr,
		Percentiles:      set.Percentiles,
		Statistics:       set.Statistics,
		Density:          density,
	}, nil
}
