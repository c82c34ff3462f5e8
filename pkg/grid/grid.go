// Package grid serves the simulated state of the Swiss grid: generation
// mix, reserves, assets and detected load patterns.
package grid

import (
	"math/rand/v2"
	"time"

	"github.com/powercast/powercast/pkg/common"
	"github.com/powercast/powercast/pkg/types"
)

// TargetForecaster produces grid-level forecasts per target.
type TargetForecaster interface {
	Target(target types.ForecastTarget, horizonHours int) types.Forecast
}

// Service simulates grid data from the embedded catalog.
type Service struct {
	catalog   catalog
	rng       *common.Rand
	now       func() time.Time
	forecasts TargetForecaster
}

// NewService returns a Service. rng may be nil.
func NewService(forecasts TargetForecaster, rng *rand.Rand) *Service {
	return &Service{
		catalog:   defaultCatalog,
		rng:       common.NewRand(rng),
		now:       time.Now,
		forecasts: forecasts,
	}
}

type Status struct {
	Timestamp             time.Time          `json:"timestamp"`
	FrequencyHz           float64            `json:"frequency_hz"`
	TotalLoadMW           float64            `json:"total_load_mw"`
	RenewableGenerationMW float64            `json:"renewable_generation_mw"`
	SolarGenerationMW     float64            `json:"solar_generation_mw"`
	WindGenerationMW      float64            `json:"wind_generation_mw"`
	HydroGenerationMW     float64            `json:"hydro_generation_mw"`
	NuclearGenerationMW   float64            `json:"nuclear_generation_mw"`
	NetImportMW           float64            `json:"net_import_mw"`
	ReserveMarginMW       float64            `json:"reserve_margin_mw"`
	ImportsMW             float64            `json:"imports_mw"`
	ExportsMW             float64            `json:"exports_mw"`
	RegionalLoad          map[string]float64 `json:"regional_load"`
	Status                string             `json:"status"`
}

// Status returns a random snapshot of the Swiss generation mix. The grid
// is "stressed" when more than 1000 MW are imported or exported.
func (s *Service) Status() Status {
	now := s.now()
	hour := now.Hour()

	load := float64(s.rng.IntRange(8500, 11000))
	nuclear := float64(s.rng.IntRange(3000, 4500))
	hydro := float64(s.rng.IntRange(2500, 4000))
	solar := float64(s.rng.IntRange(0, 200))
	if hour >= 6 && hour <= 20 {
		solar = float64(s.rng.IntRange(500, 2500))
	}
	wind := float64(s.rng.IntRange(200, 800))
	netImport := load - (nuclear + hydro + solar + wind)

	st := Status{
		Timestamp:             now.UTC(),
		FrequencyHz:           common.Round(50+s.rng.Uniform(-0.05, 0.05), 3),
		TotalLoadMW:           load,
		RenewableGenerationMW: solar + wind,
		SolarGenerationMW:     solar,
		WindGenerationMW:      wind,
		HydroGenerationMW:     hydro,
		NuclearGenerationMW:   nuclear,
		NetImportMW:           netImport,
		ReserveMarginMW:       s.catalog.Reserves.MarginMW,
		ImportsMW:             max(0, netImport),
		ExportsMW:             max(0, -netImport),
		RegionalLoad:          s.catalog.RegionalLoad,
		Status:                "normal",
	}
	if netImport >= 1000 || netImport <= -1000 {
		st.Status = "stressed"
	}
	return st
}

type Reserves struct {
	Timestamp        time.Time    `json:"timestamp"`
	ReserveMarginMW  float64      `json:"reserve_margin_mw"`
	ReserveMarginPct float64      `json:"reserve_margin_pct"`
	PrimaryReserve   ReserveLevel `json:"primary_reserve"`
	SecondaryReserve ReserveLevel `json:"secondary_reserve"`
	TertiaryReserve  ReserveLevel `json:"tertiary_reserve"`
}

// Reserves reports the operating reserves against the current load.
func (s *Service) Reserves() Reserves {
	r := s.catalog.Reserves
	load := s.Status().TotalLoadMW
	return Reserves{
		Timestamp:        s.now().UTC(),
		ReserveMarginMW:  r.MarginMW,
		ReserveMarginPct: common.Round(r.MarginMW/load*100, 1),
		PrimaryReserve:   r.Primary,
		SecondaryReserve: r.Secondary,
		TertiaryReserve:  r.Tertiary,
	}
}

type Uncertainty struct {
	Timestamp time.Time     `json:"timestamp"`
	Solar     RiskIndicator `json:"solar"`
	Wind      RiskIndicator `json:"wind"`
	Overall   RiskIndicator `json:"overall"`
}

func (s *Service) Uncertainty() Uncertainty {
	u := s.catalog.Uncertainty
	return Uncertainty{Timestamp: s.now().UTC(), Solar: u.Solar, Wind: u.Wind, Overall: u.Overall}
}

type OptimizationStatus struct {
	Timestamp              time.Time `json:"timestamp"`
	Status                 string    `json:"status"`
	LastRun                time.Time `json:"last_run"`
	ObjectiveValue         float64   `json:"objective_value"`
	ExecutionTimeMS        int       `json:"execution_time_ms"`
	ConstraintsSatisfied   bool      `json:"constraints_satisfied"`
	RecommendationsPending int       `json:"recommendations_pending"`
}

func (s *Service) OptimizationStatus() OptimizationStatus {
	o := s.catalog.Optimization
	now := s.now().UTC()
	return OptimizationStatus{
		Timestamp:              now,
		Status:                 o.Status,
		LastRun:                now,
		ObjectiveValue:         o.ObjectiveValue,
		ExecutionTimeMS:        o.ExecutionTimeMS,
		ConstraintsSatisfied:   o.ConstraintsSatisfied,
		RecommendationsPending: o.RecommendationsPending,
	}
}

// Strategies lists the scenario optimization strategies.
func (s *Service) Strategies() []Strategy {
	return append([]Strategy(nil), s.catalog.Strategies...)
}
