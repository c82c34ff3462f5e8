package external

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/powercast/powercast/pkg/common"
	"github.com/powercast/powercast/pkg/types"
)

const (
	DefaultArea       = "CH"
	DefaultPriceHours = 24
	MaxPriceHours     = 168

	basePriceCHF   = 85.0
	baseLoadMW     = 8000.0
	gridCapacityMW = 12000.0
)

func ValidatePriceHours(hours int) error {
	if hours < 1 || hours > MaxPriceHours {
		return fmt.Errorf("hours must be between 1 and %d", MaxPriceHours)
	}
	return nil
}

// GridService simulates day-ahead prices and grid load of a bidding area.
type GridService struct {
	rng *common.Rand
	now func() time.Time
}

// NewGridService returns a GridService. rng may be nil.
func NewGridService(rng *rand.Rand) *GridService {
	return &GridService{rng: common.NewRand(rng), now: time.Now}
}

type period int

const (
	periodNormal period = iota
	periodMorningPeak
	periodEveningPeak
	periodNightValley
)

func periodOf(hour int) period {
	switch {
	case hour >= 7 && hour <= 9:
		return periodMorningPeak
	case hour >= 17 && hour <= 20:
		return periodEveningPeak
	case hour >= 1 && hour <= 5:
		return periodNightValley
	}
	return periodNormal
}

func (g *GridService) priceMultiplier(hour int) float64 {
	switch periodOf(hour) {
	case periodMorningPeak:
		return 1.3 + g.rng.Uniform(-0.1, 0.1)
	case periodEveningPeak:
		return 1.5 + g.rng.Uniform(-0.1, 0.1)
	case periodNightValley:
		return 0.6 + g.rng.Uniform(-0.05, 0.05)
	}
	return 1.0 + g.rng.Uniform(-0.15, 0.15)
}

// Prices returns hours hourly prices in CHF/MWh starting now.
func (g *GridService) Prices(area string, hours int) []types.GridPrice {
	now := g.now().UTC()
	out := make([]types.GridPrice, hours)
	for i := range out {
		ts := now.Add(time.Duration(i) * time.Hour)
		out[i] = types.GridPrice{
			Timestamp: ts,
			Price:     common.Round(basePriceCHF*g.priceMultiplier(ts.Hour()), 2),
			Currency:  "CHF",
			Area:      area,
		}
	}
	return out
}

func loadMultiplier(hour int) float64 {
	switch periodOf(hour) {
	case periodMorningPeak:
		return 1.2
	case periodEveningPeak:
		return 1.3
	case periodNightValley:
		return 0.7
	}
	return 1.0
}

// Load returns a snapshot of the current load of area.
func (g *GridService) Load(area string) types.GridLoad {
	now := g.now().UTC()
	load := baseLoadMW * loadMultiplier(now.Hour()) * g.rng.Uniform(0.95, 1.05)
	return types.GridLoad{
		Timestamp:      now,
		Area:           area,
		CurrentLoadMW:  math.Round(load),
		CapacityMW:     gridCapacityMW,
		UtilizationPct: common.Round(load/gridCapacityMW*100, 1),
		RenewablePct:   common.Round(g.rng.Uniform(35, 55), 1),
		ImportExportMW: math.Round(g.rng.Uniform(-500, 500)),
	}
}
