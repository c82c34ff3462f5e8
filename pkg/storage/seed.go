package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/powercast/powercast/pkg/common"
	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/types"
)

type demoPlant struct {
	name     string
	typ      types.PlantType
	capacity float64
	location string
}

var demoPlants = []demoPlant{
	{"Solar Farm Alpha", types.PlantTypeSolar, 500, "Zurich, CH"},
	{"Hydro Station Beta", types.PlantTypeHydro, 800, "Lucerne, CH"},
	{"Nuclear Plant Gamma", types.PlantTypeNuclear, 1000, "Bern, CH"},
	{"Wind Farm Delta", types.PlantTypeWind, 300, "Basel, CH"},
	{"Thermal Plant Epsilon", types.PlantTypeThermal, 600, "Geneva, CH"},
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// SeedDemo inserts the demo fleet and a day of forecast points for userID.
// It does nothing when the user already owns plants.
func SeedDemo(ctx context.Context, db Database, userID string, rng *rand.Rand) error {
	_, total, err := db.ListPlants(ctx, userID, PlantFilter{Limit: 1})
	if err != nil {
		return fmt.Errorf("checking existing plants: %w", err)
	}
	if total > 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, d := range demoPlants {
		current := d.capacity * uniform(rng, 0.5, 0.95)
		location := d.location
		efficiency := common.Round(current/d.capacity*100, 2)
		plant := types.Plant{
			ID:              uuid.NewString(),
			UserID:          userID,
			Name:            d.name,
			Type:            d.typ,
			CapacityMW:      d.capacity,
			CurrentOutputMW: common.Round(current, 2),
			Status:          types.PlantStatusOnline,
			Location:        &location,
			EfficiencyPct:   &efficiency,
			Metadata:        map[string]any{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := db.CreatePlant(ctx, plant); err != nil {
			return fmt.Errorf("creating demo plant %s: %w", d.name, err)
		}

		points := make([]types.PlantForecastPoint, 0, 24*types.IntervalsPerHour)
		for i := range 24 * types.IntervalsPerHour {
			ts := now.Add(time.Duration(i) * types.Interval)
			hourFactor := 1 + 0.3*(1-math.Abs(12-float64(ts.Hour()))/12)
			output := current * hourFactor * uniform(rng, 0.9, 1.1)
			points = append(points, types.PlantForecastPoint{
				PlantID:           plant.ID,
				Timestamp:         ts,
				PredictedOutputMW: common.Round(output, 2),
				LowerBoundMW:      common.Round(output*0.9, 2),
				UpperBoundMW:      common.Round(output*1.1, 2),
				Confidence:        common.Round(uniform(rng, 85, 98), 1),
				Temperature:       common.Round(20+uniform(rng, -5, 10), 1),
				Humidity:          common.Round(uniform(rng, 40, 80), 1),
				WindSpeed:         common.Round(uniform(rng, 0, 15), 1),
				CloudCover:        common.Round(uniform(rng, 0, 100), 1),
			})
		}
		if err := db.ReplacePlantForecast(ctx, plant.ID, points); err != nil {
			return fmt.Errorf("storing demo forecast for %s: %w", d.name, err)
		}
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded demo plants", slog.String("userID", userID), slog.Int("count", len(demoPlants)))
	return nil
}
