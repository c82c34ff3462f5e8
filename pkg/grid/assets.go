package grid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/powercast/powercast/pkg/common"
	"github.com/powercast/powercast/pkg/types"
)

var ErrAssetNotFound = errors.New("Asset not found")

const assetRegion = "switzerland"

type Asset struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	CapacityMW      float64 `json:"capacity_mw"`
	CurrentOutputMW float64 `json:"current_output_mw"`
	Availability    float64 `json:"availability"`
	Status          string  `json:"status"`
	Online          bool    `json:"online"`
	Region          string  `json:"region"`
}

// AssetFilter narrows Assets. Status is "online" or "offline"; empty fields
// match everything.
type AssetFilter struct {
	Type   string
	Status string
	Region string
}

func (f AssetFilter) match(a Asset) bool {
	if f.Type != "" && !strings.EqualFold(f.Type, a.Type) {
		return false
	}
	if f.Region != "" && !strings.EqualFold(f.Region, a.Region) {
		return false
	}
	switch strings.ToLower(f.Status) {
	case "":
	case "online":
		return a.Online
	case "offline":
		return !a.Online
	default:
		return false
	}
	return true
}

func (s *Service) asset(spec assetSpec) Asset {
	return Asset{
		ID:              spec.ID,
		Name:            spec.Name,
		Type:            spec.ID,
		CapacityMW:      spec.CapacityMW,
		CurrentOutputMW: float64(s.rng.IntRange(spec.OutputMW[0], spec.OutputMW[1])),
		Availability:    float64(s.rng.IntRange(spec.Availability[0], spec.Availability[1])),
		Status:          "operational",
		Online:          true,
		Region:          assetRegion,
	}
}

// Assets returns the generation fleet matching f with fresh output readings.
func (s *Service) Assets(f AssetFilter) []Asset {
	assets := lo.Map(s.catalog.Assets, func(spec assetSpec, _ int) Asset {
		return s.asset(spec)
	})
	return lo.Filter(assets, func(a Asset, _ int) bool {
		return f.match(a)
	})
}

// Asset returns a single asset by id.
func (s *Service) Asset(id string) (Asset, error) {
	spec, ok := lo.Find(s.catalog.Assets, func(spec assetSpec) bool {
		return strings.EqualFold(spec.ID, id)
	})
	if !ok {
		return Asset{}, ErrAssetNotFound
	}
	return s.asset(spec), nil
}

// StableForecast is returned for dispatchable assets without weather
// dependence.
type StableForecast struct {
	Message          string  `json:"message"`
	ExpectedOutputMW float64 `json:"expected_output_mw"`
}

type AssetForecast struct {
	AssetID   string `json:"asset_id"`
	AssetName string `json:"asset_name"`
	// Forecast is a types.Forecast for solar and wind, StableForecast otherwise.
	Forecast any `json:"forecast"`
}

// AssetForecast scales the grid-level solar or wind forecast to the asset's
// capacity.
func (s *Service) AssetForecast(id string, horizonHours int) (AssetForecast, error) {
	a, err := s.Asset(id)
	if err != nil {
		return AssetForecast{}, err
	}
	out := AssetForecast{AssetID: a.ID, AssetName: a.Name}
	switch a.Type {
	case "solar":
		out.Forecast = scaleForecast(s.forecasts.Target(types.TargetSolar, horizonHours), a.CapacityMW/5000)
	case "wind":
		out.Forecast = scaleForecast(s.forecasts.Target(types.TargetWind, horizonHours), a.CapacityMW/300)
	default:
		out.Forecast = StableForecast{
			Message:          fmt.Sprintf("Stable output forecast for %s asset", a.ID),
			ExpectedOutputMW: a.CurrentOutputMW,
		}
	}
	return out, nil
}

func scaleForecast(f types.Forecast, factor float64) types.Forecast {
	f.Predictions = lo.Map(f.Predictions, func(p types.ForecastPoint, _ int) types.ForecastPoint {
		p.Point = common.Round(p.Point*factor, 1)
		p.Q10 = common.Round(p.Q10*factor, 1)
		p.Q90 = common.Round(p.Q90*factor, 1)
		return p
	})
	return f
}

type TypeSummary struct {
	Count           int     `json:"count"`
	OnlineCount     int     `json:"online_count"`
	TotalCapacityMW float64 `json:"total_capacity_mw"`
	TotalOutputMW   float64 `json:"total_output_mw"`
}

type AssetSummary struct {
	TotalAssets     int                    `json:"total_assets"`
	TotalCapacityMW float64                `json:"total_capacity_mw"`
	TotalOutputMW   float64                `json:"total_output_mw"`
	ByType          map[string]TypeSummary `json:"by_type"`
}

// AssetSummary aggregates the fleet by asset type.
func (s *Service) AssetSummary() AssetSummary {
	assets := s.Assets(AssetFilter{})
	byType := lo.MapValues(lo.GroupBy(assets, func(a Asset) string {
		return a.Type
	}), func(group []Asset, _ string) TypeSummary {
		return TypeSummary{
			Count: len(group),
			OnlineCount: lo.CountBy(group, func(a Asset) bool {
				return a.Online
			}),
			TotalCapacityMW: lo.SumBy(group, func(a Asset) float64 { return a.CapacityMW }),
			TotalOutputMW:   lo.SumBy(group, func(a Asset) float64 { return a.CurrentOutputMW }),
		}
	})
	return AssetSummary{
		TotalAssets:     len(assets),
		TotalCapacityMW: lo.SumBy(assets, func(a Asset) float64 { return a.CapacityMW }),
		TotalOutputMW:   lo.SumBy(assets, func(a Asset) float64 { return a.CurrentOutputMW }),
		ByType:          byType,
	}
}
