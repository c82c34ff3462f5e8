package external

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/powercast/powercast/pkg/common"
	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/types"
)

const (
	SourceOpenWeather = "openweather"
	SourceSimulated   = "simulated"

	// Zurich
	DefaultLat = 47.3769
	DefaultLon = 8.5417

	DefaultForecastHours = 48
	MaxForecastHours     = 120

	currentCacheTTL = 10 * time.Minute
	maxCachedPoints = 1024
)

// ValidateCoordinates checks lat/lon ranges.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("lat must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("lon must be between -180 and 180")
	}
	return nil
}

func ValidateForecastHours(hours int) error {
	if hours < 1 || hours > MaxForecastHours {
		return fmt.Errorf("hours must be between 1 and %d", MaxForecastHours)
	}
	return nil
}

type coordinate struct {
	lat, lon float64
}

type cachedWeather struct {
	weather   types.Weather
	fetchedAt time.Time
}

// WeatherService serves weather from OpenWeather when configured and falls
// back to simulated weather on any error.
type WeatherService struct {
	api *OpenWeather
	rng *common.Rand
	now func() time.Time

	mu    sync.Mutex
	cache map[coordinate]cachedWeather
}

// NewWeatherService returns a WeatherService. A nil api always simulates.
func NewWeatherService(api *OpenWeather, rng *rand.Rand) *WeatherService {
	return &WeatherService{
		api:   api,
		rng:   common.NewRand(rng),
		now:   time.Now,
		cache: map[coordinate]cachedWeather{},
	}
}

// Live reports whether an upstream API is configured.
func (w *WeatherService) Live() bool {
	return w.api != nil
}

func cacheKey(lat, lon float64) coordinate {
	return coordinate{lat: common.Round(lat, 4), lon: common.Round(lon, 4)}
}

// Current returns the current weather at lat/lon, cached for 10 minutes
// per coordinate.
func (w *WeatherService) Current(ctx context.Context, lat, lon float64) types.Weather {
	now := w.now()
	key := cacheKey(lat, lon)

	w.mu.Lock()
	if c, ok := w.cache[key]; ok && now.Sub(c.fetchedAt) < currentCacheTTL {
		w.mu.Unlock()
		return c.weather
	}
	w.mu.Unlock()

	var weather types.Weather
	if w.api != nil {
		var err error
		weather, err = w.api.Current(ctx, lat, lon, now)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "openweather error, falling back to simulated data", slog.Any("error", err))
			weather = w.simulatedCurrent(lat, now)
		}
	} else {
		weather = w.simulatedCurrent(lat, now)
	}

	w.mu.Lock()
	if _, ok := w.cache[key]; !ok && len(w.cache) >= maxCachedPoints {
		w.evict(now)
	}
	w.cache[key] = cachedWeather{weather: weather, fetchedAt: now}
	w.mu.Unlock()
	return weather
}

// evict drops expired entries, or the oldest one when none expired. w.mu
// must be held.
func (w *WeatherService) evict(now time.Time) {
	var (
		oldest   coordinate
		oldestAt time.Time
	)
	for k, c := range w.cache {
		if now.Sub(c.fetchedAt) >= currentCacheTTL {
			delete(w.cache, k)
			continue
		}
		if oldestAt.IsZero() || c.fetchedAt.Before(oldestAt) {
			oldest, oldestAt = k, c.fetchedAt
		}
	}
	if len(w.cache) >= maxCachedPoints {
		delete(w.cache, oldest)
	}
}

// Forecast returns hours hourly entries starting now.
func (w *WeatherService) Forecast(ctx context.Context, lat, lon float64, hours int) []types.Weather {
	if w.api != nil {
		out, err := w.api.Forecast(ctx, lat, lon, hours)
		if err == nil && len(out) > 0 {
			return out
		}
		if err == nil {
			err = fmt.Errorf("no hourly data")
		}
		log.Ctx(ctx).WarnContext(ctx, "openweather forecast error, falling back to simulated data", slog.Any("error", err))
	}
	return w.simulatedForecast(lat, hours, w.now())
}

func tempCycle(hour int) float64 {
	return 8 * math.Sin(float64(hour-6)*math.Pi/12)
}

func irradiance(hour int, cloud float64) float64 {
	if hour < 6 || hour > 20 {
		return 0
	}
	return max(0, 1000*(1-cloud/100)*math.Sin(float64(hour-6)*math.Pi/14))
}

func (w *WeatherService) precipitation(cloud float64) float64 {
	if cloud <= 70 {
		return 0
	}
	return common.Round(w.rng.Uniform(0, 2), 1)
}

func (w *WeatherService) simulatedCurrent(lat float64, now time.Time) types.Weather {
	now = now.UTC()
	hour := now.Hour()
	cloud := w.rng.Uniform(10, 80)
	return types.Weather{
		Timestamp:     now,
		Temperature:   common.Round(15+lat/10+tempCycle(hour)+w.rng.Uniform(-2, 2), 1),
		Humidity:      common.Round(w.rng.Uniform(30, 80), 1),
		WindSpeed:     common.Round(w.rng.Uniform(0, 15), 1),
		WindDirection: math.Round(w.rng.Uniform(0, 360)),
		CloudCover:    common.Round(cloud, 1),
		Pressure:      common.Round(w.rng.Uniform(990, 1030), 1),
		Irradiance:    common.Round(irradiance(hour, cloud), 1),
		Precipitation: w.precipitation(cloud),
		Source:        SourceSimulated,
	}
}

// simulatedForecast keeps cloud cover persistent between hours.
func (w *WeatherService) simulatedForecast(lat float64, hours int, now time.Time) []types.Weather {
	now = now.UTC()
	baseCloud := w.rng.Uniform(20, 50)
	out := make([]types.Weather, 0, hours)
	for i := range hours {
		ts := now.Add(time.Duration(i) * time.Hour)
		hour := ts.Hour()

		cloud := min(100, max(0, baseCloud+w.rng.Uniform(-10, 10)))
		baseCloud = cloud*0.9 + baseCloud*0.1

		out = append(out, types.Weather{
			Timestamp:     ts,
			Temperature:   common.Round(15+lat/10+tempCycle(hour)+w.rng.Uniform(-1, 1), 1),
			Humidity:      common.Round(w.rng.Uniform(30, 80), 1),
			WindSpeed:     common.Round(w.rng.Uniform(0, 15), 1),
			WindDirection: math.Round(w.rng.Uniform(0, 360)),
			CloudCover:    common.Round(cloud, 1),
			Pressure:      common.Round(w.rng.Uniform(1005, 1020), 1),
			Irradiance:    common.Round(irradiance(hour, cloud), 1),
			Precipitation: w.precipitation(cloud),
			Source:        SourceSimulated,
		})
	}
	return out
}
