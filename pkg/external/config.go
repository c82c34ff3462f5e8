// Package external provides weather and grid market data, from upstream
// APIs when configured and simulated otherwise.
package external

import (
	"fmt"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
)

// Services groups the external data sources.
type Services struct {
	Weather *WeatherService
	Grid    *GridService
}

// Configured registers the external API flags and returns the services.
func Configured() *Services {
	apiKey := lflag.String("openweather-api-key", os.Getenv("OPENWEATHER_API_KEY"), "OpenWeather API key (simulated weather when empty)")
	apiURL := lflag.String("openweather-api-url", defaultOpenWeatherURL, "Base URL of the OpenWeather One Call API")
	timeout := lflag.Duration("openweather-timeout", 10*time.Second, "Timeout of an OpenWeather request")

	s := &Services{
		Weather: NewWeatherService(nil, nil),
		Grid:    NewGridService(nil),
	}

	lflag.Do(func() {
		if *apiKey == "" {
			return
		}
		ow := NewOpenWeather(*apiURL, *apiKey, *timeout)
		if err := ow.Validate(); err != nil {
			panic(fmt.Sprintf("openweather validation failed: %v", err))
		}
		s.Weather.api = ow
	})

	return s
}
