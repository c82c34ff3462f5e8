package external

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/powercast/powercast/pkg/common"
	"github.com/powercast/powercast/pkg/types"
)

const defaultOpenWeatherURL = "https://api.openweathermap.org/data/3.0"

// OpenWeather is the client of the One Call API.
type OpenWeather struct {
	apiURL string
	apiKey string
	client *resty.Client
}

// NewOpenWeather returns a client for the One Call API at apiURL.
func NewOpenWeather(apiURL, apiKey string, timeout time.Duration) *OpenWeather {
	return &OpenWeather{
		apiURL: apiURL,
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL(apiURL).
			SetTimeout(timeout).
			SetHeader("User-Agent", common.UserAgent()),
	}
}

func (o *OpenWeather) Validate() error {
	if o.apiKey == "" {
		return errors.New("openweather-api-key is required")
	}
	if _, err := url.Parse(o.apiURL); err != nil {
		return fmt.Errorf("failed to parse openweather url (%s): %w", o.apiURL, err)
	}
	return nil
}

// oneCallWeather is a current or hourly entry. Missing fields fall back to
// neutral defaults.
type oneCallWeather struct {
	DT        int64    `json:"dt"`
	Temp      *float64 `json:"temp"`
	Humidity  *float64 `json:"humidity"`
	WindSpeed *float64 `json:"wind_speed"`
	WindDeg   *float64 `json:"wind_deg"`
	Clouds    *float64 `json:"clouds"`
	Pressure  *float64 `json:"pressure"`
	UVI       *float64 `json:"uvi"`
	Rain      struct {
		OneHour float64 `json:"1h"`
	} `json:"rain"`
}

type oneCallResponse struct {
	Current oneCallWeather   `json:"current"`
	Hourly  []oneCallWeather `json:"hourly"`
}

func or(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// weather converts w, using the UV index as a rough irradiance proxy.
func (w oneCallWeather) weather(ts time.Time) types.Weather {
	return types.Weather{
		Timestamp:     ts,
		Temperature:   or(w.Temp, 20),
		Humidity:      or(w.Humidity, 50),
		WindSpeed:     or(w.WindSpeed, 5),
		WindDirection: or(w.WindDeg, 180),
		CloudCover:    or(w.Clouds, 30),
		Pressure:      or(w.Pressure, 1013),
		Irradiance:    or(w.UVI, 5) * 100,
		Precipitation: w.Rain.OneHour,
		Source:        SourceOpenWeather,
	}
}

func (o *OpenWeather) oneCall(ctx context.Context, lat, lon float64) (oneCallResponse, error) {
	var out oneCallResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":     strconv.FormatFloat(lat, 'f', -1, 64),
			"lon":     strconv.FormatFloat(lon, 'f', -1, 64),
			"appid":   o.apiKey,
			"units":   "metric",
			"exclude": "minutely,alerts",
		}).
		SetResult(&out).
		Get("/onecall")
	if err != nil {
		return oneCallResponse{}, fmt.Errorf("failed to call openweather: %w", err)
	}
	if resp.IsError() {
		return oneCallResponse{}, fmt.Errorf("openweather returned status: %d", resp.StatusCode())
	}
	return out, nil
}

// Current returns the current conditions at lat/lon.
func (o *OpenWeather) Current(ctx context.Context, lat, lon float64, now time.Time) (types.Weather, error) {
	data, err := o.oneCall(ctx, lat, lon)
	if err != nil {
		return types.Weather{}, err
	}
	return data.Current.weather(now.UTC()), nil
}

// Forecast returns up to hours hourly entries.
func (o *OpenWeather) Forecast(ctx context.Context, lat, lon float64, hours int) ([]types.Weather, error) {
	data, err := o.oneCall(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	hourly := data.Hourly
	if len(hourly) > hours {
		hourly = hourly[:hours]
	}
	out := make([]types.Weather, len(hourly))
	for i, h := range hourly {
		out[i] = h.weather(time.Unix(h.DT, 0).UTC())
	}
	return out, nil
}
