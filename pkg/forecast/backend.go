package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/powercast/powercast/pkg/common"
	"github.com/powercast/powercast/pkg/log"
	"github.com/powercast/powercast/pkg/types"
)

// ErrBackendUnavailable is returned when the forecasting backend cannot
// produce a usable answer.
var ErrBackendUnavailable = errors.New("forecasting backend unavailable")

const (
	backendPlantPath      = "/api/v1/forecast/plant"
	defaultBackendTimeout = 10 * time.Second
)

// Backend is the client of the external forecasting backend.
type Backend struct {
	apiURL string
	client *http.Client
}

// NewBackend returns a Backend posting to apiURL.
func NewBackend(apiURL string, timeout time.Duration) *Backend {
	return &Backend{apiURL: apiURL, client: common.HTTPClient(timeout)}
}

func (b *Backend) Validate() error {
	u, err := url.Parse(b.apiURL)
	if err != nil {
		return fmt.Errorf("failed to parse forecast backend url (%s): %w", b.apiURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("forecast backend url must be http or https: %s", b.apiURL)
	}
	return nil
}

// PlantForecast posts req to the backend. Every failure wraps
// ErrBackendUnavailable.
func (b *Backend) PlantForecast(ctx context.Context, req types.PlantForecastRequest) (types.PlantForecastResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return types.PlantForecastResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	u, err := url.JoinPath(b.apiURL, backendPlantPath)
	if err != nil {
		return types.PlantForecastResponse{}, fmt.Errorf("invalid backend url: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return types.PlantForecastResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	log.Ctx(ctx).DebugContext(ctx, "requesting plant forecast from backend", "url", u)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return types.PlantForecastResponse{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return types.PlantForecastResponse{}, fmt.Errorf("%w: backend returned status: %d", ErrBackendUnavailable, resp.StatusCode)
	}

	var out types.PlantForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return types.PlantForecastResponse{}, fmt.Errorf("%w: failed to decode response: %w", ErrBackendUnavailable, err)
	}
	if err := out.Validate(); err != nil {
		return types.PlantForecastResponse{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	out.Source = types.SourceBackend
	if out.PlantType == "" {
		out.PlantType = req.PlantType
	}
	if out.Capacity == 0 {
		out.Capacity = req.Capacity
	}
	if out.Horizon == 0 {
		out.Horizon = req.Horizon
	}
	if out.GeneratedAt.IsZero() {
		out.GeneratedAt = time.Now().UTC()
	}
	return out, nil
}
