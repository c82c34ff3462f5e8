package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/powercast/powercast/pkg/learning"
	"github.com/powercast/powercast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu   sync.Mutex
	reqs []learning.LogRequest
	err  error
}

func (r *recordingLogger) Log(ctx context.Context, req learning.LogRequest) (types.ForecastEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return types.ForecastEvent{}, r.err
	}
	r.reqs = append(r.reqs, req)
	return types.ForecastEvent{ForecastID: "fc_test"}, nil
}

func TestBackendPlantForecast(t *testing.T) {
	ctx := context.Background()
	req := types.PlantForecastRequest{PlantType: types.PlantTypeWind, Capacity: 300, Horizon: 2}
	ts0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/v1/forecast/plant", r.URL.Path)
			var got types.PlantForecastRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.Equal(t, req.PlantType, got.PlantType)

			json.NewEncoder(w).Encode(types.PlantForecastResponse{
				Forecast: []types.PlantForecastValue{{Timestamp: ts0, Predicted: 120, Lower: 100, Upper: 140}},
			})
		}))
		defer server.Close()

		b := &Backend{apiURL: server.URL, client: server.Client()}
		resp, err := b.PlantForecast(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, types.SourceBackend, resp.Source)
		assert.Equal(t, types.PlantTypeWind, resp.PlantType)
		assert.Equal(t, 2, resp.Horizon)
		require.Len(t, resp.Forecast, 1)
		assert.Equal(t, 120.0, resp.Forecast[0].Predicted)
	})

	t.Run("Errors", func(t *testing.T) {
		tests := []struct {
			name    string
			handler http.HandlerFunc
		}{
			{"Status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
			{"BadJSON", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("{nope")) }},
			{"Empty", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"forecast":[]}`)) }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(tt.handler)
				defer server.Close()
				b := &Backend{apiURL: server.URL, client: server.Client()}
				_, err := b.PlantForecast(ctx, req)
				assert.ErrorIs(t, err, ErrBackendUnavailable)
			})
		}
	})

	t.Run("Timeout", func(t *testing.T) {
		done := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-done:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(done)

		b := &Backend{apiURL: server.URL, client: &http.Client{Timeout: 50 * time.Millisecond}}
		_, err := b.PlantForecast(ctx, req)
		assert.ErrorIs(t, err, ErrBackendUnavailable)
	})
}

func TestBackendValidate(t *testing.T) {
	assert.NoError(t, NewBackend("http://localhost:8000", time.Second).Validate())
	assert.Error(t, NewBackend("localhost:8000", time.Second).Validate())
}

func TestServicePlant(t *testing.T) {
	ctx := context.Background()
	req := types.PlantForecastRequest{PlantType: types.PlantTypeNuclear, Capacity: 1000, Horizon: 6}

	t.Run("NotConfigured", func(t *testing.T) {
		s := NewService(testGenerator(time.Now()), nil, nil)
		resp := s.Plant(ctx, req)
		assert.Equal(t, types.SourceFallback, resp.Source)
		assert.Len(t, resp.Forecast, 6)
		assert.NotEmpty(t, resp.Warning)
	})

	t.Run("BackendDown", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		s := NewService(testGenerator(time.Now()), &Backend{apiURL: server.URL, client: server.Client()}, nil)
		resp := s.Plant(ctx, req)
		assert.Equal(t, types.SourceFallback, resp.Source)
		assert.Len(t, resp.Forecast, 6)
	})
}

func TestServiceTarget(t *testing.T) {
	ctx := context.Background()

	t.Run("LogsEvent", func(t *testing.T) {
		rec := &recordingLogger{}
		s := NewService(testGenerator(time.Now()), nil, rec)
		fc, err := s.Target(ctx, types.TargetWind, 4)
		require.NoError(t, err)
		assert.Equal(t, "fc_test", fc.Metadata.ForecastID)
		require.Len(t, rec.reqs, 1)
		assert.Equal(t, types.DefaultRegionCode, rec.reqs[0].RegionCode)
		assert.Equal(t, 4, rec.reqs[0].HorizonHours)
		assert.Len(t, rec.reqs[0].Predictions.Point, 16)
	})

	t.Run("LogFailureIgnored", func(t *testing.T) {
		s := NewService(testGenerator(time.Now()), nil, &recordingLogger{err: errors.New("boom")})
		fc, err := s.Target(ctx, types.TargetLoad, 1)
		require.NoError(t, err)
		assert.Empty(t, fc.Metadata.ForecastID)
		assert.Len(t, fc.Predictions, 4)
	})

	t.Run("BadHorizon", func(t *testing.T) {
		s := NewService(testGenerator(time.Now()), nil, nil)
		_, err := s.Target(ctx, types.TargetLoad, 49)
		assert.Error(t, err)
		_, err = s.All(ctx, 0)
		assert.Error(t, err)
	})

	t.Run("All", func(t *testing.T) {
		rec := &recordingLogger{}
		s := NewService(testGenerator(time.Now()), nil, rec)
		all, err := s.All(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, all, 4)
		for _, target := range types.ForecastTargets {
			assert.Len(t, all[target].Predictions, 8)
			assert.Equal(t, string(target), all[target].Metadata.PlantType)
		}
		assert.Len(t, rec.reqs, 4)
	})
}
