package server

import (
	"net/http"

	"github.com/powercast/powercast/pkg/forecast"
	"github.com/powercast/powercast/pkg/types"
)

// handlePlantForecast proxies a plant forecast to the forecasting backend,
// falling back to the synthetic generator.
func (s *Server) handlePlantForecast(w http.ResponseWriter, r *http.Request) {
	var req types.PlantForecastRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.forecasts.Plant(r.Context(), req))
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	target, err := types.ParseForecastTarget(r.URL.Query().Get("target"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	horizon, err := intParam(r, "horizon_hours", types.DefaultHorizon, 1, types.MaxHorizon)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	fc, err := s.forecasts.Target(r.Context(), target, horizon)
	if err != nil {
		if !writeValidationError(w, err) {
			internalError(w, r, "failed to forecast", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handleForecastAll(w http.ResponseWriter, r *http.Request) {
	horizon, err := intParam(r, "horizon_hours", types.DefaultHorizon, 1, types.MaxHorizon)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	all, err := s.forecasts.All(r.Context(), horizon)
	if err != nil {
		if !writeValidationError(w, err) {
			internalError(w, r, "failed to forecast all targets", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleForecastAccuracy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.forecasts.Accuracy())
}

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n_scenarios", forecast.DefaultScenarios, forecast.MinScenarios, forecast.MaxScenarios)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	set, err := s.forecasts.Generator().Scenarios(n)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	hm, err := s.forecasts.Generator().Heatmap()
	if err != nil {
		internalError(w, r, "failed to build heatmap", err)
		return
	}
	writeJSON(w, http.StatusOK, hm)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"strategies": s.grid.Strategies()})
}
