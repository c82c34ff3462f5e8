package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/powercast/powercast/pkg/external"
	"github.com/powercast/powercast/pkg/grid"
	"github.com/powercast/powercast/pkg/types"
)

func (s *Server) handleGridStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.grid.Status())
}

func (s *Server) handleGridReserves(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.grid.Reserves())
}

func (s *Server) handleGridUncertainty(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.grid.Uncertainty())
}

func (s *Server) handleGridOptimization(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.grid.OptimizationStatus())
}

func area(r *http.Request) string {
	if a := strings.TrimSpace(r.URL.Query().Get("area")); a != "" {
		return a
	}
	return external.DefaultArea
}

func (s *Server) handleGridPrices(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", external.DefaultPriceHours, 1, external.MaxPriceHours)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.external.Grid.Prices(area(r), hours))
}

func (s *Server) handleGridLoad(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.external.Grid.Load(area(r)))
}

func coordinates(r *http.Request) (lat, lon float64, err error) {
	if lat, err = floatParam(r, "lat", external.DefaultLat); err != nil {
		return 0, 0, err
	}
	if lon, err = floatParam(r, "lon", external.DefaultLon); err != nil {
		return 0, 0, err
	}
	return lat, lon, external.ValidateCoordinates(lat, lon)
}

func (s *Server) handleWeatherCurrent(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := coordinates(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.external.Weather.Current(r.Context(), lat, lon))
}

func (s *Server) handleWeatherForecast(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := coordinates(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	hours, err := intParam(r, "hours", external.DefaultForecastHours, 1, external.MaxForecastHours)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.external.Weather.Forecast(r.Context(), lat, lon, hours))
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assets := s.grid.Assets(grid.AssetFilter{
		Type:   q.Get("asset_type"),
		Status: q.Get("status"),
		Region: q.Get("region"),
	})
	writeJSON(w, http.StatusOK, map[string]any{"count": len(assets), "assets": assets})
}

func (s *Server) handleAssetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.grid.AssetSummary())
}

func writeGridError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, grid.ErrAssetNotFound), errors.Is(err, grid.ErrPatternNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	default:
		internalError(w, r, "grid lookup failed", err)
	}
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := s.grid.Asset(r.PathValue("id"))
	if err != nil {
		writeGridError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAssetForecast(w http.ResponseWriter, r *http.Request) {
	horizon, err := intParam(r, "horizon_hours", types.DefaultHorizon, 1, types.MaxHorizon)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	fc, err := s.grid.AssetForecast(r.PathValue("id"), horizon)
	if err != nil {
		writeGridError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	patterns := s.grid.Patterns()
	writeJSON(w, http.StatusOK, map[string]any{"count": len(patterns), "patterns": patterns})
}

func (s *Server) handlePatternLibrary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.grid.PatternLibrary())
}

func (s *Server) handleGetPattern(w http.ResponseWriter, r *http.Request) {
	p, err := s.grid.Pattern(r.PathValue("id"))
	if err != nil {
		writeGridError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
