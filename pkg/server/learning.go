package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/powercast/powercast/pkg/learning"
	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
)

func (s *Server) handleLearningHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.learning.Health())
}

func regionParam(r *http.Request) string {
	if region := r.URL.Query().Get("region_code"); region != "" {
		return region
	}
	return types.DefaultRegionCode
}

func (s *Server) handleLearningForecasts(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", learning.DefaultRecent, 1, learning.MaxRecent)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	events, err := s.learning.Logger.Recent(r.Context(), regionParam(r), limit)
	if err != nil {
		dbError(w, r, "failed to list forecast events", err)
		return
	}
	if events == nil {
		events = []types.ForecastEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"forecasts": events, "count": len(events)})
}

func (s *Server) handleLearningForecast(w http.ResponseWriter, r *http.Request) {
	event, err := s.learning.Logger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, "Forecast not found", http.StatusNotFound)
			return
		}
		dbError(w, r, "failed to get forecast event", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleLearningErrors(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", learning.DefaultRecent, 1, learning.MaxRecent)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter := storage.ErrorFilter{
		RegionCode: regionParam(r),
		Severity:   types.Severity(r.URL.Query().Get("severity")),
		Limit:      limit,
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		writeJSONError(w, fmt.Sprintf("unknown severity %q", filter.Severity), http.StatusBadRequest)
		return
	}
	errs, err := s.learning.Observer.Errors(r.Context(), filter)
	if err != nil {
		dbError(w, r, "failed to list forecast errors", err)
		return
	}
	if errs == nil {
		errs = []types.ForecastError{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"errors": errs, "count": len(errs)})
}

func (s *Server) handlePendingAnalysis(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", learning.DefaultRecent, 1, learning.MaxRecent)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	pending, err := s.learning.Observer.PendingAnalysis(r.Context(), limit)
	if err != nil {
		dbError(w, r, "failed to list pending analysis", err)
		return
	}
	if pending == nil {
		pending = []types.ForecastError{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending_count": len(pending), "items": pending})
}

// learnedRule is a correction learned from past errors. No rules are
// learned yet, so every list is empty.
type learnedRule struct {
	ID               string  `json:"id"`
	FailureCause     string  `json:"failure_cause"`
	GeneralizedRule  string  `json:"generalized_rule"`
	Confidence       float64 `json:"confidence"`
	ApplicationCount int     `json:"application_count"`
	SuccessRate      float64 `json:"success_rate"`
}

type rulesResponse struct {
	RegionCode string        `json:"region_code"`
	RulesCount int           `json:"rules_count"`
	Rules      []learnedRule `json:"rules"`
}

func (s *Server) handleLearningRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rulesResponse{RegionCode: regionParam(r), Rules: []learnedRule{}})
}

type explainResponse struct {
	ForecastID         string        `json:"forecast_id"`
	RegionCode         string        `json:"region_code"`
	CreatedAt          time.Time     `json:"created_at"`
	AdjustmentsApplied bool          `json:"adjustments_applied"`
	RulesApplied       []learnedRule `json:"rules_applied"`
}

// handleExplainForecast reports the adjustments applied to a logged
// forecast. Forecasts are served unadjusted.
func (s *Server) handleExplainForecast(w http.ResponseWriter, r *http.Request) {
	event, err := s.learning.Logger.Get(r.Context(), r.PathValue("forecast_id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, "Forecast not found", http.StatusNotFound)
			return
		}
		dbError(w, r, "failed to get forecast event", err)
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{
		ForecastID:   event.ForecastID,
		RegionCode:   event.RegionCode,
		CreatedAt:    event.CreatedAt,
		RulesApplied: []learnedRule{},
	})
}

type evaluateRequest struct {
	ForecastID string    `json:"forecast_id"`
	Actuals    []float64 `json:"actuals"`
}

type evaluateResponse struct {
	ForecastID string                `json:"forecast_id"`
	Errors     []types.ForecastError `json:"errors"`
	Count      int                   `json:"count"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ForecastID == "" {
		writeJSONError(w, "forecast_id is required", http.StatusBadRequest)
		return
	}
	if len(req.Actuals) == 0 {
		writeJSONError(w, "actuals are required", http.StatusBadRequest)
		return
	}
	errs, err := s.learning.Evaluate(r.Context(), req.ForecastID, req.Actuals)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, "Forecast not found", http.StatusNotFound)
			return
		}
		internalError(w, r, "failed to evaluate forecast", err)
		return
	}
	if errs == nil {
		errs = []types.ForecastError{}
	}
	writeJSON(w, http.StatusOK, evaluateResponse{ForecastID: req.ForecastID, Errors: errs, Count: len(errs)})
}
