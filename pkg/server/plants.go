package server

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/powercast/powercast/pkg/common"
	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
)

const maxPlantForecastHours = 24

type plantListResponse struct {
	Plants []types.Plant `json:"plants"`
	Total  int           `json:"total"`
}

func (s *Server) handleListPlants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.PlantFilter{
		Type:   types.PlantType(q.Get("type")),
		Status: types.PlantStatus(q.Get("status")),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		writeJSONError(w, fmt.Sprintf("unknown plant type %q", filter.Type), http.StatusBadRequest)
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeJSONError(w, fmt.Sprintf("unknown plant status %q", filter.Status), http.StatusBadRequest)
		return
	}
	var err error
	if filter.Limit, filter.Offset, err = pageParams(r); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	plants, total, err := s.storage.ListPlants(r.Context(), s.getUserID(r), filter)
	if err != nil {
		dbError(w, r, "failed to list plants", err)
		return
	}
	if plants == nil {
		plants = []types.Plant{}
	}
	writeJSON(w, http.StatusOK, plantListResponse{Plants: plants, Total: total})
}

func (s *Server) handleCreatePlant(w http.ResponseWriter, r *http.Request) {
	var req types.PlantCreate
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	plant := req.Plant(uuid.NewString(), s.getUserID(r), s.now().UTC())
	if err := s.storage.CreatePlant(r.Context(), plant); err != nil {
		dbError(w, r, "failed to create plant", err)
		return
	}
	writeJSON(w, http.StatusCreated, plant)
}

// ownedPlant loads the plant of the path and writes the error response when
// it is missing or owned by someone else.
func (s *Server) ownedPlant(w http.ResponseWriter, r *http.Request) (types.Plant, bool) {
	plant, err := s.storage.GetPlant(r.Context(), r.PathValue("id"))
	if !checkOwner(w, r, "Plant", err, plant.UserID, s.getUserID(r)) {
		return types.Plant{}, false
	}
	return plant, true
}

func (s *Server) handleGetPlant(w http.ResponseWriter, r *http.Request) {
	plant, ok := s.ownedPlant(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, plant)
}

func (s *Server) handleUpdatePlant(w http.ResponseWriter, r *http.Request) {
	var req types.PlantUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.IsEmpty() {
		writeJSONError(w, "No fields to update", http.StatusBadRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	plant, ok := s.ownedPlant(w, r)
	if !ok {
		return
	}
	req.Apply(&plant, s.now().UTC())
	if err := s.storage.UpdatePlant(r.Context(), plant); err != nil {
		dbError(w, r, "failed to update plant", err)
		return
	}
	writeJSON(w, http.StatusOK, plant)
}

func (s *Server) handleDeletePlant(w http.ResponseWriter, r *http.Request) {
	plant, ok := s.ownedPlant(w, r)
	if !ok {
		return
	}
	if err := s.storage.DeletePlant(r.Context(), plant.ID); err != nil {
		dbError(w, r, "failed to delete plant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type plantForecastResponse struct {
	PlantID   string                     `json:"plant_id"`
	Forecasts []types.PlantForecastPoint `json:"forecasts"`
}

func (s *Server) handlePlantStoredForecast(w http.ResponseWriter, r *http.Request) {
	hours, err := intParam(r, "hours", maxPlantForecastHours, 1, maxPlantForecastHours)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	plant, ok := s.ownedPlant(w, r)
	if !ok {
		return
	}
	points, err := s.storage.GetPlantForecast(r.Context(), plant.ID, hours*types.IntervalsPerHour)
	if err != nil {
		dbError(w, r, "failed to get plant forecast", err)
		return
	}
	if points == nil {
		points = []types.PlantForecastPoint{}
	}
	writeJSON(w, http.StatusOK, plantForecastResponse{PlantID: plant.ID, Forecasts: points})
}

func (s *Server) handlePlantMetrics(w http.ResponseWriter, r *http.Request) {
	plant, ok := s.ownedPlant(w, r)
	if !ok {
		return
	}
	latest, err := s.storage.GetPlantForecast(r.Context(), plant.ID, 1)
	if err != nil {
		dbError(w, r, "failed to get plant metrics", err)
		return
	}
	m := types.PlantMetrics{
		PlantID:         plant.ID,
		Name:            plant.Name,
		Type:            plant.Type,
		CurrentOutputMW: plant.CurrentOutputMW,
		CapacityMW:      plant.CapacityMW,
		UtilizationPct:  common.Round(plant.CurrentOutputMW/plant.CapacityMW*100, 1),
		EfficiencyPct:   plant.EfficiencyPct,
		Status:          plant.Status,
	}
	if len(latest) > 0 {
		m.LatestMetrics = &latest[0]
	}
	writeJSON(w, http.StatusOK, m)
}
