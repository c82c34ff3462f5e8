package server

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/storage/storagemock"
	"github.com/powercast/powercast/pkg/types"
)

func TestPlantsCRUD(t *testing.T) {
	srv := newTestServer(t, newSQLite(t))

	w := do(t, srv, http.MethodPost, "/api/v1/plants", map[string]any{
		"name":        "Solar Farm Alpha",
		"type":        "solar",
		"capacity_mw": 500,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[types.Plant](t, w)
	assert.Equal(t, demoUserID, created.UserID)
	assert.Equal(t, types.PlantStatusOnline, created.Status)
	assert.NotEmpty(t, created.ID)

	w = do(t, srv, http.MethodGet, "/api/v1/plants?type=solar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[plantListResponse](t, w)
	assert.Equal(t, 1, list.Total)
	require.Len(t, list.Plants, 1)

	w = do(t, srv, http.MethodGet, "/api/v1/plants?type=hydro", nil)
	assert.Equal(t, 0, decode[plantListResponse](t, w).Total)

	w = do(t, srv, http.MethodPatch, "/api/v1/plants/"+created.ID, map[string]any{"current_output_mw": 250})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 250.0, decode[types.Plant](t, w).CurrentOutputMW)

	w = do(t, srv, http.MethodGet, "/api/v1/plants/"+created.ID+"/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	m := decode[types.PlantMetrics](t, w)
	assert.Equal(t, 50.0, m.UtilizationPct)
	assert.Nil(t, m.LatestMetrics)

	w = do(t, srv, http.MethodGet, "/api/v1/plants/"+created.ID+"/forecast", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[plantForecastResponse](t, w).Forecasts)

	w = do(t, srv, http.MethodDelete, "/api/v1/plants/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/plants/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Plant not found", errorMessage(t, w))
}

func TestPlantsValidation(t *testing.T) {
	srv := newTestServer(t, newSQLite(t))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		msg    string
	}{
		{"bad type", http.MethodPost, "/api/v1/plants", map[string]any{"name": "x", "type": "coal", "capacity_mw": 1}, `type: unknown plant type "coal"`},
		{"zero capacity", http.MethodPost, "/api/v1/plants", map[string]any{"name": "x", "type": "wind", "capacity_mw": 0}, "capacity_mw: must be greater than 0"},
		{"empty update", http.MethodPatch, "/api/v1/plants/abc", map[string]any{}, "No fields to update"},
		{"bad filter", http.MethodGet, "/api/v1/plants?status=broken", nil, `unknown plant status "broken"`},
		{"bad limit", http.MethodGet, "/api/v1/plants?limit=0", nil, "limit must be between 1 and 100"},
		{"forecast hours", http.MethodGet, "/api/v1/plants/abc/forecast?hours=25", nil, "hours must be between 1 and 24"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.msg, errorMessage(t, w))
		})
	}
}

func TestPlantsOwnership(t *testing.T) {
	db := &storagemock.MockDatabase{}
	db.On("GetPlant", mock.Anything, "theirs").Return(types.Plant{ID: "theirs", UserID: "someone-else"}, nil)
	db.On("GetPlant", mock.Anything, "broken").Return(types.Plant{}, errors.New("connection reset"))
	db.On("GetPlant", mock.Anything, "gone").Return(types.Plant{}, storage.ErrNotFound)
	srv := newTestServer(t, db)

	w := do(t, srv, http.MethodGet, "/api/v1/plants/theirs", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied", errorMessage(t, w))

	w = do(t, srv, http.MethodDelete, "/api/v1/plants/theirs", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/plants/broken", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Database error", errorMessage(t, w))

	w = do(t, srv, http.MethodGet, "/api/v1/plants/gone/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	db.AssertNotCalled(t, "DeletePlant", mock.Anything, mock.Anything)
}

func TestPlantsSeeded(t *testing.T) {
	db := newSQLite(t)
	require.NoError(t, storage.SeedDemo(t.Context(), db, demoUserID, testRand()))
	srv := newTestServer(t, db)

	w := do(t, srv, http.MethodGet, "/api/v1/plants?limit=2", nil)
	list := decode[plantListResponse](t, w)
	assert.Equal(t, 5, list.Total)
	require.Len(t, list.Plants, 2)

	w = do(t, srv, http.MethodGet, "/api/v1/plants/"+list.Plants[0].ID+"/forecast?hours=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[plantForecastResponse](t, w).Forecasts, 8)

	w = do(t, srv, http.MethodGet, "/api/v1/plants/"+list.Plants[0].ID+"/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode[types.PlantMetrics](t, w).LatestMetrics)
}
