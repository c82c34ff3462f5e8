package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/powercast/powercast/pkg/storage/storagemock"
	"github.com/powercast/powercast/pkg/types"
)

func TestSuggestions(t *testing.T) {
	srv := newTestServer(t, newSQLite(t))

	// the first listing generates a batch
	w := do(t, srv, http.MethodGet, "/api/v1/optimization", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[suggestionListResponse](t, w)
	assert.Equal(t, 6, list.Total)
	require.Len(t, list.Suggestions, 6)
	for _, sg := range list.Suggestions {
		assert.Equal(t, types.SuggestionPending, sg.Status)
		assert.Equal(t, demoUserID, sg.UserID)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/optimization?priority=high&limit=1", nil)
	high := decode[suggestionListResponse](t, w)
	assert.LessOrEqual(t, len(high.Suggestions), 1)
	for _, sg := range high.Suggestions {
		assert.Equal(t, types.PriorityHigh, sg.Priority)
	}

	id := list.Suggestions[0].ID
	w = do(t, srv, http.MethodPatch, "/api/v1/optimization/"+id+"/apply", nil)
	require.Equal(t, http.StatusOK, w.Code)
	applied := decode[types.Suggestion](t, w)
	assert.Equal(t, types.SuggestionApplied, applied.Status)
	require.NotNil(t, applied.AppliedAt)
	assert.True(t, srv.now().Equal(*applied.AppliedAt))

	w = do(t, srv, http.MethodPatch, "/api/v1/optimization/"+list.Suggestions[1].ID+"/dismiss", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, decode[types.Suggestion](t, w).DismissedAt)

	w = do(t, srv, http.MethodGet, "/api/v1/optimization/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[types.OptimizationSummary](t, w)
	assert.Equal(t, 6, sum.TotalSuggestions)
	assert.Equal(t, 4, sum.PendingCount)
	assert.Equal(t, 1, sum.AppliedCount)
	assert.Equal(t, 1, sum.DismissedCount)
	assert.Equal(t, "CHF 45,200/month", sum.EstimatedSavings)

	w = do(t, srv, http.MethodPost, "/api/v1/optimization/generate?count=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	gen := decode[generateResponse](t, w)
	assert.Equal(t, "Generated 2 new suggestions", gen.Message)
	assert.Len(t, gen.Suggestions, 2)

	w = do(t, srv, http.MethodPost, "/api/v1/optimization/generate?count=21", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodDelete, "/api/v1/optimization/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, srv, http.MethodGet, "/api/v1/optimization/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Suggestion not found", errorMessage(t, w))
}

func TestSuggestionsOwnership(t *testing.T) {
	db := &storagemock.MockDatabase{}
	db.On("GetSuggestion", mock.Anything, "s1").Return(types.Suggestion{ID: "s1", UserID: "other"}, nil)
	srv := newTestServer(t, db)

	for _, path := range []string{"/api/v1/optimization/s1/apply", "/api/v1/optimization/s1/dismiss"} {
		w := do(t, srv, http.MethodPatch, path, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
	db.AssertNotCalled(t, "UpdateSuggestion", mock.Anything, mock.Anything)
}

func TestSuggestionsBadFilter(t *testing.T) {
	srv := newTestServer(t, newSQLite(t))
	w := do(t, srv, http.MethodGet, "/api/v1/optimization?type=magic", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, `unknown suggestion type "magic"`, errorMessage(t, w))
}
