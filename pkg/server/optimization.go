package server

import (
	"fmt"
	"net/http"

	"github.com/powercast/powercast/pkg/optimization"
	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/types"
)

type suggestionListResponse struct {
	Suggestions []types.Suggestion `json:"suggestions"`
	Total       int                `json:"total"`
}

type generateResponse struct {
	Message     string             `json:"message"`
	Suggestions []types.Suggestion `json:"suggestions"`
}

func (s *Server) generateSuggestions(r *http.Request, userID string, count int) ([]types.Suggestion, error) {
	suggestions := optimization.Generate(userID, count, s.rng, s.now())
	if err := s.storage.InsertSuggestions(r.Context(), suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

func (s *Server) handleListSuggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.getUserID(r)
	q := r.URL.Query()
	filter := storage.SuggestionFilter{
		Type:     types.SuggestionType(q.Get("type")),
		Priority: types.SuggestionPriority(q.Get("priority")),
		Status:   types.SuggestionStatus(q.Get("status")),
	}
	switch {
	case filter.Type != "" && !filter.Type.Valid():
		writeJSONError(w, fmt.Sprintf("unknown suggestion type %q", filter.Type), http.StatusBadRequest)
		return
	case filter.Priority != "" && !filter.Priority.Valid():
		writeJSONError(w, fmt.Sprintf("unknown priority %q", filter.Priority), http.StatusBadRequest)
		return
	case filter.Status != "" && !filter.Status.Valid():
		writeJSONError(w, fmt.Sprintf("unknown suggestion status %q", filter.Status), http.StatusBadRequest)
		return
	}
	var err error
	if filter.Limit, filter.Offset, err = pageParams(r); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// a user without any suggestion gets a first batch
	_, existing, err := s.storage.ListSuggestions(ctx, userID, storage.SuggestionFilter{Limit: 1})
	if err != nil {
		dbError(w, r, "failed to count suggestions", err)
		return
	}
	if existing == 0 {
		if _, err := s.generateSuggestions(r, userID, optimization.DefaultGenerate); err != nil {
			dbError(w, r, "failed to store generated suggestions", err)
			return
		}
	}

	suggestions, total, err := s.storage.ListSuggestions(ctx, userID, filter)
	if err != nil {
		dbError(w, r, "failed to list suggestions", err)
		return
	}
	if suggestions == nil {
		suggestions = []types.Suggestion{}
	}
	writeJSON(w, http.StatusOK, suggestionListResponse{Suggestions: suggestions, Total: total})
}

func (s *Server) handleSuggestionSummary(w http.ResponseWriter, r *http.Request) {
	suggestions, _, err := s.storage.ListSuggestions(r.Context(), s.getUserID(r), storage.SuggestionFilter{})
	if err != nil {
		dbError(w, r, "failed to list suggestions", err)
		return
	}
	writeJSON(w, http.StatusOK, optimization.Summarize(suggestions))
}

func (s *Server) handleGenerateSuggestions(w http.ResponseWriter, r *http.Request) {
	count, err := intParam(r, "count", optimization.DefaultGenerate, 1, optimization.MaxGenerate)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	suggestions, err := s.generateSuggestions(r, s.getUserID(r), count)
	if err != nil {
		dbError(w, r, "failed to store generated suggestions", err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{
		Message:     fmt.Sprintf("Generated %d new suggestions", len(suggestions)),
		Suggestions: suggestions,
	})
}

func (s *Server) ownedSuggestion(w http.ResponseWriter, r *http.Request) (types.Suggestion, bool) {
	sg, err := s.storage.GetSuggestion(r.Context(), r.PathValue("id"))
	if !checkOwner(w, r, "Suggestion", err, sg.UserID, s.getUserID(r)) {
		return types.Suggestion{}, false
	}
	return sg, true
}

func (s *Server) handleGetSuggestion(w http.ResponseWriter, r *http.Request) {
	sg, ok := s.ownedSuggestion(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sg)
}

// updateSuggestion applies change to the suggestion of the path and stores
// it.
func (s *Server) updateSuggestion(w http.ResponseWriter, r *http.Request, change func(*types.Suggestion)) {
	sg, ok := s.ownedSuggestion(w, r)
	if !ok {
		return
	}
	change(&sg)
	if err := s.storage.UpdateSuggestion(r.Context(), sg); err != nil {
		dbError(w, r, "failed to update suggestion", err)
		return
	}
	writeJSON(w, http.StatusOK, sg)
}

func (s *Server) handleApplySuggestion(w http.ResponseWriter, r *http.Request) {
	s.updateSuggestion(w, r, func(sg *types.Suggestion) {
		sg.Apply(s.now().UTC())
	})
}

func (s *Server) handleDismissSuggestion(w http.ResponseWriter, r *http.Request) {
	s.updateSuggestion(w, r, func(sg *types.Suggestion) {
		sg.Dismiss(s.now().UTC())
	})
}

func (s *Server) handleDeleteSuggestion(w http.ResponseWriter, r *http.Request) {
	sg, ok := s.ownedSuggestion(w, r)
	if !ok {
		return
	}
	if err := s.storage.DeleteSuggestion(r.Context(), sg.ID); err != nil {
		dbError(w, r, "failed to delete suggestion", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
