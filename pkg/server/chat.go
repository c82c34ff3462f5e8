package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/powercast/powercast/pkg/chat"
	"github.com/powercast/powercast/pkg/log"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req chat.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.assistant.Chat(ctx, s.getUserID(r), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, chat.ErrNotConfigured):
		writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, chat.ErrEmptyMessage):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, chat.ErrRateLimited):
		writeJSONError(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, chat.ErrUpstream), errors.Is(err, chat.ErrEmptyResponse):
		log.Ctx(ctx).WarnContext(ctx, "gemini request failed", slog.Any("error", err))
		writeJSONError(w, err.Error(), http.StatusBadGateway)
	default:
		internalError(w, r, "chat failed", err)
	}
}
