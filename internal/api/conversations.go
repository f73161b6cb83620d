package api

import (
	"errors"
	"net/http"

	"tasktalk/internal/conversation"
)

func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request) {
	convs, err := s.convs.List(r.Context(), currentUser(r).ID)
	if err != nil {
		s.logger.Error("conversation list failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"conversations": convs,
		"count":         len(convs),
	}, s.logger)
}

func (s *Server) handleConversationGet(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r).ID
	id := r.PathValue("id")

	conv, err := s.convs.Get(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("conversation get failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	turns, err := s.convs.History(r.Context(), userID, id, parseIntParam(r, "limit", 0))
	if err != nil {
		s.logger.Error("conversation history failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"conversation": conv,
		"turns":        turns,
	}, s.logger)
}

func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request) {
	err := s.convs.Delete(r.Context(), currentUser(r).ID, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("conversation delete failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
