package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"tasktalk/internal/conversation"
	"tasktalk/internal/intent"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// handleChat runs one orchestrator turn.
// POST /v1/chat {"message": "add a task to buy milk"}
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	user := currentUser(r)
	reply, err := s.orch.Run(r.Context(), user.ID, user.Name, req.Message, req.ConversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("chat run failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "chat failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, reply, s.logger)
}

type intentRequest struct {
	Message string `json:"message"`
}

// handleIntent classifies a message without running the agent. Useful
// for clients that want to preview routing or confirm destructive
// intents before sending the message to /v1/chat.
func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	result := intent.Classify(req.Message)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result, s.logger)
}
