package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tasktalk/internal/tasks"
)

func (s *Server) taskIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		s.errorResponse(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

type taskCreateRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req taskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	title, err := tasks.ValidateTitle(req.Title)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var desc *string
	if req.Description != nil {
		desc, err = tasks.NormalizeDescription(*req.Description)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	task, err := s.tasks.Create(r.Context(), currentUser(r).ID, title, desc)
	if err != nil {
		s.logger.Error("task create failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, task, s.logger)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	filter := tasks.Filter{
		Search: r.URL.Query().Get("search"),
		Limit:  parseIntParam(r, "limit", 50),
		Offset: parseIntParam(r, "offset", 0),
	}
	if c := r.URL.Query().Get("completed"); c != "" {
		completed, err := strconv.ParseBool(c)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "completed must be true or false")
			return
		}
		filter.Completed = &completed
	}

	list, total, err := s.tasks.List(r.Context(), currentUser(r).ID, filter)
	if err != nil {
		s.logger.Error("task list failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"tasks": list,
		"total": total,
	}, s.logger)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskIDFromPath(w, r)
	if !ok {
		return
	}

	task, err := s.tasks.Get(r.Context(), currentUser(r).ID, id)
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "task not found")
			return
		}
		s.logger.Error("task get failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load task")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, task, s.logger)
}

type taskUpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskIDFromPath(w, r)
	if !ok {
		return
	}

	var req taskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == nil && req.Description == nil {
		s.errorResponse(w, http.StatusBadRequest, "at least one of title or description must be provided")
		return
	}
	if req.Title != nil {
		title, err := tasks.ValidateTitle(*req.Title)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		req.Title = &title
	}
	// A non-nil empty description clears the field, so only length is
	// checked here.
	if req.Description != nil && len(*req.Description) > tasks.MaxDescriptionLen {
		s.errorResponse(w, http.StatusBadRequest, "description too long")
		return
	}

	task, err := s.tasks.Update(r.Context(), currentUser(r).ID, id, req.Title, req.Description)
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "task not found")
			return
		}
		s.logger.Error("task update failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, task, s.logger)
}

type taskCompleteRequest struct {
	Completed *bool `json:"completed,omitempty"`
}

func (s *Server) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskIDFromPath(w, r)
	if !ok {
		return
	}

	completed := true
	if r.ContentLength > 0 {
		var req taskCompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Completed != nil {
			completed = *req.Completed
		}
	}

	task, err := s.tasks.SetCompleted(r.Context(), currentUser(r).ID, id, completed)
	if err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "task not found")
			return
		}
		s.logger.Error("task complete failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, task, s.logger)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.taskIDFromPath(w, r)
	if !ok {
		return
	}

	if _, err := s.tasks.Delete(r.Context(), currentUser(r).ID, id); err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "task not found")
			return
		}
		s.logger.Error("task delete failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
