package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"tasktalk/internal/users"
)

type contextKey string

const userContextKey contextKey = "user"

// currentUser returns the authenticated user placed on the request
// context by requireAuth.
func currentUser(r *http.Request) *users.User {
	u, _ := r.Context().Value(userContextKey).(*users.User)
	return u
}

// requireAuth resolves the bearer token to a user and rejects the
// request with 401 otherwise. WebSocket clients may pass the token as
// a query parameter since browsers cannot set headers on upgrades.
func (s *Server) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tasktalk"`)
			s.errorResponse(w, http.StatusUnauthorized, "authentication required")
			return
		}

		user, err := s.users.Resolve(r.Context(), token)
		if err != nil {
			if !errors.Is(err, users.ErrInvalidToken) {
				s.logger.Error("session lookup failed", "error", err)
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="tasktalk"`)
			s.errorResponse(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *users.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			s.errorResponse(w, http.StatusConflict, "email is already registered")
			return
		}
		s.logger.Debug("register rejected", "error", err)
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	token, expiresAt, err := s.users.CreateSession(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("create session failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	s.logger.Info("user registered", "user_id", user.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, sessionResponse{Token: token, ExpiresAt: expiresAt, User: user}, s.logger)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			s.errorResponse(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		s.logger.Error("login failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, expiresAt, err := s.users.CreateSession(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("create session failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, sessionResponse{Token: token, ExpiresAt: expiresAt, User: user}, s.logger)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, currentUser(r), s.logger)
}
