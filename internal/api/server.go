// Package api implements the TaskTalk HTTP API.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tasktalk/internal/agent"
	"tasktalk/internal/buildinfo"
	"tasktalk/internal/conversation"
	"tasktalk/internal/events"
	"tasktalk/internal/tasks"
	"tasktalk/internal/users"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Deps bundles the stores and services the API serves.
type Deps struct {
	DB            *sql.DB
	Users         *users.Store
	Tasks         *tasks.Store
	Conversations *conversation.Store
	Orchestrator  *agent.Orchestrator
	Bus           *events.Bus
}

// Server is the HTTP API server.
type Server struct {
	address    string
	port       int
	db         *sql.DB
	users      *users.Store
	tasks      *tasks.Store
	convs      *conversation.Store
	orch       *agent.Orchestrator
	bus        *events.Bus
	mcpHandler http.Handler
	logger     *slog.Logger
	server     *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		db:      deps.DB,
		users:   deps.Users,
		tasks:   deps.Tasks,
		convs:   deps.Conversations,
		orch:    deps.Orchestrator,
		bus:     deps.Bus,
		logger:  logger,
	}
}

// SetMCPHandler mounts an MCP endpoint at /mcp. Optional.
func (s *Server) SetMCPHandler(h http.Handler) {
	s.mcpHandler = h
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive the full stack through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Auth endpoints
	mux.HandleFunc("POST /v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", s.handleLogin)
	mux.Handle("GET /v1/auth/me", s.requireAuth(s.handleMe))

	// Task endpoints
	mux.Handle("GET /v1/tasks", s.requireAuth(s.handleTaskList))
	mux.Handle("POST /v1/tasks", s.requireAuth(s.handleTaskCreate))
	mux.Handle("GET /v1/tasks/{id}", s.requireAuth(s.handleTaskGet))
	mux.Handle("PATCH /v1/tasks/{id}", s.requireAuth(s.handleTaskUpdate))
	mux.Handle("DELETE /v1/tasks/{id}", s.requireAuth(s.handleTaskDelete))
	mux.Handle("POST /v1/tasks/{id}/complete", s.requireAuth(s.handleTaskComplete))

	// Conversation endpoints
	mux.Handle("GET /v1/conversations", s.requireAuth(s.handleConversationList))
	mux.Handle("GET /v1/conversations/{id}", s.requireAuth(s.handleConversationGet))
	mux.Handle("DELETE /v1/conversations/{id}", s.requireAuth(s.handleConversationDelete))

	// Chat and intent endpoints
	mux.Handle("POST /v1/chat", s.requireAuth(s.handleChat))
	mux.Handle("GET /v1/chat/ws", s.requireAuth(s.handleChatWS))
	mux.Handle("POST /v1/intent", s.requireAuth(s.handleIntent))

	// Health endpoints
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	if s.mcpHandler != nil {
		mux.Handle("/mcp", s.mcpHandler)
	}

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. It blocks until the listener
// fails or [Server.Shutdown] is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // chat runs can take a while
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "TaskTalk",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			s.logger.Error("health check database ping failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			writeJSON(w, map[string]string{"status": "degraded", "database": "unreachable"}, s.logger)
			return
		}
	}
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
