// Package mcp exposes the task tools to MCP clients over streamable
// HTTP. Every tool call executes as one configured account, so an MCP
// client sees exactly the tasks that account owns.
package mcp

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"tasktalk/internal/buildinfo"
	"tasktalk/internal/tools"
)

// Server wraps an MCP tool server bound to a single user account.
type Server struct {
	registry *tools.Registry
	userID   string
	token    string
	logger   *slog.Logger
	mcp      *server.MCPServer
}

// New creates an MCP server whose tool calls run as userID. token
// authenticates clients; it must not be empty.
func New(registry *tools.Registry, userID, token string, logger *slog.Logger) *Server {
	s := &Server{
		registry: registry,
		userID:   userID,
		token:    token,
		logger:   logger,
	}

	m := server.NewMCPServer(
		"tasktalk",
		buildinfo.Version,
		server.WithToolCapabilities(true),
	)
	m.AddTools(s.serverTools()...)
	s.mcp = m
	return s
}

// Handler returns the HTTP handler for the /mcp endpoint, with bearer
// token auth applied. Mount it on the API server's mux.
func (s *Server) Handler() http.Handler {
	stream := server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath("/mcp"),
		server.WithStateLess(true),
	)
	return s.requireToken(stream)
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
			s.logger.Warn("mcp request rejected", "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcp"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serverTools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("add_task",
				mcp.WithDescription("Create a new task for the user. Use when the user wants to add, create, or remember a new task or to-do item."),
				mcp.WithString("title", mcp.Required(), mcp.Description("Short task title (required, max 255 chars)")),
				mcp.WithString("description", mcp.Description("Optional longer description of the task")),
			),
			Handler: s.invoke(tools.OpAddTask),
		},
		{
			Tool: mcp.NewTool("list_tasks",
				mcp.WithDescription("List the user's tasks with optional filters. Use when the user wants to see, review, or count their tasks."),
				mcp.WithBoolean("completed", mcp.Description("Filter by completion state: true for completed, false for incomplete. Omit for all tasks.")),
				mcp.WithString("search", mcp.Description("Case-insensitive text to match against titles and descriptions")),
				mcp.WithNumber("limit", mcp.Description("Maximum tasks to return (1-100, default 50)")),
				mcp.WithNumber("offset", mcp.Description("Number of tasks to skip, for pagination")),
			),
			Handler: s.invoke(tools.OpListTasks),
		},
		{
			Tool: mcp.NewTool("update_task",
				mcp.WithDescription("Update a task's title or description. At least one field must be provided."),
				mcp.WithNumber("task_id", mcp.Required(), mcp.Description("ID of the task to update")),
				mcp.WithString("title", mcp.Description("New task title")),
				mcp.WithString("description", mcp.Description("New task description; an empty string clears it")),
			),
			Handler: s.invoke(tools.OpUpdateTask),
		},
		{
			Tool: mcp.NewTool("complete_task",
				mcp.WithDescription("Mark a task as completed, or as incomplete to undo."),
				mcp.WithNumber("task_id", mcp.Required(), mcp.Description("ID of the task to update")),
				mcp.WithBoolean("completed", mcp.Description("true to complete (default), false to reopen")),
			),
			Handler: s.invoke(tools.OpCompleteTask),
		},
		{
			Tool: mcp.NewTool("delete_task",
				mcp.WithDescription("Permanently delete a task. This cannot be undone."),
				mcp.WithNumber("task_id", mcp.Required(), mcp.Description("ID of the task to delete")),
			),
			Handler: s.invoke(tools.OpDeleteTask),
		},
	}
}

// invoke adapts one registry operation to an MCP tool handler. The
// bound account id is injected here; client-supplied user ids are
// ignored by the registry.
func (s *Server) invoke(op tools.Op) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		result := s.registry.Invoke(ctx, s.userID, op.String(), args)
		encoded := tools.Encode(result)

		s.logger.Debug("mcp tool call",
			"tool", op.String(), "ok", result.OK())

		if !result.OK() {
			return mcp.NewToolResultError(encoded), nil
		}
		return mcp.NewToolResultText(encoded), nil
	}
}
