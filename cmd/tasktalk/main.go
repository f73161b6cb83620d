// TaskTalk is a multi-user todo service with a conversational agent.
//
// It exposes a REST API for accounts, tasks, and conversations, a chat
// endpoint backed by an OpenAI-compatible completion API with tool
// calling, an optional MCP tool server, and optional MQTT event
// publishing. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	tasktalk serve           Start the API server
//	tasktalk init [dir]      Write a starter config file
//	tasktalk version         Print version and build information
//	tasktalk -o json version Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tasktalk/internal/agent"
	"tasktalk/internal/api"
	"tasktalk/internal/buildinfo"
	"tasktalk/internal/config"
	"tasktalk/internal/conversation"
	"tasktalk/internal/events"
	"tasktalk/internal/llm"
	"tasktalk/internal/mcp"
	"tasktalk/internal/mqtt"
	"tasktalk/internal/storage"
	"tasktalk/internal/tasks"
	"tasktalk/internal/tools"
	"tasktalk/internal/users"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the tasktalk command. All OS-level
// dependencies are injected as parameters so tests can drive the full
// lifecycle. Arguments are parsed by hand: the flag package relies on
// package-level globals, and our argument surface is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "TaskTalk - Conversational Todo Service")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: tasktalk [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  init [dir]   Write a starter config.yaml (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/tasktalk/config.yaml, /etc/tasktalk/config.yaml")
	return nil
}

// starterConfig is written by "tasktalk init". Values mirror the
// defaults in the config package; secrets come from the environment.
const starterConfig = `# TaskTalk configuration
listen:
  address: ""
  port: 8080

database: tasktalk.db

openai:
  api_key: ${OPENAI_API_KEY}
  base_url: https://api.openai.com/v1
  model: gpt-4
  temperature: 0.7
  max_tokens: 1000

agent:
  max_rounds: 10
  history_limit: 50

mcp:
  enabled: false
  token: ${TASKTALK_MCP_TOKEN}
  user_email: ""

mqtt:
  enabled: false
  broker: mqtt://localhost:1883
  username: ""
  password: ""
  topic_prefix: tasktalk
  device_name: tasktalk

log_level: info
log_format: text
`

// runInit writes a starter config file into dir, refusing to overwrite
// an existing one.
func runInit(stdout io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(stdout, "Wrote %s\n", path)
	return nil
}

// runServe handles the "tasktalk serve" subcommand. It is the primary
// operating mode: loads config, opens the database, wires the stores,
// orchestrator, and optional MCP/MQTT integrations into the API
// server, and blocks until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting TaskTalk", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level and format are
	// known. The initial Info-level text logger covers only the startup
	// banner.
	{
		level := slog.LevelInfo
		if cfg.LogLevel != "" {
			// Already validated by config.Validate().
			level, _ = config.ParseLogLevel(cfg.LogLevel)
		}
		logger = newLogger(stdout, level, cfg.LogFormat)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"database", cfg.Database,
		"model", cfg.OpenAI.Model,
	)

	// --- Database ---
	// A single SQLite database holds users, sessions, tasks, and
	// conversation history.
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.Database, err)
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.Database)

	// --- Stores and event bus ---
	bus := events.New()
	userStore := users.NewStore(db)
	taskStore := tasks.NewStore(db, bus)
	convStore := conversation.NewStore(db)

	if n, err := userStore.DeleteExpiredSessions(ctx); err != nil {
		logger.Warn("expired session cleanup failed", "error", err)
	} else if n > 0 {
		logger.Info("expired sessions removed", "count", n)
	}

	// --- Tool registry and orchestrator ---
	registry := tools.NewRegistry(taskStore, logger)

	if !cfg.OpenAI.Configured() {
		logger.Warn("completion API not configured - chat will return errors")
	}
	completer := llm.NewOpenAIClient(
		cfg.OpenAI.BaseURL,
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.Temperature,
		cfg.OpenAI.MaxTokens,
		logger,
	)

	orch := agent.New(completer, registry, convStore, bus, logger, agent.Config{
		MaxRounds:    cfg.Agent.MaxRounds,
		HistoryLimit: cfg.Agent.HistoryLimit,
	})

	// --- API server ---
	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, api.Deps{
		DB:            db,
		Users:         userStore,
		Tasks:         taskStore,
		Conversations: convStore,
		Orchestrator:  orch,
		Bus:           bus,
	}, logger)

	// --- MCP tool server (optional) ---
	// Tool calls over MCP execute as one configured account, resolved
	// here so a bad user_email fails loudly at startup.
	if cfg.MCP.Enabled {
		mcpUser, err := userStore.GetByEmail(ctx, cfg.MCP.UserEmail)
		if err != nil {
			return fmt.Errorf("resolve mcp.user_email %q: %w", cfg.MCP.UserEmail, err)
		}
		mcpServer := mcp.New(registry, mcpUser.ID, cfg.MCP.Token, logger)
		server.SetMCPHandler(mcpServer.Handler())
		logger.Info("mcp server enabled", "user", cfg.MCP.UserEmail)
	}

	// --- MQTT event publishing (optional) ---
	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Configured() {
		mqttPub = mqtt.New(cfg.MQTT, bus, logger)
		go func() {
			if err := mqttPub.Start(ctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
		}()
		logger.Info("mqtt publishing enabled",
			"broker", cfg.MQTT.Broker,
			"device_name", cfg.MQTT.DeviceName,
		)
	} else {
		logger.Info("mqtt publishing disabled (not configured)")
	}

	// --- Signal handling and graceful shutdown ---
	// NotifyContext wraps the parent context so that SIGINT/SIGTERM
	// cancellation flows through the same ctx used by all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		// Publish MQTT offline status before disconnecting.
		if mqttPub != nil {
			offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer offlineCancel()
			if err := mqttPub.Stop(offlineCtx); err != nil {
				logger.Error("mqtt shutdown failed", "error", err)
			}
		}

		_ = server.Shutdown(context.Background())
	}()

	// Start the API server. This blocks until the server is shut down
	// via context cancellation or a fatal error.
	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("TaskTalk stopped")
	return nil
}

// newLogger creates a structured logger that writes to w at the given
// level and format. Format must be "text" or "json"; any other value
// defaults to text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty, that exact path is used (and must exist).
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
