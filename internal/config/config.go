// Package config handles TaskTalk configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/tasktalk/config.yaml, /etc/tasktalk/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tasktalk", "config.yaml"))
	}

	paths = append(paths, "/etc/tasktalk/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all TaskTalk configuration.
type Config struct {
	Listen    ListenConfig `yaml:"listen"`
	Database  string       `yaml:"database"`
	OpenAI    OpenAIConfig `yaml:"openai"`
	Agent     AgentConfig  `yaml:"agent"`
	MCP       MCPConfig    `yaml:"mcp"`
	MQTT      MQTTConfig   `yaml:"mqtt"`
	LogLevel  string       `yaml:"log_level"`
	LogFormat string       `yaml:"log_format"` // "text" (default) or "json"
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// OpenAIConfig defines the completion API settings. BaseURL may point at
// any OpenAI-compatible chat-completions endpoint, including local servers.
type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Configured reports whether the completion API is usable.
func (c OpenAIConfig) Configured() bool {
	return c.APIKey != "" || c.BaseURL != ""
}

// AgentConfig defines conversation orchestrator settings.
type AgentConfig struct {
	// MaxRounds caps the number of completion round-trips per user turn.
	MaxRounds int `yaml:"max_rounds"`
	// HistoryLimit caps how many persisted turns are loaded per run.
	HistoryLimit int `yaml:"history_limit"`
}

// MCPConfig defines the optional MCP tool server.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
	// Token authenticates MCP clients. Requests carrying it act as UserEmail.
	Token string `yaml:"token"`
	// UserEmail is the account MCP tool calls execute as.
	UserEmail string `yaml:"user_email"`
}

// MQTTConfig defines optional task-event publishing to an MQTT broker.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // e.g. mqtt://broker.local:1883
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	DeviceName  string `yaml:"device_name"`
}

// Configured reports whether MQTT publishing should start.
func (c MQTTConfig) Configured() bool {
	return c.Enabled && c.Broker != ""
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	cfg := &Config{
		Listen:   ListenConfig{Port: 8080},
		Database: "tasktalk.db",
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4",
			Temperature: 0.7,
			MaxTokens:   1000,
		},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero values that unmarshalling may have left behind.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Database == "" {
		c.Database = "tasktalk.db"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4"
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 1000
	}
	if c.Agent.MaxRounds == 0 {
		c.Agent.MaxRounds = 10
	}
	if c.Agent.HistoryLimit == 0 {
		c.Agent.HistoryLimit = 50
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "tasktalk"
	}
	if c.MQTT.DeviceName == "" {
		c.MQTT.DeviceName = "tasktalk"
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.Agent.MaxRounds < 1 {
		return fmt.Errorf("agent.max_rounds must be at least 1, got %d", c.Agent.MaxRounds)
	}
	if c.MCP.Enabled {
		if c.MCP.Token == "" {
			return fmt.Errorf("mcp.token is required when mcp.enabled is true")
		}
		if c.MCP.UserEmail == "" {
			return fmt.Errorf("mcp.user_email is required when mcp.enabled is true")
		}
	}
	return nil
}
