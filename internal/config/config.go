// Package config loads and validates sketchd configuration from a YAML file
// with environment-variable fallbacks for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all sketchd configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gen     GenConfig     `yaml:"gen"`
	Session SessionConfig `yaml:"session"`
	Prompts PromptsConfig `yaml:"prompts"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the client-facing HTTP/websocket surface.
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	StateDir string `yaml:"state_dir"` // logs and other runtime state
}

// GenConfig configures the generation backend connections.
type GenConfig struct {
	APIKey       string `yaml:"api_key"` // falls back to GEMINI_API_KEY
	BaseURL      string `yaml:"base_url"`
	LiveEndpoint string `yaml:"live_endpoint"`
	Model        string `yaml:"model"`      // unary planner/verifier calls
	LiveModel    string `yaml:"live_model"` // streaming executor/audio
	Timeout      string `yaml:"timeout"`
	ReadTimeout  string `yaml:"read_timeout"` // silence threshold on live connections
}

// SessionConfig tunes the per-session orchestration loop.
type SessionConfig struct {
	ReviewEnabled bool   `yaml:"review_enabled"` // default for the per-task review pass
	IdleTTL       string `yaml:"idle_ttl"`       // registry eviction for idle sessions
	MaxTasks      int    `yaml:"max_tasks"`      // cap on planner output per turn
}

// PromptsConfig overrides the role instruction preambles. Empty strings keep
// the built-in prompts.
type PromptsConfig struct {
	PlannerSystem  string `yaml:"planner_system"`
	ExecutorSystem string `yaml:"executor_system"`
	VerifierSystem string `yaml:"verifier_system"`
	// ForceJSONPrefix, when set, is fed to the executor as a forced response
	// prefix to bias output shape. The decoder never assumes it is present.
	ForceJSONPrefix string `yaml:"force_json_prefix"`
}

// LoggingConfig controls the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8787,
			StateDir: ".sketchd",
		},
		Gen: GenConfig{
			BaseURL:      "https://generativelanguage.googleapis.com/v1beta",
			LiveEndpoint: "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateContent",
			Model:        "gemini-2.0-flash",
			LiveModel:    "models/gemini-2.0-flash-exp",
			Timeout:      "2m",
			ReadTimeout:  "45s",
		},
		Session: SessionConfig{
			ReviewEnabled: true,
			IdleTTL:       "30m",
			MaxTasks:      12,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, merging over defaults. A missing file
// is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if cfg.Gen.APIKey == "" {
		cfg.Gen.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the system assumes.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Gen.Model == "" || c.Gen.LiveModel == "" {
		return fmt.Errorf("gen.model and gen.live_model are required")
	}
	for name, v := range map[string]string{
		"gen.timeout":      c.Gen.Timeout,
		"gen.read_timeout": c.Gen.ReadTimeout,
		"session.idle_ttl": c.Session.IdleTTL,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}
	if c.Session.MaxTasks <= 0 {
		return fmt.Errorf("session.max_tasks must be positive")
	}
	return nil
}

// GenTimeout returns the parsed unary request timeout.
func (c *Config) GenTimeout() time.Duration { return mustDuration(c.Gen.Timeout, 2*time.Minute) }

// GenReadTimeout returns the parsed live-connection silence threshold.
func (c *Config) GenReadTimeout() time.Duration {
	return mustDuration(c.Gen.ReadTimeout, 45*time.Second)
}

// SessionIdleTTL returns the parsed idle-session eviction threshold.
func (c *Config) SessionIdleTTL() time.Duration {
	return mustDuration(c.Session.IdleTTL, 30*time.Minute)
}

func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// StateDir returns the absolute state directory, creating it if needed.
func (c *Config) StateDir() (string, error) {
	dir := c.Server.StateDir
	if dir == "" {
		dir = ".sketchd"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve state dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("failed to create state dir: %w", err)
	}
	return abs, nil
}
