package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the application configuration. Values are layered: defaults,
// then each TOML file in order, then environment variables, then flags.
type Config struct {
	Server  ServerConfig  `toml:"server" yaml:"server"`
	Storage StorageConfig `toml:"storage" yaml:"storage"`
	Fetch   FetchConfig   `toml:"fetch" yaml:"fetch"`
	AI      AIConfig      `toml:"ai" yaml:"ai"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	Seed    SeedConfig    `toml:"seed" yaml:"seed"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string   `toml:"host" yaml:"host"`
	Port            int      `toml:"port" yaml:"port"`
	ShutdownTimeout string   `toml:"shutdown_timeout" yaml:"shutdown_timeout"` // e.g. "10s"
	AllowedOrigins  []string `toml:"allowed_origins" yaml:"allowed_origins"`   // CORS; "*" allows any
}

// StorageConfig selects the store backend.
type StorageConfig struct {
	Backend string `toml:"backend" yaml:"backend"` // "memory" or "sqlite" (in-memory database)
}

// FetchConfig tunes article downloads.
type FetchConfig struct {
	Timeout      string `toml:"timeout" yaml:"timeout"`
	UserAgent    string `toml:"user_agent" yaml:"user_agent"`
	MaxBodyBytes int64  `toml:"max_body_bytes" yaml:"max_body_bytes"`
}

// AIConfig selects and tunes the language model provider.
type AIConfig struct {
	Provider      string  `toml:"provider" yaml:"provider"` // "claude" or "gemini"
	Model         string  `toml:"model" yaml:"model"`
	APIKey        string  `toml:"api_key" yaml:"-"`
	Timeout       string  `toml:"timeout" yaml:"timeout"`
	MaxTokens     int     `toml:"max_tokens" yaml:"max_tokens"`
	Temperature   float64 `toml:"temperature" yaml:"temperature"`
	MaxInputChars int     `toml:"max_input_chars" yaml:"max_input_chars"` // summarize input is trimmed to this
}

// LoggingConfig controls log level and destinations.
type LoggingConfig struct {
	Level  string   `toml:"level" yaml:"level"`   // "debug", "info", "warn", "error"
	Output []string `toml:"output" yaml:"output"` // "stdout", "file"
	Dir    string   `toml:"dir" yaml:"dir"`
}

// SeedConfig is the default user created at startup.
type SeedConfig struct {
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"-"`
}

// NewDefault returns the configuration used when no file is given.
func NewDefault() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ShutdownTimeout: "10s",
			AllowedOrigins:  []string{"*"},
		},
		Storage: StorageConfig{Backend: "memory"},
		Fetch: FetchConfig{
			Timeout:      "30s",
			UserAgent:    "Mozilla/5.0 (compatible; ReadAI/1.0; +https://readai.app)",
			MaxBodyBytes: 5 * 1024 * 1024,
		},
		AI: AIConfig{
			Provider:      "claude",
			Model:         "claude-sonnet-4-20250514",
			Timeout:       "60s",
			MaxTokens:     2048,
			MaxInputChars: 12000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
			Dir:    "logs",
		},
		Seed: SeedConfig{Username: "default", Password: "password"},
	}
}

// Load merges the given TOML files over the defaults, later files
// winning, and then applies environment overrides. Empty paths are
// skipped.
func Load(paths ...string) (*Config, error) {
	cfg := NewDefault()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("READAI_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("READAI_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("READAI_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("READAI_FETCH_TIMEOUT"); v != "" {
		cfg.Fetch.Timeout = v
	}
	if v := os.Getenv("READAI_AI_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if v := os.Getenv("READAI_AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("READAI_AI_TIMEOUT"); v != "" {
		cfg.AI.Timeout = v
	}

	// API key: explicit READAI_AI_API_KEY first, then the provider's own
	// variable.
	if v := os.Getenv("READAI_AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	} else {
		switch strings.ToLower(cfg.AI.Provider) {
		case "gemini":
			if v := os.Getenv("GEMINI_API_KEY"); v != "" {
				cfg.AI.APIKey = v
			} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
				cfg.AI.APIKey = v
			}
		default:
			if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
				cfg.AI.APIKey = v
			}
		}
	}

	if v := os.Getenv("READAI_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// ApplyFlagOverrides applies command line values; zero values are ignored.
func ApplyFlagOverrides(cfg *Config, host string, port int, backend string) {
	if host != "" {
		cfg.Server.Host = host
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	if backend != "" {
		cfg.Storage.Backend = backend
	}
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("invalid storage backend %q (want memory or sqlite)", c.Storage.Backend)
	}
	switch strings.ToLower(c.AI.Provider) {
	case "claude", "anthropic", "gemini":
	default:
		return fmt.Errorf("invalid ai provider %q (want claude or gemini)", c.AI.Provider)
	}
	for name, value := range map[string]string{
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"fetch.timeout":           c.Fetch.Timeout,
		"ai.timeout":              c.AI.Timeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s %q: must be positive", name, value)
		}
	}
	if c.Seed.Username == "" || c.Seed.Password == "" {
		return fmt.Errorf("seed user requires username and password")
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// FetchTimeout returns the parsed fetch timeout. Call after Validate.
func (c *Config) FetchTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Fetch.Timeout)
	return d
}

// AITimeout returns the parsed AI call timeout. Call after Validate.
func (c *Config) AITimeout() time.Duration {
	d, _ := time.ParseDuration(c.AI.Timeout)
	return d
}

// ShutdownTimeout returns the parsed graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Server.ShutdownTimeout)
	return d
}
