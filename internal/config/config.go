// Package config loads the service configuration from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"maitred/internal/matching"
)

// Config is the root of configs/config.yaml
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Matching MatchingConfig `yaml:"matching"`
	MenuFile string         `yaml:"menu_file"`
	LogLevel string         `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// ServerConfig configures the HTTP listeners
type ServerConfig struct {
	Port        int           `yaml:"port" validate:"min=1,max=65535"`
	MetricsPort int           `yaml:"metrics_port" validate:"min=1,max=65535,nefield=Port"`
	JWTSecret   string        `yaml:"jwt_secret"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
}

// DatabaseConfig selects the gorm dialect and connection string
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite3 postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// LLMConfig configures the OpenAI-compatible chat and embedding endpoints
type LLMConfig struct {
	Model          string `yaml:"model" validate:"required"`
	EmbeddingModel string `yaml:"embedding_model"`
	BaseURL        string `yaml:"base_url" validate:"omitempty,url"`
	APIKey         string `yaml:"api_key"`
}

// MatchingConfig tunes item resolution
type MatchingConfig struct {
	Thresholds      matching.Thresholds `yaml:",inline"`
	Lexical         string              `yaml:"lexical" validate:"oneof=sequence bm25"`
	SemanticTimeout time.Duration       `yaml:"semantic_timeout"`
	MaxAlternatives int                 `yaml:"max_alternatives" validate:"min=0"`
	ContextItems    int                 `yaml:"context_items" validate:"min=1"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			MetricsPort: 9090,
			SessionTTL:  2 * time.Hour,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "maitred.db",
		},
		LLM: LLMConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
		},
		Matching: MatchingConfig{
			Thresholds:      matching.DefaultThresholds(),
			Lexical:         "sequence",
			SemanticTimeout: 3 * time.Second,
			ContextItems:    5,
		},
		MenuFile: "configs/menu.yaml",
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = strings.ToLower(level)
	}
}

// Validate checks field constraints and that each certain threshold is at
// least as strict as its good counterpart
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	t := c.Matching.Thresholds
	if t.CertainLexical < t.GoodLexical {
		return fmt.Errorf("invalid config: certain_lexical %.2f is below good_lexical %.2f", t.CertainLexical, t.GoodLexical)
	}
	if t.CertainSemantic < t.GoodSemantic {
		return fmt.Errorf("invalid config: certain_semantic %.2f is below good_semantic %.2f", t.CertainSemantic, t.GoodSemantic)
	}
	return nil
}

// SlogLevel maps log_level to a slog level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
