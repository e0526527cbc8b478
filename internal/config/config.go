// Package config provides unified configuration loading for the Study Engine.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the Study Engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Models        ModelsConfig        `yaml:"models"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Extraction    ExtractionConfig    `yaml:"extraction"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	JournalMode  string `yaml:"journal_mode"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds extracted-text cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	PoolSize       int    `yaml:"pool_size"`
	OutcomeChannel string `yaml:"outcome_channel"`
}

// ModelsConfig selects the model provider and its per-capability settings.
type ModelsConfig struct {
	Provider    string        `yaml:"provider"` // hfinference, openai or mock
	BaseURL     string        `yaml:"base_url"`
	APIToken    string        `yaml:"api_token"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	Summarizer  ModelSpec     `yaml:"summarizer"`
	QA          ModelSpec     `yaml:"qa"`
	QuestionGen ModelSpec     `yaml:"question_generator"`
}

// ModelSpec names one capability's model and its input limit in characters.
type ModelSpec struct {
	Model         string `yaml:"model"`
	MaxInputChars int    `yaml:"max_input_chars"`
}

// PipelineConfig holds the orchestrator's thresholds and caps.
type PipelineConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	SummaryOverlap      int     `yaml:"summary_overlap"`
	SummaryMaxWindows   int     `yaml:"summary_max_windows"`
	SummaryMinWords     int     `yaml:"summary_min_words"`
	SummaryMinLength    int     `yaml:"summary_min_length"`
	SummaryMaxLength    int     `yaml:"summary_max_length"`
	QuizMinWords        int     `yaml:"quiz_min_words"`
	QuizMaxLength       int     `yaml:"quiz_max_length"`
	QuizDefaultCount    int     `yaml:"quiz_default_count"`
	PreviewChars        int     `yaml:"preview_chars"`
}

// ExtractionConfig holds upload limits.
type ExtractionConfig struct {
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	ServiceName    string `yaml:"service_name"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "/tmp/study-engine.db",
				MaxOpenConns: 1,
				JournalMode:  "WAL",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        2 * time.Hour,
			MaxEntries: 256,
			Redis: RedisConfig{
				Addr:           "localhost:6379",
				DB:             0,
				PoolSize:       10,
				OutcomeChannel: "study.outcomes",
			},
		},
		Models: ModelsConfig{
			Provider:   "hfinference",
			BaseURL:    "https://api-inference.huggingface.co",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
			Summarizer: ModelSpec{
				Model:         "facebook/bart-large-cnn",
				MaxInputChars: 3000,
			},
			QA: ModelSpec{
				Model:         "distilbert-base-cased-distilled-squad",
				MaxInputChars: 2000,
			},
			QuestionGen: ModelSpec{
				Model:         "t5-small",
				MaxInputChars: 200,
			},
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: 0.3,
			SummaryOverlap:      0,
			SummaryMaxWindows:   3,
			SummaryMinWords:     50,
			SummaryMinLength:    30,
			SummaryMaxLength:    130,
			QuizMinWords:        6,
			QuizMaxLength:       50,
			QuizDefaultCount:    5,
			PreviewChars:        500,
		},
		Extraction: ExtractionConfig{
			MaxUploadBytes: 50 << 20,
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			ServiceName:    "study-engine",
			MetricsEnabled: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	switch c.Models.Provider {
	case "hfinference", "openai", "mock":
	default:
		return fmt.Errorf("invalid model provider: %s", c.Models.Provider)
	}

	for name, spec := range map[string]ModelSpec{
		"summarizer":         c.Models.Summarizer,
		"qa":                 c.Models.QA,
		"question_generator": c.Models.QuestionGen,
	} {
		if spec.MaxInputChars < 1 {
			return fmt.Errorf("models.%s.max_input_chars must be positive", name)
		}
	}

	p := c.Pipeline
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return errors.New("confidence_threshold must be between 0 and 1")
	}
	if p.SummaryOverlap < 0 || p.SummaryOverlap >= c.Models.Summarizer.MaxInputChars {
		return errors.New("summary_overlap must be in [0, summarizer max_input_chars)")
	}
	if p.SummaryMaxWindows < 1 {
		return errors.New("summary_max_windows must be at least 1")
	}
	if p.SummaryMinLength < 0 || p.SummaryMaxLength < p.SummaryMinLength {
		return fmt.Errorf("summary length bounds are invalid: %d..%d", p.SummaryMinLength, p.SummaryMaxLength)
	}
	if p.QuizMaxLength < 1 {
		return errors.New("quiz_max_length must be positive")
	}

	if c.Extraction.MaxUploadBytes < 1 {
		return errors.New("max_upload_bytes must be positive")
	}

	return nil
}

// DatabaseDSN returns the appropriate database connection string.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STUDY_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("STUDY_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		// Parse redis://host:port format
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("STUDY_MODEL_PROVIDER"); v != "" {
		cfg.Models.Provider = v
	}

	if v := os.Getenv("STUDY_MODEL_BASE_URL"); v != "" {
		cfg.Models.BaseURL = v
	}

	// Token precedence: explicit STUDY_MODEL_API_TOKEN, then the provider's own variable.
	switch {
	case os.Getenv("STUDY_MODEL_API_TOKEN") != "":
		cfg.Models.APIToken = os.Getenv("STUDY_MODEL_API_TOKEN")
	case cfg.Models.Provider == "openai" && os.Getenv("OPENAI_API_KEY") != "":
		cfg.Models.APIToken = os.Getenv("OPENAI_API_KEY")
	case cfg.Models.Provider == "hfinference" && os.Getenv("HF_API_TOKEN") != "":
		cfg.Models.APIToken = os.Getenv("HF_API_TOKEN")
	}

	if v := os.Getenv("STUDY_CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.ConfidenceThreshold = f
		}
	}

	if v := os.Getenv("STUDY_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Extraction.MaxUploadBytes = n
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// ResolveRelativePath resolves a path relative to the config file location.
func ResolveRelativePath(configPath, targetPath string) string {
	if filepath.IsAbs(targetPath) {
		return targetPath
	}
	return filepath.Join(filepath.Dir(configPath), targetPath)
}
