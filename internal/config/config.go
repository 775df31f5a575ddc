// Package config loads the application configuration from environment
// variables (prefix REPORTS) with an optional YAML file underneath.
// Environment values take precedence over file values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" envconfig:"SERVER"`
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
	Queue       QueueConfig       `yaml:"queue" envconfig:"QUEUE"`
	Reports     ReportsConfig     `yaml:"reports" envconfig:"REPORTS"`
	Suggestions SuggestionsConfig `yaml:"suggestions" envconfig:"SUGGESTIONS"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	BaseURL         string        `yaml:"base_url" envconfig:"BASE_URL" default:"http://localhost:8080"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output string `yaml:"output" envconfig:"OUTPUT" default:"console"`
}

// QueueConfig contains job queue configuration
type QueueConfig struct {
	RenderWorkers   int           `yaml:"render_workers" envconfig:"RENDER_WORKERS" default:"5"`
	RenderBuffer    int           `yaml:"render_buffer" envconfig:"RENDER_BUFFER" default:"100"`
	AnalysisWorkers int           `yaml:"analysis_workers" envconfig:"ANALYSIS_WORKERS" default:"2"`
	AnalysisBuffer  int           `yaml:"analysis_buffer" envconfig:"ANALYSIS_BUFFER" default:"50"`
	AnalysisRPS     float64       `yaml:"analysis_rps" envconfig:"ANALYSIS_RPS" default:"4"`
	AnalysisBurst   int           `yaml:"analysis_burst" envconfig:"ANALYSIS_BURST" default:"2"`
	MaxAttempts     int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS" default:"3"`
	InitialBackoff  time.Duration `yaml:"initial_backoff" envconfig:"INITIAL_BACKOFF" default:"1s"`
	MaxBackoff      time.Duration `yaml:"max_backoff" envconfig:"MAX_BACKOFF" default:"30s"`
	StallTimeout    time.Duration `yaml:"stall_timeout" envconfig:"STALL_TIMEOUT" default:"5m"`
}

// ReportsConfig contains report workflow configuration
type ReportsConfig struct {
	ArtifactDir        string        `yaml:"artifact_dir" envconfig:"ARTIFACT_DIR" default:"artifacts"`
	MaxRecords         int           `yaml:"max_records" envconfig:"MAX_RECORDS" default:"50000"`
	AnalysisMinRecords int           `yaml:"analysis_min_records" envconfig:"ANALYSIS_MIN_RECORDS" default:"100"`
	SweepInterval      time.Duration `yaml:"sweep_interval" envconfig:"SWEEP_INTERVAL" default:"1h"`
}

// SuggestionsConfig contains KPI suggestion collaborator configuration
type SuggestionsConfig struct {
	APIKey        string        `yaml:"api_key" envconfig:"API_KEY"`
	Model         string        `yaml:"model" envconfig:"MODEL"`
	Timeout       time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"10s"`
	CacheTTL      time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" default:"30m"`
	CacheCapacity int           `yaml:"cache_capacity" envconfig:"CACHE_CAPACITY" default:"128"`
}

// RateLimitConfig contains HTTP rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// DefaultConfigFile is checked when REPORTS_CONFIG_FILE is unset
const DefaultConfigFile = "config.yaml"

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("REPORTS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	configFile := os.Getenv("REPORTS_CONFIG_FILE")
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = merge(*fileCfg, cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge overlays file values on top of the env-derived config. Precedence is
// explicit environment variable, then file, then struct default: envconfig
// fills defaults for unset variables, so the file wins only where the
// variable itself was never set.
func merge(file, env Config) Config {
	out := env

	mergeInt(&out.Server.Port, file.Server.Port, "REPORTS_SERVER_PORT")
	mergeDuration(&out.Server.ReadTimeout, file.Server.ReadTimeout, "REPORTS_SERVER_READ_TIMEOUT")
	mergeDuration(&out.Server.WriteTimeout, file.Server.WriteTimeout, "REPORTS_SERVER_WRITE_TIMEOUT")
	mergeDuration(&out.Server.IdleTimeout, file.Server.IdleTimeout, "REPORTS_SERVER_IDLE_TIMEOUT")
	mergeInt(&out.Server.MaxHeaderBytes, file.Server.MaxHeaderBytes, "REPORTS_SERVER_MAX_HEADER_BYTES")
	mergeDuration(&out.Server.ShutdownTimeout, file.Server.ShutdownTimeout, "REPORTS_SERVER_SHUTDOWN_TIMEOUT")
	mergeString(&out.Server.BaseURL, file.Server.BaseURL, "REPORTS_SERVER_BASE_URL")

	mergeString(&out.Logging.Level, file.Logging.Level, "REPORTS_LOGGING_LEVEL")
	mergeString(&out.Logging.Format, file.Logging.Format, "REPORTS_LOGGING_FORMAT")
	mergeString(&out.Logging.Output, file.Logging.Output, "REPORTS_LOGGING_OUTPUT")

	mergeInt(&out.Queue.RenderWorkers, file.Queue.RenderWorkers, "REPORTS_QUEUE_RENDER_WORKERS")
	mergeInt(&out.Queue.RenderBuffer, file.Queue.RenderBuffer, "REPORTS_QUEUE_RENDER_BUFFER")
	mergeInt(&out.Queue.AnalysisWorkers, file.Queue.AnalysisWorkers, "REPORTS_QUEUE_ANALYSIS_WORKERS")
	mergeInt(&out.Queue.AnalysisBuffer, file.Queue.AnalysisBuffer, "REPORTS_QUEUE_ANALYSIS_BUFFER")
	mergeFloat(&out.Queue.AnalysisRPS, file.Queue.AnalysisRPS, "REPORTS_QUEUE_ANALYSIS_RPS")
	mergeInt(&out.Queue.AnalysisBurst, file.Queue.AnalysisBurst, "REPORTS_QUEUE_ANALYSIS_BURST")
	mergeInt(&out.Queue.MaxAttempts, file.Queue.MaxAttempts, "REPORTS_QUEUE_MAX_ATTEMPTS")
	mergeDuration(&out.Queue.InitialBackoff, file.Queue.InitialBackoff, "REPORTS_QUEUE_INITIAL_BACKOFF")
	mergeDuration(&out.Queue.MaxBackoff, file.Queue.MaxBackoff, "REPORTS_QUEUE_MAX_BACKOFF")
	mergeDuration(&out.Queue.StallTimeout, file.Queue.StallTimeout, "REPORTS_QUEUE_STALL_TIMEOUT")

	mergeString(&out.Reports.ArtifactDir, file.Reports.ArtifactDir, "REPORTS_REPORTS_ARTIFACT_DIR")
	mergeInt(&out.Reports.MaxRecords, file.Reports.MaxRecords, "REPORTS_REPORTS_MAX_RECORDS")
	mergeInt(&out.Reports.AnalysisMinRecords, file.Reports.AnalysisMinRecords, "REPORTS_REPORTS_ANALYSIS_MIN_RECORDS")
	mergeDuration(&out.Reports.SweepInterval, file.Reports.SweepInterval, "REPORTS_REPORTS_SWEEP_INTERVAL")

	mergeString(&out.Suggestions.APIKey, file.Suggestions.APIKey, "REPORTS_SUGGESTIONS_API_KEY")
	mergeString(&out.Suggestions.Model, file.Suggestions.Model, "REPORTS_SUGGESTIONS_MODEL")
	mergeDuration(&out.Suggestions.Timeout, file.Suggestions.Timeout, "REPORTS_SUGGESTIONS_TIMEOUT")
	mergeDuration(&out.Suggestions.CacheTTL, file.Suggestions.CacheTTL, "REPORTS_SUGGESTIONS_CACHE_TTL")
	mergeInt(&out.Suggestions.CacheCapacity, file.Suggestions.CacheCapacity, "REPORTS_SUGGESTIONS_CACHE_CAPACITY")

	mergeFloat(&out.RateLimit.RPS, file.RateLimit.RPS, "REPORTS_RATE_LIMIT_RPS")
	mergeInt(&out.RateLimit.Burst, file.RateLimit.Burst, "REPORTS_RATE_LIMIT_BURST")

	return out
}

// envSet reports whether the variable was explicitly provided, as opposed to
// envconfig having filled the struct default
func envSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func mergeInt(dst *int, v int, key string) {
	if v != 0 && !envSet(key) {
		*dst = v
	}
}

func mergeFloat(dst *float64, v float64, key string) {
	if v != 0 && !envSet(key) {
		*dst = v
	}
}

func mergeString(dst *string, v string, key string) {
	if v != "" && !envSet(key) {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration, key string) {
	if v != 0 && !envSet(key) {
		*dst = v
	}
}

// validate checks configuration invariants
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Queue.RenderWorkers < 1 {
		return fmt.Errorf("render workers must be at least 1, got %d", c.Queue.RenderWorkers)
	}
	if c.Queue.AnalysisWorkers < 1 {
		return fmt.Errorf("analysis workers must be at least 1, got %d", c.Queue.AnalysisWorkers)
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue max attempts must be at least 1, got %d", c.Queue.MaxAttempts)
	}
	if c.Reports.MaxRecords < 1 {
		return fmt.Errorf("max records must be at least 1, got %d", c.Reports.MaxRecords)
	}
	if c.Reports.AnalysisMinRecords < 1 {
		return fmt.Errorf("analysis min records must be at least 1, got %d", c.Reports.AnalysisMinRecords)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}
