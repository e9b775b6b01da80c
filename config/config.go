// Package config handles loading and validating videogen's configuration
// using Viper, supporting a config file and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all recognized configuration for the pipeline orchestrator,
// per spec §6.7. Tags are used by Viper to map config file keys and
// environment variables.
type Config struct {
	// Cache controls the Result Cache (C1).
	Cache struct {
		ByteBudget int64  `mapstructure:"byte_budget"`
		Backend    string `mapstructure:"backend"` // "inmemory" | "redis"
		RedisAddr  string `mapstructure:"redis_addr"`
	} `mapstructure:"cache"`

	// GPU controls the Admission Controller (C2).
	GPU struct {
		VRAMBudgetMB     int            `mapstructure:"vram_budget_mb"`
		ModelVRAMCosts   map[string]int `mapstructure:"model_vram_costs"`
		ModelConcurrency map[string]int `mapstructure:"model_concurrency"`
	} `mapstructure:"gpu"`

	// Jobs controls the Job Registry (C7).
	Jobs struct {
		Retention    time.Duration `mapstructure:"retention"`
		Backend      string        `mapstructure:"backend"` // "inmemory" | "postgres"
		PostgresDSN  string        `mapstructure:"postgres_dsn"`
		OverallDead  time.Duration `mapstructure:"overall_deadline"`
	} `mapstructure:"jobs"`

	// RateLimit controls the per-client token bucket (C8).
	RateLimit struct {
		PerMinute int `mapstructure:"per_min"`
		Burst     int `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`

	// StageTimeouts maps a stage name to its individual timeout (§5).
	StageTimeouts map[string]time.Duration `mapstructure:"stage_timeouts"`

	// Provider holds the talking-head provider's connection details (§6.7).
	Provider struct {
		BaseURL    string `mapstructure:"base_url"`
		APIKey     string `mapstructure:"api_key"`
		WebhookURL string `mapstructure:"webhook_url"`
	} `mapstructure:"provider"`

	// Storage controls the on-disk layout of §6.6.
	Storage struct {
		Root string `mapstructure:"root"`
	} `mapstructure:"storage"`

	// Server controls the HTTP surface.
	Server struct {
		ListenAddr string `mapstructure:"listen_addr"`
	} `mapstructure:"server"`

	// Temporal controls the workflow engine connection.
	Temporal struct {
		HostPort  string `mapstructure:"host_port"`
		TaskQueue string `mapstructure:"task_queue"`
	} `mapstructure:"temporal"`

	// Observability controls logging and tracing.
	Observability struct {
		LogLevel       string `mapstructure:"log_level"`
		OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	} `mapstructure:"observability"`
}

// Cfg is the process-wide configuration, populated by LoadConfig. cmd/videogen
// loads it once during init and passes it explicitly to every component
// thereafter; nothing reads Cfg directly after startup (per spec §9's "no
// global mutable singletons after init").
var Cfg Config

// LoadConfig reads configuration from a file named "config" (yaml) found on
// the given search paths, then applies VIDEOGEN_-prefixed environment
// variable overrides, and unmarshals the result into Cfg.
func LoadConfig(configPaths ...string) error {
	v := viper.New()

	v.SetDefault("cache.byte_budget", int64(2<<30)) // 2 GiB
	v.SetDefault("cache.backend", "inmemory")
	v.SetDefault("gpu.vram_budget_mb", 16000)
	v.SetDefault("jobs.retention", time.Hour)
	v.SetDefault("jobs.overall_deadline", 180*time.Second)
	v.SetDefault("jobs.backend", "inmemory")
	v.SetDefault("rate_limit.per_min", 30)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("stage_timeouts.detection", 30*time.Second)
	v.SetDefault("stage_timeouts.background_removal", 30*time.Second)
	v.SetDefault("stage_timeouts.tts", 30*time.Second)
	v.SetDefault("stage_timeouts.prosody", 10*time.Second)
	v.SetDefault("stage_timeouts.talking_head", 120*time.Second)
	v.SetDefault("stage_timeouts.mix", 15*time.Second)
	v.SetDefault("storage.root", "./data")
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.task_queue", "videogen-pipeline")
	v.SetDefault("observability.log_level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/videogen/")
	v.AddConfigPath("$HOME/.videogen")
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("config: reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("VIDEOGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&Cfg); err != nil {
		return fmt.Errorf("config: decode into struct: %w", err)
	}

	return Cfg.Validate()
}

// Validate checks enumerated option sets and cross-field constraints, per
// spec §9's "typed validator at each public endpoint boundary" guidance
// applied to process configuration itself.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "inmemory", "redis":
	default:
		return fmt.Errorf("config: cache.backend must be inmemory or redis, got %q", c.Cache.Backend)
	}
	switch c.Jobs.Backend {
	case "inmemory", "postgres":
	default:
		return fmt.Errorf("config: jobs.backend must be inmemory or postgres, got %q", c.Jobs.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("config: cache.redis_addr is required when cache.backend=redis")
	}
	if c.Jobs.Backend == "postgres" && c.Jobs.PostgresDSN == "" {
		return fmt.Errorf("config: jobs.postgres_dsn is required when jobs.backend=postgres")
	}
	if c.GPU.VRAMBudgetMB <= 0 {
		return fmt.Errorf("config: gpu.vram_budget_mb must be positive")
	}
	if c.RateLimit.PerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("config: rate_limit.per_min and rate_limit.burst must be positive")
	}
	return nil
}