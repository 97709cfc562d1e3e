package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"milk-herd-backend/internal/pedigree"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Pedigree   PedigreeConfig   `yaml:"pedigree"`
	Reports    ReportsConfig    `yaml:"reports"`
	Meter      MeterConfig      `yaml:"meter"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// PedigreeConfig bounds ancestry traversals.
type PedigreeConfig struct {
	DefaultDepth    int `yaml:"default_depth"`
	MaxDepth        int `yaml:"max_depth"`
	CycleCheckDepth int `yaml:"cycle_check_depth"`
}

// ReportsConfig holds list and dashboard settings.
type ReportsConfig struct {
	MilkWindowDays int `yaml:"milk_window_days"`
	TopBreeds      int `yaml:"top_breeds"`
	PageSize       int `yaml:"page_size"`
}

// MeterConfig holds the milk meter sync configuration.
type MeterConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
	HTTPProxy       string        `yaml:"http_proxy"`
	Timezone        string        `yaml:"timezone"`
	Request         MeterRequest  `yaml:"request"`
}

// MeterRequest defines the HTTP request for the meter feed.
type MeterRequest struct {
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	PageSize int               `yaml:"pageSize"`
	Payload  map[string]any    `yaml:"payload"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values with their defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Pedigree.MaxDepth <= 0 {
		cfg.Pedigree.MaxDepth = pedigree.MaxDepth
	}
	if cfg.Pedigree.MaxDepth > pedigree.MaxDepth {
		log.Printf("pedigree.max_depth %d is above the supported %d; capping", cfg.Pedigree.MaxDepth, pedigree.MaxDepth)
		cfg.Pedigree.MaxDepth = pedigree.MaxDepth
	}
	if cfg.Pedigree.DefaultDepth <= 0 {
		cfg.Pedigree.DefaultDepth = 3
	}
	if cfg.Pedigree.DefaultDepth > cfg.Pedigree.MaxDepth {
		cfg.Pedigree.DefaultDepth = cfg.Pedigree.MaxDepth
	}
	if cfg.Pedigree.CycleCheckDepth <= 0 {
		cfg.Pedigree.CycleCheckDepth = 6
	}

	if cfg.Reports.MilkWindowDays <= 0 {
		cfg.Reports.MilkWindowDays = 7
	}
	if cfg.Reports.TopBreeds <= 0 {
		cfg.Reports.TopBreeds = 5
	}
	if cfg.Reports.PageSize <= 0 {
		cfg.Reports.PageSize = 10
	}

	if cfg.Meter.IntervalSeconds <= 0 {
		cfg.Meter.IntervalSeconds = 300
	}
	cfg.Meter.Interval = time.Duration(cfg.Meter.IntervalSeconds) * time.Second
	if cfg.Meter.Request.PageSize <= 0 {
		cfg.Meter.Request.PageSize = 100
	}
	if cfg.Meter.Timezone == "" {
		cfg.Meter.Timezone = "UTC"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
