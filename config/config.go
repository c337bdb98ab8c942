package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the YAML file. They may also be set in
// a .env file in the working directory.
const (
	EnvDatabaseDriver = "UPTIME_DB_DRIVER"
	EnvDatabaseDSN    = "UPTIME_DB_DSN"
	EnvIngestDir      = "UPTIME_INGEST_DIR"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Report   ReportConfig   `yaml:"report"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding
	// headers are believed. Empty trusts no proxy.
	TrustedProxies []string `yaml:"trusted_proxies"`
	// RequestIPHeader names the header a trusted proxy sets to the client
	// address. Empty keeps gin's X-Forwarded-For and X-Real-IP.
	RequestIPHeader string `yaml:"request_ip_header"`
	// RateLimitPerSec and RateLimitBurst limit the import and trigger
	// endpoints per client.
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	// PollRateLimitPerSec and PollRateLimitBurst limit report polling.
	PollRateLimitPerSec float64 `yaml:"poll_rate_limit_per_sec"`
	PollRateLimitBurst  int     `yaml:"poll_rate_limit_burst"`
	CacheTTLSeconds     int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	EnableTimescale        bool   `yaml:"enable_timescale"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// IngestConfig locates the CSV dataset and controls periodic re-import.
type IngestConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
	Dir             string        `yaml:"dir"`
	SitesFile       string        `yaml:"sites_file"`
	StatusFile      string        `yaml:"status_file"`
	HoursFile       string        `yaml:"hours_file"`
}

// ReportConfig sizes the report job pool.
type ReportConfig struct {
	Workers int `yaml:"workers"`
	// SiteWorkers bounds per-site concurrency inside one report. Zero means
	// GOMAXPROCS.
	SiteWorkers int `yaml:"site_workers"`
}

// Load reads the configuration from the given path and applies environment
// overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

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

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for callers
// that run without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv(EnvDatabaseDriver); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv(EnvIngestDir); v != "" {
		cfg.Ingest.Dir = v
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.PollRateLimitPerSec <= 0 {
		cfg.Server.PollRateLimitPerSec = 50
	}
	if cfg.Server.PollRateLimitBurst <= 0 {
		cfg.Server.PollRateLimitBurst = 100
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "uptime.db"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns <= 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetimeMinutes <= 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}

	if cfg.Ingest.IntervalSeconds <= 0 {
		cfg.Ingest.IntervalSeconds = 3600
	}
	cfg.Ingest.Interval = time.Duration(cfg.Ingest.IntervalSeconds) * time.Second
	if cfg.Ingest.Dir == "" {
		cfg.Ingest.Dir = "./data"
	}
	if cfg.Ingest.SitesFile == "" {
		cfg.Ingest.SitesFile = "store.csv"
	}
	if cfg.Ingest.StatusFile == "" {
		cfg.Ingest.StatusFile = "store_status.csv"
	}
	if cfg.Ingest.HoursFile == "" {
		cfg.Ingest.HoursFile = "business_hours.csv"
	}

	if cfg.Report.Workers <= 0 {
		log.Printf("report.workers is not set or invalid; defaulting to 1")
		cfg.Report.Workers = 1
	}
}
