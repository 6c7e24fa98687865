package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration, loaded from config.yaml with
// CAMFLEET_* environment overrides.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Downloads  DownloadsConfig  `mapstructure:"downloads"`
	Hikvision  HikvisionConfig  `mapstructure:"hikvision"`
	Health     HealthConfig     `mapstructure:"health_check"`
	Storage    StorageConfig    `mapstructure:"storage_check"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Cleanup    CleanupConfig    `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type DownloadsConfig struct {
	// RootPath is the base directory downloaded footage is written under.
	RootPath string `mapstructure:"root_path"`
}

type HikvisionConfig struct {
	// ConsolePath is the vendor console binary used for all device access.
	ConsolePath string `mapstructure:"console_path"`
}

type HealthConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

type StorageConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

type WorkerConfig struct {
	MaxConcurrentPerCamera int `mapstructure:"max_concurrent_per_camera"`
	PollIntervalSeconds    int `mapstructure:"poll_interval_seconds"`
	CheckIntervalSeconds   int `mapstructure:"check_interval_seconds"`
}

type SupervisorConfig struct {
	RefreshIntervalMinutes int `mapstructure:"refresh_interval_minutes"`
	StopGraceSeconds       int `mapstructure:"stop_grace_seconds"`
}

type DiscoveryConfig struct {
	LookbackDays int `mapstructure:"lookback_days"`
}

type CleanupConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// Load reads config.yaml from the working directory. Missing file is not
// fatal; defaults plus environment variables are enough to run.
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("CAMFLEET")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Failed to read config file: %v", err)
		}
		log.Println("No config.yaml found, using defaults and environment")
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		log.Fatalf("Failed to unmarshal config: %v", err)
	}
	return cfg
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"*"})

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "camfleet_user")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.name", "camfleet_db")
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("downloads.root_path", "downloads")
	viper.SetDefault("hikvision.console_path", "/usr/local/bin/hik-console")

	viper.SetDefault("health_check.interval_minutes", 5)
	viper.SetDefault("storage_check.interval_minutes", 15)

	viper.SetDefault("worker.max_concurrent_per_camera", 1)
	viper.SetDefault("worker.poll_interval_seconds", 5)
	viper.SetDefault("worker.check_interval_seconds", 60)

	viper.SetDefault("supervisor.refresh_interval_minutes", 5)
	viper.SetDefault("supervisor.stop_grace_seconds", 8)

	viper.SetDefault("discovery.lookback_days", 30)
	viper.SetDefault("cleanup.batch_size", 10)
}

// DSN builds the pgx connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password,
		c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.SSLMode,
	)
}

// HealthInterval returns the camera health check interval.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Health.IntervalMinutes) * time.Minute
}

// StorageInterval returns the storage drive check interval.
func (c *Config) StorageInterval() time.Duration {
	return time.Duration(c.Storage.IntervalMinutes) * time.Minute
}

// PollInterval returns the transfer progress polling cadence.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalSeconds) * time.Second
}

// CheckInterval returns the per-camera worker cycle cadence.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Worker.CheckIntervalSeconds) * time.Second
}

// RefreshInterval returns the supervisor reconciliation interval.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Supervisor.RefreshIntervalMinutes) * time.Minute
}

// StopGrace returns the per-worker shutdown grace period.
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Supervisor.StopGraceSeconds) * time.Second
}

// Lookback returns the discovery window used when a camera has never
// completed a download.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Discovery.LookbackDays) * 24 * time.Hour
}
