// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Cache drivers
const (
	CacheDriverDatabase = "database"
	CacheDriverMemory   = "memory"
	CacheDriverRedis    = "redis"
	CacheDriverNone     = "none"
)

// DefaultCacheTTLMinutes keeps range counts for a year of calendar minutes.
const DefaultCacheTTLMinutes = 525600

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	APIKey      string   `mapstructure:"apikey"`
	Timezone    string   `mapstructure:"timezone"`

	// File paths
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Tracking and aggregation
	TrackingEnabled   bool   `mapstructure:"trackingenabled"`
	CacheEnabled      bool   `mapstructure:"cacheenabled"`
	CacheDriver       string `mapstructure:"cachedriver"`
	CacheTTLMinutes   int    `mapstructure:"cachettlminutes"`
	CrunchConcurrency int    `mapstructure:"crunchconcurrency"`

	// Redis cache driver
	RedisAddr     string `mapstructure:"redisaddr"`
	RedisPassword string `mapstructure:"redispassword"`
	RedisDB       int    `mapstructure:"redisdb"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Data retention settings, 0 keeps views forever
	ViewsRetentionDays int `mapstructure:"viewsretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		c, err := Load()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = c
	})
	return cfg
}

// Load reads defaults and environment variables into a fresh Config.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("appname", "tracker")
	v.SetDefault("appport", "3000")
	v.SetDefault("environment", Development)
	v.SetDefault("loglevel", string(LogLevelDebug))
	v.SetDefault("apikey", "")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("storagepath", "storage")
	v.SetDefault("logsdir", "logs")
	v.SetDefault("logsmaxsizeinmb", 20)
	v.SetDefault("logsmaxbackups", 10)
	v.SetDefault("logsmaxageindays", 30)
	v.SetDefault("dbmaxopenconns", 0)
	v.SetDefault("dbmaxidleconns", 0)
	v.SetDefault("trackingenabled", true)
	v.SetDefault("cacheenabled", true)
	v.SetDefault("cachedriver", CacheDriverDatabase)
	v.SetDefault("cachettlminutes", DefaultCacheTTLMinutes)
	v.SetDefault("crunchconcurrency", 1)
	v.SetDefault("redisaddr", "localhost:6379")
	v.SetDefault("redispassword", "")
	v.SetDefault("redisdb", 0)
	v.SetDefault("jobintervalseconds", 3600)
	v.SetDefault("viewsretentiondays", 0)

	v.BindEnv("appname", "TRACKER_APP_NAME")
	v.BindEnv("appport", "TRACKER_APP_PORT")
	v.BindEnv("environment", "TRACKER_ENV")
	v.BindEnv("loglevel", "TRACKER_LOG_LEVEL")
	v.BindEnv("apikey", "TRACKER_API_KEY")
	v.BindEnv("timezone", "TRACKER_TIMEZONE")
	v.BindEnv("storagepath", "TRACKER_STORAGE_PATH")
	v.BindEnv("logsdir", "TRACKER_LOGS_DIR")
	v.BindEnv("logsmaxsizeinmb", "TRACKER_LOGS_MAX_SIZE_IN_MB")
	v.BindEnv("logsmaxbackups", "TRACKER_LOGS_MAX_BACKUPS")
	v.BindEnv("logsmaxageindays", "TRACKER_LOGS_MAX_AGE_IN_DAYS")
	v.BindEnv("dbmaxopenconns", "TRACKER_DB_MAX_OPEN_CONNS")
	v.BindEnv("dbmaxidleconns", "TRACKER_DB_MAX_IDLE_CONNS")
	v.BindEnv("trackingenabled", "TRACKER_TRACKING_ENABLED")
	v.BindEnv("cacheenabled", "TRACKER_CACHE_ENABLED")
	v.BindEnv("cachedriver", "TRACKER_CACHE_DRIVER")
	v.BindEnv("cachettlminutes", "TRACKER_CACHE_TTL_MINUTES")
	v.BindEnv("crunchconcurrency", "TRACKER_CRUNCH_CONCURRENCY")
	v.BindEnv("redisaddr", "TRACKER_REDIS_ADDR")
	v.BindEnv("redispassword", "TRACKER_REDIS_PASSWORD")
	v.BindEnv("redisdb", "TRACKER_REDIS_DB")
	v.BindEnv("jobintervalseconds", "TRACKER_JOB_INTERVAL_SECONDS")
	v.BindEnv("viewsretentiondays", "TRACKER_VIEWS_RETENTION_DAYS")

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Set derived values
	c.DatabaseName = c.GetDatabasePath()

	if c.IsProduction() && c.APIKey == "" {
		return nil, fmt.Errorf("production requires TRACKER_API_KEY")
	}

	return c, nil
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDrivers := map[string]bool{
		CacheDriverDatabase: true,
		CacheDriverMemory:   true,
		CacheDriverRedis:    true,
		CacheDriverNone:     true,
	}
	if !validDrivers[c.CacheDriver] {
		return fmt.Errorf("invalid cache driver: %s", c.CacheDriver)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	if c.CacheTTLMinutes < 0 {
		return fmt.Errorf("cache ttl cannot be negative: %d", c.CacheTTLMinutes)
	}
	if c.CrunchConcurrency < 0 {
		return fmt.Errorf("crunch concurrency cannot be negative: %d", c.CrunchConcurrency)
	}
	if c.ViewsRetentionDays < 0 {
		return fmt.Errorf("views retention cannot be negative: %d", c.ViewsRetentionDays)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// Location returns the timezone calendar windows are computed in.
// validate has already checked the name, so a failure here falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CacheTTL returns how long a cached range count stays valid.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// GetAppName returns the application name, also used as the log file name
func (c *Config) GetAppName() string {
	return c.AppName
}

// GetPort returns the HTTP server port
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns no directory; the tracker serves no static assets
func (c *Config) GetPublicDirectory() string {
	return ""
}

// GetAssetsPrefix returns the URL prefix static assets would be served under
func (c *Config) GetAssetsPrefix() string {
	return "/assets"
}

var (
	_ cartridge.Config            = (*Config)(nil)
	_ cartridge.LogConfigProvider = (*Config)(nil)
)

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
