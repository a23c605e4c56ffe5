// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

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

// Database types
const (
	SQLiteDatabase = "sqlite"
)

const defaultSecret = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName       string   `mapstructure:"appname"`
	AppPort       string   `mapstructure:"appport"`
	Environment   string   `mapstructure:"environment"`
	LogLevel      LogLevel `mapstructure:"loglevel"`
	PrivateKey    string   `mapstructure:"privatekey"`
	PublicBaseURL string   `mapstructure:"publicbaseurl"`

	// Auth settings
	JWTSecret     string `mapstructure:"jwtsecret"`
	JWTTTLMinutes int    `mapstructure:"jwtttlminutes"`

	// Billing webhook shared secret
	WebhookSecret string `mapstructure:"webhooksecret"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Analytics settings
	AnalyticsMaxDays    int `mapstructure:"analyticsmaxdays"`
	AnalyticsWorkers    int `mapstructure:"analyticsworkers"`
	EventsRetentionDays int `mapstructure:"eventsretentiondays"`

	// Notification settings
	NotifyFrom               string `mapstructure:"notifyfrom"`
	NotifyBreakerMaxFailures int    `mapstructure:"notifybreakermaxfailures"`
	NotifyTimeoutSeconds     int    `mapstructure:"notifytimeoutseconds"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "agentlinker")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultSecret)
		v.SetDefault("publicbaseurl", "http://localhost:3000")
		v.SetDefault("jwtsecret", defaultSecret)
		v.SetDefault("jwtttlminutes", 60*24*7)
		v.SetDefault("webhooksecret", "")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("publicdir", "web/dist")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("analyticsmaxdays", 365)
		v.SetDefault("analyticsworkers", 3)
		v.SetDefault("eventsretentiondays", 365)
		v.SetDefault("notifyfrom", "notifications@agentlinker.local")
		v.SetDefault("notifybreakermaxfailures", 5)
		v.SetDefault("notifytimeoutseconds", 10)
		v.SetDefault("jobintervalseconds", 300)

		v.BindEnv("appname", "AGENTLINKER_APP_NAME")
		v.BindEnv("appport", "AGENTLINKER_APP_PORT")
		v.BindEnv("environment", "AGENTLINKER_ENV")
		v.BindEnv("loglevel", "AGENTLINKER_LOG_LEVEL")
		v.BindEnv("privatekey", "AGENTLINKER_PRIVATE_KEY")
		v.BindEnv("publicbaseurl", "AGENTLINKER_PUBLIC_BASE_URL")
		v.BindEnv("jwtsecret", "AGENTLINKER_JWT_SECRET")
		v.BindEnv("jwtttlminutes", "AGENTLINKER_JWT_TTL_MINUTES")
		v.BindEnv("webhooksecret", "AGENTLINKER_WEBHOOK_SECRET")
		v.BindEnv("storagepath", "AGENTLINKER_STORAGE_PATH")
		v.BindEnv("publicdir", "AGENTLINKER_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "AGENTLINKER_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "AGENTLINKER_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "AGENTLINKER_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "AGENTLINKER_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "AGENTLINKER_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "AGENTLINKER_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "AGENTLINKER_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "AGENTLINKER_DB_MAX_IDLE_CONNS")
		v.BindEnv("analyticsmaxdays", "AGENTLINKER_ANALYTICS_MAX_DAYS")
		v.BindEnv("analyticsworkers", "AGENTLINKER_ANALYTICS_WORKERS")
		v.BindEnv("eventsretentiondays", "AGENTLINKER_EVENTS_RETENTION_DAYS")
		v.BindEnv("notifyfrom", "AGENTLINKER_NOTIFY_FROM")
		v.BindEnv("notifybreakermaxfailures", "AGENTLINKER_NOTIFY_BREAKER_MAX_FAILURES")
		v.BindEnv("notifytimeoutseconds", "AGENTLINKER_NOTIFY_TIMEOUT_SECONDS")
		v.BindEnv("jobintervalseconds", "AGENTLINKER_JOB_INTERVAL_SECONDS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()
	})
	return cfg
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

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.PrivateKey == "" {
		return fmt.Errorf("private key is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.IsProduction() {
		if c.PrivateKey == defaultSecret {
			return fmt.Errorf("production requires a unique AGENTLINKER_PRIVATE_KEY (cannot use default)")
		}
		if c.JWTSecret == defaultSecret {
			return fmt.Errorf("production requires a unique AGENTLINKER_JWT_SECRET (cannot use default)")
		}
	}

	if c.JWTTTLMinutes <= 0 {
		return fmt.Errorf("invalid jwt ttl: %d minutes", c.JWTTTLMinutes)
	}
	if c.AnalyticsMaxDays <= 0 {
		return fmt.Errorf("invalid analytics max days: %d", c.AnalyticsMaxDays)
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

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetJWTTTL returns how long issued access tokens stay valid.
func (c *Config) GetJWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

// GetNotifyTimeout bounds a single notification delivery attempt.
func (c *Config) GetNotifyTimeout() time.Duration {
	if c.NotifyTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}

// GetAnalyticsWorkers returns the number of concurrent report fetches.
func (c *Config) GetAnalyticsWorkers() int {
	if c.AnalyticsWorkers <= 0 {
		return 3
	}
	return c.AnalyticsWorkers
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 10 (allows concurrent report fetches)
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

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
