// Package config provides configuration management for SyncSocial.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the SyncSocial control plane.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Automation AutomationConfig `mapstructure:"automation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// DatabaseConfig holds database connection configuration.
// When Host is empty the control plane runs on SQLite at Path.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int    `mapstructure:"maxConns"`
	MinConns int    `mapstructure:"minConns"`
	Path     string `mapstructure:"path"` // SQLite file path
}

// NATSConfig holds NATS messaging configuration.
// An empty URL selects the in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClusterID     string `mapstructure:"clusterId"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// AutomationConfig holds run-execution and browser-cluster configuration.
type AutomationConfig struct {
	// ArtifactsDir is the root directory for screenshot artifacts,
	// sharded by workspace id.
	ArtifactsDir string `mapstructure:"artifactsDir"`

	// CredentialEncryptionKey is the symmetric key sealing storage-state
	// credentials. Required for run execution and login auto-capture.
	CredentialEncryptionKey string `mapstructure:"credentialEncryptionKey"`

	// BrowserClusterMode selects the browser node integration: "local"
	// runs an in-process session manager, "remote" talks HTTP.
	BrowserClusterMode string `mapstructure:"browserClusterMode"`

	// BrowserNodeAPIBaseURL and BrowserNodeInternalToken configure the
	// remote browser node (remote mode only).
	BrowserNodeAPIBaseURL    string `mapstructure:"browserNodeApiBaseUrl"`
	BrowserNodeInternalToken string `mapstructure:"browserNodeInternalToken"`

	// LoginSessionAutoCapture enables the background capture loop spawned
	// per login session.
	LoginSessionAutoCapture bool `mapstructure:"loginSessionAutoCapture"`

	// NoVNCPublicURL is returned to users as LoginSession.remote_url.
	NoVNCPublicURL string `mapstructure:"novncPublicUrl"`

	// TickSeconds is the schedule dispatcher period.
	TickSeconds int `mapstructure:"tickSeconds"`

	// CleanupHours is the artifact retention sweeper period.
	CleanupHours int `mapstructure:"cleanupHours"`

	// ExecutorWorkers is the number of concurrent account-run executors.
	ExecutorWorkers int `mapstructure:"executorWorkers"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// TickInterval returns the schedule dispatcher period as a time.Duration.
func (a *AutomationConfig) TickInterval() time.Duration {
	if a.TickSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(a.TickSeconds) * time.Second
}

// CleanupInterval returns the artifact sweeper period as a time.Duration.
func (a *AutomationConfig) CleanupInterval() time.Duration {
	if a.CleanupHours <= 0 {
		return 6 * time.Hour
	}
	return time.Duration(a.CleanupHours) * time.Hour
}

// detectDefaultLogFormat returns "json" for containerized/production
// environments and "text" for terminal use.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("SYNCSOCIAL_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database defaults - empty host means SQLite at database.path
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "syncsocial")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbName", "syncsocial")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)
	v.SetDefault("database.path", "./syncsocial.db")

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clusterId", "syncsocial-cluster")
	v.SetDefault("nats.clientId", "syncsocial-client")
	v.SetDefault("nats.maxReconnects", 10)

	// Automation defaults
	v.SetDefault("automation.artifactsDir", "./artifacts")
	v.SetDefault("automation.credentialEncryptionKey", "")
	v.SetDefault("automation.browserClusterMode", "remote")
	v.SetDefault("automation.browserNodeApiBaseUrl", "http://localhost:8070")
	v.SetDefault("automation.browserNodeInternalToken", "")
	v.SetDefault("automation.loginSessionAutoCapture", true)
	v.SetDefault("automation.novncPublicUrl", "")
	v.SetDefault("automation.tickSeconds", 30)
	v.SetDefault("automation.cleanupHours", 6)
	v.SetDefault("automation.executorWorkers", 4)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix SYNCSOCIAL_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory
// or /etc/syncsocial/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variables
	v.SetEnvPrefix("SYNCSOCIAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flat operational env vars predate the SYNCSOCIAL_ prefix; bind both
	// spellings so deployments keep working.
	_ = v.BindEnv("automation.artifactsDir", "ARTIFACTS_DIR", "SYNCSOCIAL_ARTIFACTS_DIR")
	_ = v.BindEnv("automation.credentialEncryptionKey", "CREDENTIAL_ENCRYPTION_KEY", "SYNCSOCIAL_CREDENTIAL_ENCRYPTION_KEY")
	_ = v.BindEnv("automation.browserClusterMode", "BROWSER_CLUSTER_MODE", "SYNCSOCIAL_BROWSER_CLUSTER_MODE")
	_ = v.BindEnv("automation.browserNodeApiBaseUrl", "BROWSER_NODE_API_BASE_URL", "SYNCSOCIAL_BROWSER_NODE_API_BASE_URL")
	_ = v.BindEnv("automation.browserNodeInternalToken", "BROWSER_NODE_INTERNAL_TOKEN", "SYNCSOCIAL_BROWSER_NODE_INTERNAL_TOKEN")
	_ = v.BindEnv("automation.loginSessionAutoCapture", "LOGIN_SESSION_AUTO_CAPTURE", "SYNCSOCIAL_LOGIN_SESSION_AUTO_CAPTURE")
	_ = v.BindEnv("automation.novncPublicUrl", "NOVNC_PUBLIC_URL", "SYNCSOCIAL_NOVNC_PUBLIC_URL")
	_ = v.BindEnv("database.path", "SYNCSOCIAL_DB_PATH", "SYNCSOCIAL_DATABASE_PATH")

	// Configure config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/syncsocial/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	// Database validation - only if host is set (SQLite otherwise)
	if cfg.Database.Host != "" {
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errs = append(errs, "database.port must be between 1 and 65535")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "database.user is required when database.host is set")
		}
		if cfg.Database.DBName == "" {
			errs = append(errs, "database.dbName is required when database.host is set")
		}
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Automation.BrowserClusterMode))
	if mode != "local" && mode != "remote" {
		errs = append(errs, "automation.browserClusterMode must be one of: local, remote")
	}
	if mode == "remote" && cfg.Automation.BrowserNodeAPIBaseURL == "" {
		errs = append(errs, "automation.browserNodeApiBaseUrl is required in remote mode")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// UsePostgres reports whether the Postgres backend is configured.
func (d *DatabaseConfig) UsePostgres() bool {
	return d.Host != ""
}
