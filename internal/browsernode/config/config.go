// Package config loads the browser node's configuration from environment
// variables, an optional config file, and defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for a browser node.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Node    NodeConfig    `mapstructure:"node"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// NodeConfig holds browser-node behavior configuration.
type NodeConfig struct {
	// InternalToken authenticates control-plane calls. Compared in
	// constant time.
	InternalToken string `mapstructure:"internalToken"`

	// NoVNCPublicURL is handed back to login-session starters as the
	// remote URL users open to log in interactively.
	NoVNCPublicURL string `mapstructure:"novncPublicUrl"`

	// Headless controls browser launch mode. Interactive login sessions
	// usually need a headed browser behind VNC.
	Headless bool `mapstructure:"headless"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8070)

	v.SetDefault("node.internalToken", "change-me")
	v.SetDefault("node.novncPublicUrl", "")
	v.SetDefault("node.headless", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, an optional
// browser-node.yaml, and defaults. Environment variables use the
// BROWSER_NODE_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BROWSER_NODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flat operational spellings used by existing deployments.
	_ = v.BindEnv("node.internalToken", "BROWSER_NODE_INTERNAL_TOKEN")
	_ = v.BindEnv("node.novncPublicUrl", "NOVNC_PUBLIC_URL")
	_ = v.BindEnv("node.headless", "BROWSER_NODE_HEADLESS")

	v.SetConfigName("browser-node")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/syncsocial/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("config validation failed: server.port must be between 1 and 65535")
	}

	return &cfg, nil
}
