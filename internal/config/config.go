package config

import (
	"errors"
	"os"
	"time"

	"quickflare/internal/env"

	"github.com/spf13/viper"
)

/**
 * Control API configuration
 * @property {string} address - Listening address of the control API (e.g. "127.0.0.1:8099"), empty disables it
 * @property {string} mode - gin mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path, "console" or empty writes to stdout
 */
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

/**
 * Tunnel configuration, immutable once the manager is created
 * @property {string} host - Host of the local service exposed by the tunnel
 * @property {int} port - Port of the local service
 * @property {int} metricsPort - Port of the cloudflared metrics endpoint, 0 picks one in [8100, 9000]
 * @property {string} tunnelId - Named tunnel identifier
 * @property {string} configPath - External cloudflared configuration file, wins over tunnelId
 * @property {string} path - Directory where the cloudflared binary is staged
 * @property {bool} keepAlive - Run the background health check loop
 */
type TunnelConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	MetricsPort       int           `mapstructure:"metrics_port"`
	TunnelID          string        `mapstructure:"tunnel_id"`
	ConfigPath        string        `mapstructure:"config_path"`
	Path              string        `mapstructure:"path"`
	KeepAlive         bool          `mapstructure:"keep_alive"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	RestartGrace      time.Duration `mapstructure:"restart_grace"`
	ProbeAttempts     int           `mapstructure:"probe_attempts"`
	ProbeInterval     time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
}

type AppConfig struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Tunnel TunnelConfig `mapstructure:"tunnel"`
}

const (
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 5000
	DefaultKeepAliveInterval = 300 * time.Second
	DefaultRestartGrace      = 5 * time.Minute
	DefaultProbeAttempts     = 10
	DefaultProbeInterval     = 3 * time.Second
	DefaultProbeTimeout      = 10 * time.Second
	DefaultLogLevel          = "info"
)

var Config AppConfig

/**
 * Load application configuration
 * @param {string} file - Explicit configuration file, empty searches quickflare.yaml in "." and $HOME/.quickflare
 * @returns {(*AppConfig, error)} Returns loaded configuration with defaults applied
 * @description
 * - Values come from (highest first) bound flags, QUICKFLARE_* environment, config file, defaults
 * - A missing config file is not an error, a malformed one is
 */
func LoadConfig(file string) (*AppConfig, error) {
	if file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName("quickflare")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if env.QuickflareDir != "" {
			viper.AddConfigPath(env.QuickflareDir)
		}
	}
	viper.SetEnvPrefix("quickflare")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	collectConfig(&cfg)
	Config = cfg
	return &cfg, nil
}

// Get returns the configuration loaded last
func Get() *AppConfig {
	return &Config
}

func collectConfig(cfg *AppConfig) *AppConfig {
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	FillTunnelDefaults(&cfg.Tunnel)
	return cfg
}

// FillTunnelDefaults replaces zero values with defaults. MetricsPort stays 0, the manager picks it.
func FillTunnelDefaults(tc *TunnelConfig) {
	if tc.Host == "" {
		tc.Host = DefaultHost
	}
	if tc.Port == 0 {
		tc.Port = DefaultPort
	}
	if tc.Path == "" || tc.Path == "/tmp" {
		tc.Path = os.TempDir()
	}
	if tc.KeepAliveInterval <= 0 {
		tc.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if tc.RestartGrace <= 0 {
		tc.RestartGrace = DefaultRestartGrace
	}
	if tc.ProbeAttempts <= 0 {
		tc.ProbeAttempts = DefaultProbeAttempts
	}
	if tc.ProbeInterval <= 0 {
		tc.ProbeInterval = DefaultProbeInterval
	}
	if tc.ProbeTimeout <= 0 {
		tc.ProbeTimeout = DefaultProbeTimeout
	}
}
