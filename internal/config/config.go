// Package config loads platform configuration from defaults, an
// optional YAML file and TRADEFORGE_* environment variables, in
// ascending precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the server.
type Config struct {
	Server   ServerConfig
	Data     DataConfig
	Backtest BacktestConfig
	Paper    PaperConfig
	Forward  ForwardConfig
	Workers  WorkersConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// DataConfig holds market data configuration.
type DataConfig struct {
	Dir      string
	Provider string
	TTL      time.Duration
	Upstream UpstreamConfig
}

// UpstreamConfig holds the upstream quote API client configuration.
type UpstreamConfig struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	MaxRetries uint64
	RateLimit  float64
	Burst      int
}

// BacktestConfig holds backtest request defaults.
type BacktestConfig struct {
	DefaultPeriod   string
	DefaultInterval string
}

// PaperConfig holds the paper trading account configuration.
type PaperConfig struct {
	InitialCash float64
}

// ForwardConfig holds forward testing configuration.
type ForwardConfig struct {
	PollInterval time.Duration
}

// WorkersConfig holds worker pool configuration.
type WorkersConfig struct {
	NumWorkers      int
	QueueSize       int
	TaskTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string
	Development bool
}

// Load reads configuration. path names an explicit config file; when
// empty, config.yaml is searched for in the working directory and
// /etc/tradeforge, and running without one is fine.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tradeforge")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("TRADEFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Data.Provider {
	case "synthetic":
	case "upstream":
		if c.Data.Upstream.URL == "" {
			return fmt.Errorf("data.upstream.url is required for the upstream provider")
		}
	default:
		return fmt.Errorf("unknown data provider %q (want synthetic or upstream)", c.Data.Provider)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server.port must not be empty")
	}
	if c.Paper.InitialCash <= 0 {
		return fmt.Errorf("paper.initialCash must be positive")
	}
	if c.Forward.PollInterval <= 0 {
		return fmt.Errorf("forward.pollInterval must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "15s")
	v.SetDefault("server.idleTimeout", "120s")
	v.SetDefault("server.allowedOrigins", []string{"*"})

	v.SetDefault("data.dir", "data")
	v.SetDefault("data.provider", "synthetic")
	v.SetDefault("data.ttl", "15m")
	v.SetDefault("data.upstream.url", "")
	v.SetDefault("data.upstream.apiKey", "")
	v.SetDefault("data.upstream.timeout", "10s")
	v.SetDefault("data.upstream.maxRetries", 3)
	v.SetDefault("data.upstream.rateLimit", 5)
	v.SetDefault("data.upstream.burst", 5)

	v.SetDefault("backtest.defaultPeriod", "1y")
	v.SetDefault("backtest.defaultInterval", "1d")

	v.SetDefault("paper.initialCash", 1_000_000)

	v.SetDefault("forward.pollInterval", "5s")

	v.SetDefault("workers.numWorkers", 0)
	v.SetDefault("workers.queueSize", 256)
	v.SetDefault("workers.taskTimeout", "60s")
	v.SetDefault("workers.shutdownTimeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}
