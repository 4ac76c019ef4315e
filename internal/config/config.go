// Package config loads server configuration from a YAML file and VOC_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidPort       = errors.New("invalid server port")
	ErrInvalidSource     = errors.New("unknown data source")
	ErrMissingDirectory  = errors.New("data directory is required for the files source")
	ErrInvalidConcurrent = errors.New("max concurrent computations must be positive")
	ErrInvalidBins       = errors.New("histogram bins must be positive")
	ErrInvalidTimeout    = errors.New("analysis timeout must not be negative")
)

// Data source kinds.
const (
	SourceFiles    = "files"
	SourcePostgres = "postgres"
)

const (
	defaultPort          = 8001
	defaultHost          = "0.0.0.0"
	defaultBins          = 20
	defaultMaxConcurrent = 4
	maxPort              = 65535
	envPrefix            = "VOC"
)

// Config holds all configuration for the analytics server.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Data     DataConfig     `mapstructure:"data"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DataConfig selects where CSV datasets come from.
type DataConfig struct {
	Source    string `mapstructure:"source"`
	Directory string `mapstructure:"directory"`
	Watch     bool   `mapstructure:"watch"`
}

// PostgresConfig holds connection details for the postgres source.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Schema   string `mapstructure:"schema"`
}

// AnalysisConfig tunes the analytics engine.
type AnalysisConfig struct {
	AliasFile     string        `mapstructure:"alias_file"`
	HistogramBins int           `mapstructure:"histogram_bins"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from configPath, or from config.yaml in the usual
// locations when configPath is empty. A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/vocstat")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", defaultHost)
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})

	v.SetDefault("data.source", SourceFiles)
	v.SetDefault("data.directory", "./data")
	v.SetDefault("data.watch", true)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.schema", "public")

	v.SetDefault("analysis.alias_file", "")
	v.SetDefault("analysis.histogram_bins", defaultBins)
	v.SetDefault("analysis.max_concurrent", defaultMaxConcurrent)
	v.SetDefault("analysis.timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, cfg.Server.Port)
	}

	switch cfg.Data.Source {
	case SourceFiles:
		if cfg.Data.Directory == "" {
			return ErrMissingDirectory
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSource, cfg.Data.Source)
	}

	if cfg.Analysis.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrent, cfg.Analysis.MaxConcurrent)
	}
	if cfg.Analysis.HistogramBins <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBins, cfg.Analysis.HistogramBins)
	}
	if cfg.Analysis.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, cfg.Analysis.Timeout)
	}
	return nil
}
