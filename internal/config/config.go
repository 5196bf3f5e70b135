// Package config loads trove runtime configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "TROVE"

// Supported backends.
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendMongoDB  = "mongodb"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("trove: invalid config")

// Config is the complete runtime configuration.
type Config struct {
	Backend        string        `mapstructure:"backend"`
	ConnectionName string        `mapstructure:"connection_name"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Log            LogConfig     `mapstructure:"log"`
	DynamoDB       DynamoConfig  `mapstructure:"dynamodb"`
	MongoDB        MongoConfig   `mapstructure:"mongodb"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DynamoConfig configures the DynamoDB backend.
type DynamoConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	TablePrefix     string `mapstructure:"table_prefix"`
}

// MongoConfig configures the MongoDB backend.
type MongoConfig struct {
	URL      string `mapstructure:"url"`
	Database string `mapstructure:"database"`
}

// MetricsConfig toggles prometheus collection.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendMemory,
		ConnectionName: "admin",
		Timeout:        10 * time.Second,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		DynamoDB: DynamoConfig{
			Region: "us-east-1",
		},
		MongoDB: MongoConfig{
			Database: "trove",
		},
	}
}

// Loader loads configuration with precedence flags > env > file > defaults.
type Loader struct {
	file  string
	flags map[string]*pflag.Flag
}

// NewLoader creates a loader reading the optional config file.
func NewLoader(file string) *Loader {
	return &Loader{file: file, flags: map[string]*pflag.Flag{}}
}

// BindFlag overrides key with flag when the flag was set.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) *Loader {
	if flag != nil {
		l.flags[key] = flag
	}
	return l
}

// Load reads and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if l.file != "" {
		v.SetConfigFile(l.file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.file, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	for key, flag := range l.flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

var keys = []string{
	"backend",
	"connection_name",
	"timeout",
	"log.level",
	"log.format",
	"dynamodb.region",
	"dynamodb.endpoint",
	"dynamodb.access_key_id",
	"dynamodb.secret_access_key",
	"dynamodb.session_token",
	"dynamodb.table_prefix",
	"mongodb.url",
	"mongodb.database",
	"metrics.enabled",
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("connection_name", cfg.ConnectionName)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("dynamodb.region", cfg.DynamoDB.Region)
	v.SetDefault("dynamodb.endpoint", cfg.DynamoDB.Endpoint)
	v.SetDefault("dynamodb.access_key_id", cfg.DynamoDB.AccessKeyID)
	v.SetDefault("dynamodb.secret_access_key", cfg.DynamoDB.SecretAccessKey)
	v.SetDefault("dynamodb.session_token", cfg.DynamoDB.SessionToken)
	v.SetDefault("dynamodb.table_prefix", cfg.DynamoDB.TablePrefix)
	v.SetDefault("mongodb.url", cfg.MongoDB.URL)
	v.SetDefault("mongodb.database", cfg.MongoDB.Database)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
}

// Validate checks backend-specific requirements.
func (c *Config) Validate() error {
	if c.ConnectionName == "" {
		return fmt.Errorf("%w: connection_name is required", ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Log.Format)
	}

	switch c.Backend {
	case BackendMemory:
	case BackendDynamoDB:
		if c.DynamoDB.Region == "" {
			return fmt.Errorf("%w: dynamodb.region is required", ErrInvalidConfig)
		}
		if (c.DynamoDB.AccessKeyID == "") != (c.DynamoDB.SecretAccessKey == "") {
			return fmt.Errorf("%w: dynamodb access key id and secret must be set together", ErrInvalidConfig)
		}
	case BackendMongoDB:
		if c.MongoDB.URL == "" {
			return fmt.Errorf("%w: mongodb.url is required", ErrInvalidConfig)
		}
		if c.MongoDB.Database == "" {
			return fmt.Errorf("%w: mongodb.database is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	return nil
}
