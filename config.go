package infuse

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config carries container tunables commonly supplied through the
// environment or a config file.
type Config struct {
	LogLevel   string        `mapstructure:"log_level"`
	GCTTL      time.Duration `mapstructure:"gc_ttl"`
	GCInterval time.Duration `mapstructure:"gc_interval"`
	MaxDepth   int           `mapstructure:"max_depth"`
}

// ApplyDefaults fills unset fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
}

// Logger builds a zerolog logger honoring the configured level.
func (c Config) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

type loadOptions struct {
	configFile string
	envFile    string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithConfigFile sets an explicit config file (yaml/toml/json, inferred
// from the extension).
func WithConfigFile(path string) LoadOption {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFile sets an explicit .env file loaded before env binding.
func WithEnvFile(path string) LoadOption {
	return func(o *loadOptions) { o.envFile = path }
}

// LoadConfig reads configuration from the environment, an optional .env
// file, and an optional config file. Environment variables use the given
// prefix: with prefix "INFUSE", INFUSE_GC_TTL binds to gc_ttl. Duration
// fields accept Go duration strings ("30s", "5m").
func LoadConfig(prefix string, opts ...LoadOption) (Config, error) {
	var lo loadOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&lo)
		}
	}

	if lo.envFile != "" {
		if err := godotenv.Load(lo.envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", lo.envFile, err)
		}
	} else {
		// Best-effort; a missing .env in the working directory is fine.
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"log_level", "gc_ttl", "gc_interval", "max_depth"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env key %s: %w", key, err)
		}
	}

	if lo.configFile != "" {
		v.SetConfigFile(lo.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", lo.configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}
