// Package config loads nimbuswalk settings.
//
// Values are layered by viper: built-in defaults, then an optional config
// file, then NIMBUSWALK_* environment variables, then command-line flags
// bound by the commands.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix (NIMBUSWALK_WALK_CONCURRENCY, ...).
const EnvPrefix = "NIMBUSWALK"

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Walk    WalkConfig    `mapstructure:"walk"`
	S3      S3Config      `mapstructure:"s3"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxConcurrency caps the concurrency a walk request may ask for.
	MaxConcurrency int `mapstructure:"max_concurrency"`
}

// LoggingConfig configures the CLI logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// WalkConfig holds defaults for walks.
type WalkConfig struct {
	Concurrency   int      `mapstructure:"concurrency"`
	Delimiter     string   `mapstructure:"delimiter"`
	MaxKeys       int      `mapstructure:"max_keys"`
	RateLimit     float64  `mapstructure:"rate_limit"`
	ProgressEvery int      `mapstructure:"progress_every"`
	Include       []string `mapstructure:"include"`
	Exclude       []string `mapstructure:"exclude"`
	ExcludeHidden bool     `mapstructure:"exclude_hidden"`
	Output        string   `mapstructure:"output"`
	Sort          bool     `mapstructure:"sort"`
}

// S3Config holds connection defaults for s3 and minio.
type S3Config struct {
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Profile        string `mapstructure:"profile"`
	RegionFromIMDS bool   `mapstructure:"region_from_imds"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_concurrency", 32)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("walk.concurrency", 8)
	v.SetDefault("walk.delimiter", "/")
	v.SetDefault("walk.max_keys", 0)
	v.SetDefault("walk.rate_limit", 0.0)
	v.SetDefault("walk.progress_every", 100)
	v.SetDefault("walk.include", []string{})
	v.SetDefault("walk.exclude", []string{})
	v.SetDefault("walk.exclude_hidden", false)
	v.SetDefault("walk.output", "text")
	v.SetDefault("walk.sort", false)

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.profile", "")
	v.SetDefault("s3.region_from_imds", false)
}

// BindEnv enables NIMBUSWALK_* environment overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes v into a Config and validates it.
//
// Durations accept Go duration strings ("30s") and lists accept
// comma-separated strings, so both work from env variables.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		bad("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxConcurrency < 1 {
		bad("server.max_concurrency must be >= 1")
	}
	if c.Walk.Concurrency < 1 {
		bad("walk.concurrency must be >= 1, got %d", c.Walk.Concurrency)
	}
	if c.Walk.MaxKeys < 0 {
		bad("walk.max_keys must not be negative")
	}
	if c.Walk.RateLimit < 0 {
		bad("walk.rate_limit must not be negative")
	}
	switch c.Walk.Output {
	case "text", "jsonl":
	default:
		bad("walk.output must be text or jsonl, got %q", c.Walk.Output)
	}
	return errors.Join(errs...)
}
