package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, time.Duration(0), cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 32, cfg.Server.MaxConcurrency)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)

	assert.Equal(t, 8, cfg.Walk.Concurrency)
	assert.Equal(t, "/", cfg.Walk.Delimiter)
	assert.Equal(t, 100, cfg.Walk.ProgressEvery)
	assert.Equal(t, "text", cfg.Walk.Output)
	assert.Empty(t, cfg.Walk.Include)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NIMBUSWALK_WALK_CONCURRENCY", "3")
	t.Setenv("NIMBUSWALK_WALK_INCLUDE", "a/**,b/**")
	t.Setenv("NIMBUSWALK_SERVER_SHUTDOWN_TIMEOUT", "2s")
	t.Setenv("NIMBUSWALK_S3_REGION", "eu-central-1")

	cfg, err := Load(newViper())
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Walk.Concurrency)
	assert.Equal(t, []string{"a/**", "b/**"}, cfg.Walk.Include)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "eu-central-1", cfg.S3.Region)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nimbuswalk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
walk:
  concurrency: 16
  output: jsonl
  exclude:
    - "**/_temporary/**"
logging:
  format: json
`), 0o644))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Walk.Concurrency)
	assert.Equal(t, "jsonl", cfg.Walk.Output)
	assert.Equal(t, []string{"**/_temporary/**"}, cfg.Walk.Exclude)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/", cfg.Walk.Delimiter)
}

func TestLoad_Invalid(t *testing.T) {
	v := newViper()
	v.Set("walk.concurrency", 0)
	v.Set("walk.output", "csv")

	_, err := Load(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "walk.concurrency must be >= 1")
	assert.Contains(t, err.Error(), `walk.output must be text or jsonl, got "csv"`)
}

func TestLoad_BadDuration(t *testing.T) {
	v := newViper()
	v.Set("server.read_timeout", "soon")

	_, err := Load(v)
	assert.ErrorContains(t, err, "decode config")
}
