package infuse

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("INFUSE_TEST_DEFAULTS")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Zero(t, cfg.GCTTL)
	assert.Zero(t, cfg.GCInterval)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("INFUSE_LOG_LEVEL", "debug")
	t.Setenv("INFUSE_GC_TTL", "30s")
	t.Setenv("INFUSE_GC_INTERVAL", "5m")
	t.Setenv("INFUSE_MAX_DEPTH", "25")

	cfg, err := LoadConfig("INFUSE")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.GCTTL)
	assert.Equal(t, 5*time.Minute, cfg.GCInterval)
	assert.Equal(t, 25, cfg.MaxDepth)
}

func TestLoadConfig_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\ngc_ttl: 1m\ngc_interval: 10s\n"), 0o644))

	cfg, err := LoadConfig("INFUSE_TEST_FILE", WithConfigFile(path))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, time.Minute, cfg.GCTTL)
	assert.Equal(t, 10*time.Second, cfg.GCInterval)
}

func TestLoadConfig_MissingConfigFile(t *testing.T) {
	_, err := LoadConfig("INFUSE_TEST_MISSING", WithConfigFile("/nonexistent/config.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("INFUSE_ENVFILE_LOG_LEVEL=trace\n"), 0o644))

	cfg, err := LoadConfig("INFUSE_ENVFILE", WithEnvFile(path))
	require.NoError(t, err)
	assert.Equal(t, "trace", cfg.LogLevel)

	_, err = LoadConfig("INFUSE_ENVFILE", WithEnvFile("/nonexistent/.env"))
	assert.Error(t, err)
}

func TestConfig_Logger(t *testing.T) {
	var buf bytes.Buffer

	log := Config{LogLevel: "warn"}.Logger(&buf)
	log.Info().Msg("dropped")
	log.Warn().Msg("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")

	// Unknown levels fall back to info.
	log = Config{LogLevel: "bogus"}.Logger(&buf)
	log.Info().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)

	custom := Config{LogLevel: "debug", MaxDepth: 7}
	custom.ApplyDefaults()
	assert.Equal(t, "debug", custom.LogLevel)
	assert.Equal(t, 7, custom.MaxDepth)
}
