package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "harvest.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "sources.yaml", cfg.Sources.Path)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, int64(2<<20), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(2048), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 10, cfg.Anthropic.RequestsPerMinute)
	assert.Equal(t, 30, cfg.Pipeline.MaxItems)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 3, cfg.Pipeline.DuplicateStreak)
	assert.InDelta(t, 0.7, cfg.Pipeline.ConfidenceFloor, 0.001)
	assert.Equal(t, 85, cfg.Match.DuplicateThreshold)
	assert.Equal(t, 90, cfg.Match.RenewalThreshold)
	assert.Equal(t, 100, cfg.Match.TitleWindow)
	assert.Equal(t, 30, cfg.Lifecycle.ExpiryGraceDays)
	assert.InDelta(t, 0.5, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.Equal(t, 500, cfg.Monitoring.PendingBacklog)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/harvest
pipeline:
  max_items: 50
match:
  duplicate_threshold: 80
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/harvest", cfg.Store.DatabaseURL)
	assert.Equal(t, 50, cfg.Pipeline.MaxItems)
	assert.Equal(t, 80, cfg.Match.DuplicateThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched knobs keep their defaults.
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 90, cfg.Match.RenewalThreshold)
}

func TestLoadEnvOverride(t *testing.T) {
	chTempDir(t)

	t.Setenv("HARVEST_STORE_DRIVER", "postgres")
	t.Setenv("HARVEST_ANTHROPIC_KEY", "sk-ant-test")
	t.Setenv("HARVEST_PIPELINE_DUPLICATE_STREAK", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
	assert.Equal(t, 5, cfg.Pipeline.DuplicateStreak)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [not a map"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	assert.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
