package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNothingSet(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 50, cfg.MaxWorkers)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.False(t, cfg.NoCache)
}

func TestLoad_EnvVarsOverrideDefaults(t *testing.T) {
	t.Setenv("MAX_WORKERS", "10")
	t.Setenv("NO_CACHE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxWorkers)
	assert.True(t, cfg.NoCache)
}

func TestLoad_ProviderCredentialsReadFromEnv(t *testing.T) {
	t.Setenv("THREATINTEL_API_KEY", "secret-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.Credentials["threatintel"])
}

func TestLoad_MissingConfigFileIsNotAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
}

func TestLoad_ConfigFileValuesApplyWhenEnvUnset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_workers: 8\nretry_attempts: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.Equal(t, 5, cfg.RetryAttempts)
}

func TestLoad_EnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_workers: 8\n"), 0o644))
	t.Setenv("MAX_WORKERS", "20")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.MaxWorkers)
}
