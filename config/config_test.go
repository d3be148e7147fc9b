package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GRADEBOOK_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gradebook", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "text", cfg.LogFormat())
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, 5, cfg.Database.ConnectAttempts)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 75.0, cfg.Grading.FrequencyFloor)
	assert.Equal(t, 10*time.Minute, cfg.Grading.ConfigCacheTTL)
	assert.NotNil(t, cfg.Features)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GRADEBOOK_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("GRADEBOOK_APP_ENV", "production")
	t.Setenv("GRADEBOOK_DATABASE_URL", "postgres://u:p@db:5432/gradebook")
	t.Setenv("GRADEBOOK_REDIS_PORT", "6380")
	t.Setenv("GRADEBOOK_GRADING_FREQUENCY_FLOOR", "70")
	t.Setenv("GRADEBOOK_GRADING_CONFIG_CACHE_TTL", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "json", cfg.LogFormat())
	assert.Equal(t, "postgres://u:p@db:5432/gradebook", cfg.Database.URL)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, 70.0, cfg.Grading.FrequencyFloor)
	assert.Equal(t, time.Minute, cfg.Grading.ConfigCacheTTL)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GRADEBOOK_TEST_DOTENV_MARKER=from-file\n"), 0o600))
	t.Setenv("GRADEBOOK_ENV_FILE", path)
	t.Cleanup(func() { os.Unsetenv("GRADEBOOK_TEST_DOTENV_MARKER") })

	_, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", os.Getenv("GRADEBOOK_TEST_DOTENV_MARKER"))
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := &Config{
		App:      AppConfig{Environment: EnvProduction},
		Database: DatabaseConfig{MaxConns: 1, MinConns: 2},
		Grading:  GradingConfig{FrequencyFloor: 120, ConfigCacheTTL: -1},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"GRADEBOOK_DATABASE_URL",
		"GRADEBOOK_DATABASE_MAX_CONNS",
		"GRADEBOOK_DATABASE_CONNECT_ATTEMPTS",
		"GRADEBOOK_GRADING_FREQUENCY_FLOOR",
		"GRADEBOOK_GRADING_*_CACHE_TTL",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_UnknownEnvironment(t *testing.T) {
	t.Setenv("GRADEBOOK_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("GRADEBOOK_APP_ENV", "qa")

	_, err := Load()
	assert.ErrorContains(t, err, "GRADEBOOK_APP_ENV")
}
