package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configVars = []string{
	"SERVER_PORT", "TRANSPORT_MODE", "QUERY_TIMEOUT_MS",
	"LOG_LEVEL", "LOG_FILE", "LOG_MAX_SIZE_MB", "LOG_MAX_BACKUPS", "LOG_MAX_AGE_DAYS",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME",
	"ENGINE_KEY_WITH_CREDENTIALS",
	"LLM_BASE_URL", "LLM_API_KEY", "LLM_MODEL", "LLM_TEMPERATURE", "LLM_TIMEOUT_MS",
}

// clearEnv empties every config variable for the duration of the test and
// runs it from a directory without a .env file.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range configVars {
		t.Setenv(v, "")
	}
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "test_value")

	assert.Equal(t, "test_value", getEnv("TEST_ENV_VAR", "default_value"))
	assert.Equal(t, "default_value", getEnv("NON_EXISTING_VAR", "default_value"))
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, TransportStdio, cfg.TransportMode)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Log.File)
	assert.Equal(t, 25, cfg.Pool.MaxOpenConns)
	assert.Equal(t, 5, cfg.Pool.MaxIdleConns)
	assert.Equal(t, time.Hour, cfg.Pool.ConnMaxLifetime)
	assert.Equal(t, 10*time.Minute, cfg.Pool.ConnMaxIdleTime)
	assert.False(t, cfg.Pool.KeyWithCredentials)
	assert.Equal(t, time.Minute, cfg.LLM.Timeout)
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("TRANSPORT_MODE", "HTTP")
	t.Setenv("QUERY_TIMEOUT_MS", "1500")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DB_CONN_MAX_LIFETIME", "30m")
	t.Setenv("ENGINE_KEY_WITH_CREDENTIALS", "true")
	t.Setenv("LLM_MODEL", "qwen2.5-coder")
	t.Setenv("LLM_TEMPERATURE", "0.2")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, TransportHTTP, cfg.TransportMode)
	assert.Equal(t, 1500*time.Millisecond, cfg.QueryTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 30*time.Minute, cfg.Pool.ConnMaxLifetime)
	assert.True(t, cfg.Pool.KeyWithCredentials)
	assert.Equal(t, "qwen2.5-coder", cfg.LLM.Model)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
}

func TestLoadConfigDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is set, even to "".
	require.NoError(t, os.Unsetenv("SERVER_PORT"))
	require.NoError(t, os.Unsetenv("LLM_API_KEY"))
	require.NoError(t, os.WriteFile(filepath.Join(".", ".env"), []byte("SERVER_PORT=7070\nLLM_API_KEY=sk-test\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("LLM_API_KEY")
	})

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.ServerPort)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SERVER_PORT", "nope"},
		{"DB_CONN_MAX_IDLE_TIME", "ten minutes"},
		{"ENGINE_KEY_WITH_CREDENTIALS", "maybe"},
		{"LLM_TEMPERATURE", "hot"},
		{"TRANSPORT_MODE", "sse"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
