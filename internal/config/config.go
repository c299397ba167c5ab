package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	ServerPort    int
	TransportMode string
	QueryTimeout  time.Duration
	Log           LogConfig
	Pool          PoolConfig
	LLM           LLMConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// PoolConfig holds the settings applied to every cached engine
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// KeyWithCredentials adds a password fingerprint to the engine cache key.
	KeyWithCredentials bool
}

// LLMConfig holds the OpenAI-compatible endpoint used to generate SQL
type LLMConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Transport modes
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// LoadConfig loads the configuration from environment variables, after
// reading an optional .env file in the working directory.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TransportMode: strings.ToLower(getEnv("TRANSPORT_MODE", TransportStdio)),
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
		LLM: LLMConfig{
			BaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com"),
			APIKey:  getEnv("LLM_API_KEY", ""),
			Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
	}

	var err error
	if cfg.ServerPort, err = getEnvInt("SERVER_PORT", 9090); err != nil {
		return nil, err
	}
	if cfg.QueryTimeout, err = getEnvMillis("QUERY_TIMEOUT_MS", 30000); err != nil {
		return nil, err
	}
	if cfg.Log.MaxSizeMB, err = getEnvInt("LOG_MAX_SIZE_MB", 10); err != nil {
		return nil, err
	}
	if cfg.Log.MaxBackups, err = getEnvInt("LOG_MAX_BACKUPS", 3); err != nil {
		return nil, err
	}
	if cfg.Log.MaxAgeDays, err = getEnvInt("LOG_MAX_AGE_DAYS", 28); err != nil {
		return nil, err
	}
	if cfg.Pool.MaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.Pool.MaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.Pool.ConnMaxLifetime, err = getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Pool.ConnMaxIdleTime, err = getEnvDuration("DB_CONN_MAX_IDLE_TIME", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Pool.KeyWithCredentials, err = getEnvBool("ENGINE_KEY_WITH_CREDENTIALS", false); err != nil {
		return nil, err
	}
	if cfg.LLM.Temperature, err = getEnvFloat("LLM_TEMPERATURE", 0); err != nil {
		return nil, err
	}
	if cfg.LLM.Timeout, err = getEnvMillis("LLM_TIMEOUT_MS", 60000); err != nil {
		return nil, err
	}

	if cfg.TransportMode != TransportStdio && cfg.TransportMode != TransportHTTP {
		return nil, fmt.Errorf("invalid TRANSPORT_MODE %q: want %s or %s", cfg.TransportMode, TransportStdio, TransportHTTP)
	}
	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvMillis(key string, defaultMs int) (time.Duration, error) {
	ms, err := getEnvInt(key, defaultMs)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}
