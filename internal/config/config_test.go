package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.NeedsBackends())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "full"
log_level = "debug"

[server]
port = 9090
rate_limit = 20
rate_limit_window = "2s"

[market]
settle_lock_ttl = "45s"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Server.RateLimit)
	assert.Equal(t, 2*time.Second, cfg.Server.RateLimitWindow.Duration)
	assert.Equal(t, 45*time.Second, cfg.Market.SettleLockTTL.Duration)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 500, cfg.Market.MaxQuestionLen)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `mode = "server"`)
	t.Setenv("DONATEMARKET_MODE", "full")
	t.Setenv("DONATEMARKET_SERVER_PORT", "7000")
	t.Setenv("DONATEMARKET_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("DONATEMARKET_REDIS_TLS_ENABLED", "true")
	t.Setenv("DONATEMARKET_MARKET_SETTLE_LOCK_TTL", "1m")
	t.Setenv("DONATEMARKET_POSTGRES_PORT", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Redis.TLSEnabled)
	assert.Equal(t, time.Minute, cfg.Market.SettleLockTTL.Duration)
	assert.Equal(t, 5432, cfg.Postgres.Port, "unparseable values are ignored")
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "verbose"
	cfg.Server.Port = 0
	cfg.Market.MaxQuestionLen = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, `unknown log_level "verbose"`)
	assert.Contains(t, msg, "server: port must be 1-65535")
	assert.Contains(t, msg, "market: max_question_len")
}

func TestValidateFullModeBackends(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "full"
	cfg.Redis.Addr = ""
	cfg.S3.Bucket = ""
	cfg.Postgres.PoolMinConns = 20

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
	assert.Contains(t, err.Error(), "pool_min_conns must not exceed pool_max_conns")
}

func TestValidateRateLimitNeedsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Server.RateLimit = 10

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit requires mode full")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Server.APIKey = "key"
	cfg.Postgres.Password = "pw"
	cfg.S3.SecretKey = "secret"
	cfg.Notify.TelegramToken = "tok"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.Postgres.DSN, "empty secrets stay empty")

	out.Notify.Events[0] = "changed"
	assert.Equal(t, "market_resolved", cfg.Notify.Events[0])
	assert.Equal(t, "key", cfg.Server.APIKey)
}
