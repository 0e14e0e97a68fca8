package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DONATEMARKET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DONATEMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "DONATEMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DONATEMARKET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "DONATEMARKET_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "DONATEMARKET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "DONATEMARKET_SERVER_RATE_LIMIT_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DONATEMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "DONATEMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DONATEMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DONATEMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DONATEMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DONATEMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DONATEMARKET_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DONATEMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DONATEMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DONATEMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "DONATEMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DONATEMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DONATEMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DONATEMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DONATEMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DONATEMARKET_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.StreamMaxLen, "DONATEMARKET_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "DONATEMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DONATEMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "DONATEMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DONATEMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DONATEMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DONATEMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DONATEMARKET_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "DONATEMARKET_S3_PREFIX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DONATEMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DONATEMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DONATEMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DONATEMARKET_NOTIFY_EVENTS")

	// ── Market ──
	setInt(&cfg.Market.MaxQuestionLen, "DONATEMARKET_MARKET_MAX_QUESTION_LEN")
	setDuration(&cfg.Market.SettleLockTTL, "DONATEMARKET_MARKET_SETTLE_LOCK_TTL")

	// ── Top-level ──
	setStr(&cfg.Mode, "DONATEMARKET_MODE")
	setStr(&cfg.LogLevel, "DONATEMARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
