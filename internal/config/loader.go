package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARTINDEX_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARTINDEX_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "ARTINDEX_CHAIN_RPC_URL")
	setStr(&cfg.Chain.ContractAddress, "ARTINDEX_CHAIN_CONTRACT_ADDRESS")
	setUint64(&cfg.Chain.StartBlock, "ARTINDEX_CHAIN_START_BLOCK")
	setUint64(&cfg.Chain.Confirmations, "ARTINDEX_CHAIN_CONFIRMATIONS")
	setUint64(&cfg.Chain.BatchSize, "ARTINDEX_CHAIN_BATCH_SIZE")
	setDuration(&cfg.Chain.PollInterval, "ARTINDEX_CHAIN_POLL_INTERVAL")
	setFloat64(&cfg.Chain.RPCRateLimit, "ARTINDEX_CHAIN_RPC_RATE_LIMIT")
	setInt(&cfg.Chain.MaxArtistProbe, "ARTINDEX_CHAIN_MAX_ARTIST_PROBE")

	// ── Market ──
	setInt64(&cfg.Market.PlatformPrimaryFee, "ARTINDEX_MARKET_PLATFORM_PRIMARY_FEE")
	setInt64(&cfg.Market.PlatformSecondaryFee, "ARTINDEX_MARKET_PLATFORM_SECONDARY_FEE")
	setInt64(&cfg.Market.ArtistRoyaltyFee, "ARTINDEX_MARKET_ARTIST_ROYALTY_FEE")

	// ── Store ──
	setStr(&cfg.Store.Driver, "ARTINDEX_STORE_DRIVER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARTINDEX_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "ARTINDEX_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARTINDEX_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARTINDEX_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARTINDEX_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARTINDEX_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARTINDEX_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARTINDEX_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARTINDEX_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARTINDEX_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARTINDEX_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARTINDEX_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARTINDEX_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARTINDEX_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARTINDEX_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARTINDEX_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARTINDEX_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "ARTINDEX_REDIS_CACHE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ARTINDEX_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ARTINDEX_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARTINDEX_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARTINDEX_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARTINDEX_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARTINDEX_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARTINDEX_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARTINDEX_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.SnapshotInterval, "ARTINDEX_S3_SNAPSHOT_INTERVAL")
	setStr(&cfg.S3.SnapshotCron, "ARTINDEX_S3_SNAPSHOT_CRON")
	setStr(&cfg.S3.SnapshotPrefix, "ARTINDEX_S3_SNAPSHOT_PREFIX")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARTINDEX_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARTINDEX_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARTINDEX_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ARTINDEX_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMinute, "ARTINDEX_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARTINDEX_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARTINDEX_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARTINDEX_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Severities, "ARTINDEX_NOTIFY_SEVERITIES")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARTINDEX_MODE")
	setStr(&cfg.LogLevel, "ARTINDEX_LOG_LEVEL")
	setStr(&cfg.LogFile, "ARTINDEX_LOG_FILE")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
