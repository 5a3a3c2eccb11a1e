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
// built-in defaults, applies LOCALORACLE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated.
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

// applyEnvOverrides lets operators inject secrets and endpoints at deploy
// time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "LOCALORACLE_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "LOCALORACLE_CHAIN_ID")
	setStr(&cfg.Chain.ChainSelectorName, "LOCALORACLE_CHAIN_SELECTOR_NAME")
	setStr(&cfg.Chain.PredictionMarketAddress, "LOCALORACLE_PREDICTION_MARKET_ADDRESS")
	setStr(&cfg.Chain.MarketAgentAddress, "LOCALORACLE_MARKET_AGENT_ADDRESS")
	setUint64(&cfg.Chain.GasLimit, "LOCALORACLE_CHAIN_GAS_LIMIT")
	setDuration(&cfg.Chain.ReceiptTimeout, "LOCALORACLE_CHAIN_RECEIPT_TIMEOUT")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "LOCALORACLE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "LOCALORACLE_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "LOCALORACLE_WALLET_KEY_PASSWORD")

	// ── Weather ──
	setStr(&cfg.Weather.OpenWeatherAPIKey, "LOCALORACLE_OPENWEATHER_API_KEY")
	setStr(&cfg.Weather.OpenWeatherBaseURL, "LOCALORACLE_OPENWEATHER_BASE_URL")
	setStr(&cfg.Weather.WeatherAPIKey, "LOCALORACLE_WEATHERAPI_API_KEY")
	setStr(&cfg.Weather.WeatherAPIBaseURL, "LOCALORACLE_WEATHERAPI_BASE_URL")
	setDuration(&cfg.Weather.RequestTimeout, "LOCALORACLE_WEATHER_REQUEST_TIMEOUT")

	// ── Arbiter ──
	setStr(&cfg.Arbiter.APIKey, "LOCALORACLE_ANTHROPIC_API_KEY")
	setStr(&cfg.Arbiter.BaseURL, "LOCALORACLE_ARBITER_BASE_URL")
	setStr(&cfg.Arbiter.Model, "LOCALORACLE_ARBITER_MODEL")
	setInt(&cfg.Arbiter.MaxTokens, "LOCALORACLE_ARBITER_MAX_TOKENS")
	setDuration(&cfg.Arbiter.Timeout, "LOCALORACLE_ARBITER_TIMEOUT")

	// ── Consensus / schedules ──
	setInt(&cfg.Consensus.Nodes, "LOCALORACLE_CONSENSUS_NODES")
	setStr(&cfg.Settlement.Schedule, "LOCALORACLE_SETTLEMENT_SCHEDULE")
	setDuration(&cfg.Settlement.LockTTL, "LOCALORACLE_SETTLEMENT_LOCK_TTL")
	setStr(&cfg.Agent.Schedule, "LOCALORACLE_AGENT_SCHEDULE")
	setDuration(&cfg.Agent.LockTTL, "LOCALORACLE_AGENT_LOCK_TTL")

	// ── Store ──
	setStr(&cfg.Store.Driver, "LOCALORACLE_STORE_DRIVER")
	setStr(&cfg.Store.SQLitePath, "LOCALORACLE_STORE_SQLITE_PATH")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "LOCALORACLE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "LOCALORACLE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LOCALORACLE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LOCALORACLE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LOCALORACLE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LOCALORACLE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LOCALORACLE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LOCALORACLE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LOCALORACLE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LOCALORACLE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "LOCALORACLE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "LOCALORACLE_REDIS_ADDR")
	setStr(&cfg.Redis.Namespace, "LOCALORACLE_REDIS_NAMESPACE")
	setStr(&cfg.Redis.Password, "LOCALORACLE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LOCALORACLE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LOCALORACLE_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "LOCALORACLE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "LOCALORACLE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "LOCALORACLE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LOCALORACLE_S3_REGION")
	setStr(&cfg.S3.Bucket, "LOCALORACLE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LOCALORACLE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LOCALORACLE_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "LOCALORACLE_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "LOCALORACLE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "LOCALORACLE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "LOCALORACLE_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "LOCALORACLE_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "LOCALORACLE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "LOCALORACLE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "LOCALORACLE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "LOCALORACLE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "LOCALORACLE_MODE")
	setStr(&cfg.LogLevel, "LOCALORACLE_LOG_LEVEL")
}

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
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
