// Package config defines the configuration of the weather oracle and its
// trading agent, and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/localoracle/internal/scheduler"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LOCALORACLE_* environment variables.
type Config struct {
	Chain      ChainConfig     `toml:"chain"`
	Wallet     WalletConfig    `toml:"wallet"`
	Weather    WeatherConfig   `toml:"weather"`
	Arbiter    ArbiterConfig   `toml:"arbiter"`
	Consensus  ConsensusConfig `toml:"consensus"`
	Settlement WorkflowConfig  `toml:"settlement"`
	Agent      WorkflowConfig  `toml:"agent"`
	Store      StoreConfig     `toml:"store"`
	Postgres   PostgresConfig  `toml:"postgres"`
	Redis      RedisConfig     `toml:"redis"`
	S3         S3Config        `toml:"s3"`
	Server     ServerConfig    `toml:"server"`
	Notify     NotifyConfig    `toml:"notify"`
	Mode       string          `toml:"mode"`
	LogLevel   string          `toml:"log_level"`
}

// ChainConfig holds the EVM endpoint and contract addresses.
type ChainConfig struct {
	RPCURL                  string   `toml:"rpc_url"`
	ChainID                 int64    `toml:"chain_id"`
	ChainSelectorName       string   `toml:"chain_selector_name"`
	PredictionMarketAddress string   `toml:"prediction_market_address"`
	MarketAgentAddress      string   `toml:"market_agent_address"`
	GasLimit                uint64   `toml:"gas_limit"`
	ReceiptTimeout          duration `toml:"receipt_timeout"`
}

// WalletConfig holds the oracle signing key source.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// WeatherConfig holds the two weather provider credentials.
type WeatherConfig struct {
	OpenWeatherAPIKey  string   `toml:"openweather_api_key"`
	OpenWeatherBaseURL string   `toml:"openweather_base_url"`
	WeatherAPIKey      string   `toml:"weatherapi_api_key"`
	WeatherAPIBaseURL  string   `toml:"weatherapi_base_url"`
	RequestTimeout     duration `toml:"request_timeout"`
}

// ArbiterConfig holds the Anthropic Messages API settings.
type ArbiterConfig struct {
	APIKey    string   `toml:"api_key"`
	BaseURL   string   `toml:"base_url"`
	Model     string   `toml:"model"`
	MaxTokens int      `toml:"max_tokens"`
	Timeout   duration `toml:"timeout"`
}

// ConsensusConfig sets how many redundant runs back every external fetch.
type ConsensusConfig struct {
	Nodes int `toml:"nodes"`
}

// WorkflowConfig is the schedule of one pipeline. LockTTL bounds how long a
// replica may hold the cycle lock.
type WorkflowConfig struct {
	Schedule string   `toml:"schedule"`
	LockTTL  duration `toml:"lock_ttl"`
}

// StoreConfig selects the decision store backend.
type StoreConfig struct {
	// Driver is one of "postgres", "sqlite" or "none".
	Driver     string `toml:"driver"`
	SQLitePath string `toml:"sqlite_path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	StreamMaxLen int    `toml:"stream_max_len"`
	// Namespace prefixes keys and channels. Empty derives one from the chain
	// ID and market address.
	Namespace    string `toml:"namespace"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP status server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:           11155111,
			ChainSelectorName: "ethereum-testnet-sepolia",
			GasLimit:          500_000,
			ReceiptTimeout:    duration{2 * time.Minute},
		},
		Weather: WeatherConfig{
			OpenWeatherBaseURL: "https://api.openweathermap.org",
			WeatherAPIBaseURL:  "https://api.weatherapi.com",
			RequestTimeout:     duration{10 * time.Second},
		},
		Arbiter: ArbiterConfig{
			BaseURL:   "https://api.anthropic.com",
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 10,
			Timeout:   duration{30 * time.Second},
		},
		Consensus: ConsensusConfig{
			Nodes: 3,
		},
		Settlement: WorkflowConfig{
			Schedule: "0 */10 * * * *",
			LockTTL:  duration{9 * time.Minute},
		},
		Agent: WorkflowConfig{
			Schedule: "0 0 * * * *",
			LockTTL:  duration{50 * time.Minute},
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "localoracle.db",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "localoracle-cycles",
			Prefix:         "cycles",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"market_settled", "bet_placed", "write_failed", "cycle_error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"settle": true,
	"agent":  true,
	"full":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validStoreDrivers = map[string]bool{
	"postgres": true,
	"sqlite":   true,
	"none":     true,
}

// RunsSettlement reports whether the mode includes the settlement pipeline.
func (c *Config) RunsSettlement() bool {
	m := strings.ToLower(c.Mode)
	return m == "settle" || m == "full"
}

// RunsAgent reports whether the mode includes the trading pipeline.
func (c *Config) RunsAgent() bool {
	m := strings.ToLower(c.Mode)
	return m == "agent" || m == "full"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: settle, agent, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if c.Chain.GasLimit == 0 {
		errs = append(errs, "chain: gas_limit must be > 0")
	}
	if !common.IsHexAddress(c.Chain.PredictionMarketAddress) {
		errs = append(errs, fmt.Sprintf("chain: prediction_market_address %q is not a valid address", c.Chain.PredictionMarketAddress))
	}
	if c.RunsAgent() && !common.IsHexAddress(c.Chain.MarketAgentAddress) {
		errs = append(errs, fmt.Sprintf("chain: market_agent_address %q is not a valid address", c.Chain.MarketAgentAddress))
	}

	// Wallet
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Weather
	if c.Weather.OpenWeatherAPIKey == "" {
		errs = append(errs, "weather: openweather_api_key must be set")
	}
	if c.Weather.WeatherAPIKey == "" {
		errs = append(errs, "weather: weatherapi_api_key must be set")
	}
	if c.Weather.RequestTimeout.Duration <= 0 {
		errs = append(errs, "weather: request_timeout must be > 0")
	}

	// Arbiter. An empty api_key is allowed; disputes then fall back to the
	// primary provider.
	if c.Arbiter.MaxTokens < 1 {
		errs = append(errs, "arbiter: max_tokens must be >= 1")
	}

	if c.Consensus.Nodes < 1 {
		errs = append(errs, "consensus: nodes must be >= 1")
	}

	// Schedules
	if c.RunsSettlement() {
		if _, err := scheduler.Parse(c.Settlement.Schedule); err != nil {
			errs = append(errs, "settlement: "+err.Error())
		}
	}
	if c.RunsAgent() {
		if _, err := scheduler.Parse(c.Agent.Schedule); err != nil {
			errs = append(errs, "agent: "+err.Error())
		}
	}

	// Store
	driver := strings.ToLower(c.Store.Driver)
	if !validStoreDrivers[driver] {
		errs = append(errs, fmt.Sprintf("store: unknown driver %q (valid: postgres, sqlite, none)", c.Store.Driver))
	}
	if driver == "sqlite" && c.Store.SQLitePath == "" {
		errs = append(errs, "store: sqlite_path must not be empty for the sqlite driver")
	}
	if driver == "postgres" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.AccessKey != "" && c.S3.SecretKey == "" {
			errs = append(errs, "s3: secret_key is required with access_key")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
