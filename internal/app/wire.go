package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	s3blob "github.com/alanyoungcy/localoracle/internal/blob/s3"
	"github.com/alanyoungcy/localoracle/internal/cache/redis"
	"github.com/alanyoungcy/localoracle/internal/chain"
	"github.com/alanyoungcy/localoracle/internal/config"
	"github.com/alanyoungcy/localoracle/internal/consensus"
	"github.com/alanyoungcy/localoracle/internal/crypto"
	"github.com/alanyoungcy/localoracle/internal/domain"
	"github.com/alanyoungcy/localoracle/internal/notify"
	"github.com/alanyoungcy/localoracle/internal/platform/anthropic"
	"github.com/alanyoungcy/localoracle/internal/platform/openweather"
	"github.com/alanyoungcy/localoracle/internal/platform/weatherapi"
	"github.com/alanyoungcy/localoracle/internal/server/handler"
	"github.com/alanyoungcy/localoracle/internal/service"
	"github.com/alanyoungcy/localoracle/internal/store/postgres"
	"github.com/alanyoungcy/localoracle/internal/store/sqlite"
)

// Dependencies bundles everything the pipelines and the status server need.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Signer *crypto.Signer
	Reader *chain.Reader
	Writer *chain.Writer

	Primary   domain.WeatherProvider
	Secondary domain.WeatherProvider
	Arbiter   domain.Arbiter
	Runner    *consensus.Runner

	// Sinks holds the optional backends; nil members fall back to no-ops.
	Sinks service.Sinks

	// Checks ping every connected backend for /api/health.
	Checks map[string]handler.Check
}

// Wire constructs all concrete implementations from cfg and returns them
// together with a cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Checks: make(map[string]handler.Check),
		Runner: consensus.NewRunner(cfg.Consensus.Nodes, logger),
	}

	// --- Chain ---
	eth, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fail(fmt.Errorf("wire: dial rpc: %w", err))
	}
	closers = append(closers, eth.Close)
	deps.Checks["chain"] = func(ctx context.Context) error {
		_, err := eth.BlockNumber(ctx)
		return err
	}

	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Signer, err = crypto.NewSigner(key, cfg.Chain.ChainID)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}

	market := common.HexToAddress(cfg.Chain.PredictionMarketAddress)
	var agent common.Address
	if common.IsHexAddress(cfg.Chain.MarketAgentAddress) {
		agent = common.HexToAddress(cfg.Chain.MarketAgentAddress)
	}
	deps.Reader = chain.NewReader(eth, market, agent, logger)
	deps.Writer = chain.NewWriter(eth, deps.Signer, chain.WriterConfig{
		MarketAddress:  market,
		AgentAddress:   agent,
		GasLimit:       cfg.Chain.GasLimit,
		ReceiptTimeout: cfg.Chain.ReceiptTimeout.Duration,
	}, logger)

	// --- External data ---
	deps.Primary = openweather.NewClient(cfg.Weather.OpenWeatherBaseURL, cfg.Weather.OpenWeatherAPIKey, cfg.Weather.RequestTimeout.Duration)
	deps.Secondary = weatherapi.NewClient(cfg.Weather.WeatherAPIBaseURL, cfg.Weather.WeatherAPIKey, cfg.Weather.RequestTimeout.Duration)
	deps.Arbiter = anthropic.NewClient(anthropic.ClientConfig{
		BaseURL:   cfg.Arbiter.BaseURL,
		APIKey:    cfg.Arbiter.APIKey,
		Model:     cfg.Arbiter.Model,
		MaxTokens: cfg.Arbiter.MaxTokens,
		Timeout:   cfg.Arbiter.Timeout.Duration,
	})

	// --- Decision and audit store ---
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.Sinks.Decisions = postgres.NewDecisionStore(pg.Pool())
		deps.Sinks.Audit = postgres.NewAuditStore(pg.Pool())
		deps.Checks["postgres"] = pg.Pool().Ping

	case "sqlite":
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := sqlite.Migrate(db); err != nil {
			return fail(fmt.Errorf("wire: %w", err))
		}
		deps.Sinks.Decisions = sqlite.NewDecisionStore(db)
		deps.Sinks.Audit = sqlite.NewAuditStore(db)
		deps.Checks["sqlite"] = db.PingContext
	}

	// --- Redis: cycle locks and the decision bus ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MaxRetries:   cfg.Redis.MaxRetries,
			TLSEnabled:   cfg.Redis.TLSEnabled,
			Namespace:    redisNamespace(cfg, market),
			StreamMaxLen: int64(cfg.Redis.StreamMaxLen),
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })
		deps.Sinks.Locks = redis.NewLockManager(rc)
		deps.Sinks.Bus = redis.NewDecisionBus(rc)
		deps.Checks["redis"] = rc.Ping
	}

	// --- S3 cycle archive ---
	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Sinks.Archive = s3blob.NewCycleArchiver(sc)
		deps.Checks["s3"] = sc.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Sinks.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.Sinks.Tracker = service.NewCycleTracker()

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("oracle", deps.Signer.Address().Hex()),
		slog.String("market", market.Hex()),
		slog.String("store", cfg.Store.Driver),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("s3", cfg.S3.Enabled),
		slog.Int("notify_senders", len(senders)),
	)
	return deps, cleanup, nil
}

// redisNamespace scopes Redis keys to one market contract unless the
// operator configured a namespace.
func redisNamespace(cfg *config.Config, market common.Address) string {
	if cfg.Redis.Namespace != "" {
		return cfg.Redis.Namespace
	}
	return fmt.Sprintf("localoracle:%d:%s", cfg.Chain.ChainID, strings.ToLower(market.Hex()))
}
