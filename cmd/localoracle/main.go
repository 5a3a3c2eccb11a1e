// Command localoracle settles hyperlocal weather prediction markets and runs
// the autonomous trading agent against them. It loads configuration,
// validates it, wires dependencies, sets up signal handling, and starts the
// pipelines of the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alanyoungcy/localoracle/internal/app"
	"github.com/alanyoungcy/localoracle/internal/config"
	"github.com/alanyoungcy/localoracle/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	once := flag.Bool("once", false, "run the configured pipelines once with the current time and exit")
	sealKey := flag.String("seal-key", "", "encrypt wallet.private_key with wallet.key_password into this file and exit")
	flag.Parse()

	logger := newLogger("info")
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger = newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if *sealKey != "" {
		if err := writeSealedKey(cfg, *sealKey); err != nil {
			logger.Error("seal key failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("sealed key written", slog.String("path", *sealKey))
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("localoracle starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.Bool("once", *once),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run := application.Run
	if *once {
		run = application.RunOnce
	}
	if err := run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			application.Close()
			os.Exit(1)
		}
	}

	logger.Info("localoracle stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func writeSealedKey(cfg *config.Config, path string) error {
	key, err := crypto.LoadKey(crypto.KeyConfig{RawPrivateKey: cfg.Wallet.PrivateKey})
	if err != nil {
		return err
	}
	data, err := crypto.SealKey(key, cfg.Wallet.KeyPassword)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
