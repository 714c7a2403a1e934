package cli

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsgrove/stockwatch/internal/config"
	"github.com/opsgrove/stockwatch/pkg/monitor"
	"github.com/opsgrove/stockwatch/pkg/notify"
	"github.com/opsgrove/stockwatch/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stockwatch",
	Short: "Bulk stock monitoring and worker replenishment alerts",
	Long: `Stockwatch monitors sellable-product availability against replenishment
rules and notifies the responsible worker with pickup instructions when a
product type runs low. It provides a background watcher with an HTTP API
and CLI commands for managing items, workers, rules and notifications.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.stockwatch/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (storage.Storage, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initTransport picks the configured message transport. Telegram wins when
// both are enabled.
func initTransport(cfg *config.Config) (notify.Transport, error) {
	if cfg.Telegram.Enabled {
		return notify.NewTelegramTransport(cfg.Telegram.APIURL, cfg.Telegram.Token), nil
	}
	if cfg.Webhook.Enabled {
		return notify.NewWebhookTransport(cfg.Webhook.URL, cfg.Webhook.Secret), nil
	}
	return nil, errors.New("no transport enabled: set telegram.enabled or webhook.enabled")
}

// initEngine creates a fully wired monitoring engine.
func initEngine(cfg *config.Config, logger *slog.Logger) (*monitor.Engine, storage.Storage, error) {
	store, err := initStorage(cfg)
	if err != nil {
		return nil, nil, err
	}

	transport, err := initTransport(cfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	alerter := notify.NewAlerter(transport, cfg.Monitor.FallbackRecipient, logger)
	engine := monitor.NewEngine(store, alerter, monitor.SystemClock(), monitor.Options{
		Cooldown:          cfg.Monitor.Cooldown(),
		SendTimeout:       cfg.Monitor.SendTimeoutDuration(),
		Concurrency:       cfg.Monitor.Concurrency,
		FallbackRecipient: cfg.Monitor.FallbackRecipient,
	}, logger)

	return engine, store, nil
}
