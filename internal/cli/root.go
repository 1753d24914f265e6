package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/itswl/balance-alert/internal/config"
	"github.com/itswl/balance-alert/pkg/metrics"
	"github.com/itswl/balance-alert/pkg/monitor"
	"github.com/itswl/balance-alert/pkg/notify"
	"github.com/itswl/balance-alert/pkg/providers"
	"github.com/itswl/balance-alert/pkg/renewal"
	"github.com/itswl/balance-alert/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "balance-alert",
	Short: "Multi-provider account balance and subscription monitoring",
	Long: `balance-alert watches API account balances across providers, raises
low-balance alarms against per-project thresholds, and reminds about
upcoming subscription renewals. Alerts go out through a configurable
webhook (custom JSON, Feishu, DingTalk, WeCom or Slack).`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.balance-alert/config.yaml)")
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

// initRegistry returns the built-in providers plus any declarative REST
// descriptors found in the configured directory.
func initRegistry(cfg *config.Config) (*providers.Registry, error) {
	registry := providers.Default()

	if cfg.Providers.Dir == "" {
		return registry, nil
	}

	paths, err := filepath.Glob(filepath.Join(cfg.Providers.Dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("scan provider descriptors: %w", err)
	}
	for _, path := range paths {
		desc, err := providers.LoadRestDescriptor(path)
		if err != nil {
			return nil, fmt.Errorf("load provider descriptor %s: %w", path, err)
		}
		if err := registry.Register(desc.Name, providers.NewRestFactory(desc)); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// initDispatcher creates the webhook dispatcher, or nil when no
// webhook URL is configured.
func initDispatcher(cfg *config.Config, logger *slog.Logger, dryRun bool) *notify.Dispatcher {
	if cfg.Webhook.URL == "" {
		return nil
	}
	renderer := notify.RendererFor(cfg.Webhook.Type, cfg.Webhook.Source)
	return notify.NewDispatcher(cfg.Webhook.URL, cfg.Webhook.Secret, renderer, dryRun, logger)
}

// engine bundles a fully wired orchestrator with its collaborators.
type engine struct {
	orchestrator *monitor.Orchestrator
	store        storage.Store
	registry     *prometheus.Registry
	logger       *slog.Logger
	cfg          *config.Config
}

// initEngine builds the orchestrator from config. When withStore is
// false the history sink is skipped (one-shot commands that only
// print).
func initEngine(cfg *config.Config, dryRun, withStore bool) (*engine, error) {
	logger := newLogger(cfg)

	registry, err := initRegistry(cfg)
	if err != nil {
		return nil, err
	}

	projects, err := cfg.EnabledProjects()
	if err != nil {
		return nil, err
	}
	subscriptions, err := cfg.EnabledSubscriptions()
	if err != nil {
		return nil, err
	}

	var store storage.Store
	if withStore {
		s, err := storage.NewSQLite(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		store = s
	}

	dryRun = dryRun || cfg.Settings.DryRun
	promReg := prometheus.NewRegistry()

	var notifier monitor.Notifier
	if d := initDispatcher(cfg, logger, dryRun); d != nil {
		notifier = d
	}

	o := monitor.NewOrchestrator(monitor.Options{
		Registry:      registry,
		Cache:         monitor.NewResultCache(cfg.Settings.CacheTTL),
		State:         monitor.NewStateHolder(),
		Notifier:      notifier,
		Store:         store,
		Metrics:       metrics.New(promReg),
		Logger:        logger,
		Projects:      func() []monitor.Project { return projects },
		Subscriptions: func() []renewal.Subscription { return subscriptions },
		MaxConcurrent: cfg.Settings.MaxConcurrentChecks,
		CycleTimeout:  cfg.Settings.CycleTimeout,
		Cooldown:      cfg.Settings.MinRefreshInterval,
		DryRun:        dryRun,
	})

	return &engine{
		orchestrator: o,
		store:        store,
		registry:     promReg,
		logger:       logger,
		cfg:          cfg,
	}, nil
}

func (e *engine) close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn("close history store", "error", err)
		}
	}
}
