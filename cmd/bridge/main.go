// Package main is the entry point for the signal bridge.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/tathienbao/signal-bridge/internal/alerting"
	"github.com/tathienbao/signal-bridge/internal/config"
	"github.com/tathienbao/signal-bridge/internal/gateway"
	"github.com/tathienbao/signal-bridge/internal/gateway/binance"
	"github.com/tathienbao/signal-bridge/internal/gateway/paper"
	"github.com/tathienbao/signal-bridge/internal/metrics"
	"github.com/tathienbao/signal-bridge/internal/orchestrator"
	"github.com/tathienbao/signal-bridge/internal/persistence"
	"github.com/tathienbao/signal-bridge/internal/risk"
	sig "github.com/tathienbao/signal-bridge/internal/signal"
	"github.com/tathienbao/signal-bridge/internal/types"
	"github.com/tathienbao/signal-bridge/internal/webhook"
)

// Version information (set by build flags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "run":
		cmdRun(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Signal Bridge - Signal-to-Order Reconciliation and Risk Engine

Usage:
  bridge <command> [options]

Commands:
  run        Start the bridge
  validate   Validate configuration file
  version    Show version information
  help       Show this help message

Examples:
  bridge run --config config.yaml
  bridge validate --config config.yaml

Use "bridge <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("bridge version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Starting balance: $%.2f\n", cfg.Account.StartingBalance)
	fmt.Printf("  Max position size: $%.2f\n", cfg.Risk.MaxPositionSize)
	fmt.Printf("  Max daily loss: $%.2f\n", cfg.Risk.MaxDailyLoss)
	fmt.Printf("  Max drawdown: %.1f%%\n", cfg.Risk.MaxDrawdownPct)
	fmt.Printf("  Brokers: %d configured\n", len(cfg.Brokers))
}

func cmdRun(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Debug logging")
	fs.Parse(args)

	// Secrets land in the environment before anything reads it.
	_ = godotenv.Load()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("signal bridge starting",
		"version", Version,
		"brokers", len(cfg.Brokers),
		"webhook_port", cfg.Webhook.Port,
	)
	metrics.SetBuildInfo(Version, GitCommit, BuildTime)

	gateways, err := buildGateways(cfg, logger)
	if err != nil {
		logger.Error("failed to build gateways", "err", err)
		os.Exit(1)
	}

	alerter := buildAlerter(cfg, logger)

	state := risk.NewState(cfg.StartingBalanceDecimal())

	var repo persistence.Repository
	if cfg.Persistence.Enabled {
		sqlRepo, err := persistence.NewSQLiteRepository(cfg.Persistence.Path)
		if err != nil {
			logger.Error("failed to open persistence", "err", err)
			os.Exit(1)
		}
		defer sqlRepo.Close()
		repo = sqlRepo

		if err := restoreState(ctx, repo, state, logger); err != nil {
			logger.Error("failed to restore state", "err", err)
			os.Exit(1)
		}
	}

	orch := orchestrator.New(
		orchestrator.Config{
			DefaultBroker:     cfg.Account.DefaultBroker,
			BrokerCallTimeout: cfg.BrokerCallTimeout(),
		},
		sig.NewNormalizer(cfg.ToNormalizerConfig(), logger),
		risk.NewValidator(cfg.ToLimits(), logger),
		state,
		gateways,
		repo,
		alerter,
		logger,
	)

	webhookSrv := webhook.NewServer(webhook.ServerConfig{
		Port:         cfg.Webhook.Port,
		Path:         cfg.Webhook.Path,
		AuthToken:    cfg.Webhook.AuthToken,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
		ReadTimeout:  cfg.WebhookReadTimeout(),
		WriteTimeout: cfg.WebhookWriteTimeout(),
	}, orch, logger)

	go func() {
		if err := webhookSrv.Start(); err != nil {
			logger.Error("webhook server failed", "err", err)
			stop()
		}
	}()

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(metrics.ServerConfig{
			Port:        cfg.Metrics.Port,
			MetricsPath: cfg.Metrics.Path,
			HealthPath:  "/health",
		}, logger)
		registerHealthChecks(metricsSrv, gateways)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	go dailyResetLoop(ctx, orch, logger)

	_ = alerter.Alert(ctx, alerting.EventSeverity(alerting.EventServiceStarted),
		"signal bridge started", "version", Version)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := webhookSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("webhook shutdown", "err", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown", "err", err)
		}
	}

	_ = alerter.Alert(shutdownCtx, alerting.EventSeverity(alerting.EventServiceStopped),
		"signal bridge stopped")
	logger.Info("signal bridge stopped")
}

// buildGateways constructs one gateway per configured broker.
func buildGateways(cfg *config.Config, logger *slog.Logger) (map[string]gateway.Gateway, error) {
	gateways := make(map[string]gateway.Gateway, len(cfg.Brokers))

	for name, broker := range cfg.Brokers {
		switch broker.Type {
		case "binance":
			creds, err := binance.LoadCredentials()
			if err != nil {
				return nil, fmt.Errorf("broker %s: %w", name, err)
			}
			bcfg := binance.DefaultConfig()
			bcfg.Testnet = broker.Testnet
			if broker.RequestsPerSecond > 0 {
				bcfg.MaxRequestsPerSecond = int(broker.RequestsPerSecond)
			}
			gateways[name] = binance.NewClient(bcfg, creds, logger)

		case "paper":
			pcfg := paper.DefaultConfig()
			if broker.PaperBalance > 0 {
				pcfg.Balance = decimal.NewFromFloat(broker.PaperBalance)
			}
			gateways[name] = paper.New(pcfg, logger)

		default:
			return nil, fmt.Errorf("broker %s: unsupported type %q", name, broker.Type)
		}
	}

	return gateways, nil
}

// buildAlerter assembles the configured alert channels behind one fan-out.
func buildAlerter(cfg *config.Config, logger *slog.Logger) *alerting.MultiAlerter {
	multi := alerting.NewMultiAlerter(logger)
	if !cfg.Alerting.Enabled {
		return multi
	}

	for _, ch := range cfg.Alerting.Channels {
		switch ch.Type {
		case "telegram":
			multi.AddAlerter(alerting.NewTelegramAlerter(alerting.TelegramConfig{
				BotToken: ch.BotToken,
				ChatID:   ch.ChatID,
			}))
		case "console":
			multi.AddAlerter(alerting.NewConsoleAlerter(logger))
		}
	}

	return multi
}

// restoreState rehydrates the risk state from the last persisted snapshot.
func restoreState(ctx context.Context, repo persistence.Repository, state *risk.State, logger *slog.Logger) error {
	rs, err := repo.GetRiskState(ctx)
	if errors.Is(err, types.ErrStateNotFound) {
		logger.Info("no persisted state, starting fresh")
		return nil
	}
	if err != nil {
		return err
	}

	positions, err := repo.GetOpenPositions(ctx)
	if err != nil {
		return err
	}

	state.Restore(rs.DayStartBalance, rs.CurrentBalance, rs.PeakBalance, positions)
	logger.Info("state restored",
		"balance", rs.CurrentBalance,
		"peak", rs.PeakBalance,
		"open_positions", len(positions),
	)
	return nil
}

// registerHealthChecks wires one reachability probe per gateway.
func registerHealthChecks(srv *metrics.Server, gateways map[string]gateway.Gateway) {
	for name, gw := range gateways {
		g := gw
		srv.RegisterHealthCheck("gateway_"+name, func() metrics.Check {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if _, err := g.AccountBalance(ctx); err != nil {
				return metrics.Check{Status: "unhealthy", Message: err.Error()}
			}
			return metrics.Check{Status: "healthy"}
		})
	}
}

// dailyResetLoop rolls the daily loss window at each UTC midnight.
func dailyResetLoop(ctx context.Context, orch *orchestrator.Orchestrator, logger *slog.Logger) {
	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)

		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			orch.ResetDaily()
			logger.Info("daily window rolled", "day", time.Now().UTC().Format("2006-01-02"))
		}
	}
}
