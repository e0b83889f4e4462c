package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/arbitrage"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/bot"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/config"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/exchange"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/notify"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/trader"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := exchange.NewManagerFromConfig(logger, cfg)
	if err != nil {
		logger.Error("cannot build exchange manager", "error", err)
		os.Exit(1)
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID))
	}
	notifier := notify.NewNotifier(logger, senders...)

	scanner := arbitrage.NewScanner(logger, manager, cfg.Arbitrage)
	verifier := arbitrage.NewVerifier(logger, manager, cfg.Arbitrage.MinProfitThreshold, cfg.Arbitrage.OrderBookDepth)
	executor := trader.NewExecutor(logger, manager, verifier, notifier)
	registry := trader.NewRegistry()
	monitor := trader.NewMonitor(logger, manager, registry, notifier, cfg.Risk)

	manager.StartStreams(ctx, cfg.Arbitrage.TradingPairs)

	b := bot.New(logger, scanner, executor, monitor,
		cfg.Arbitrage.ScanInterval, cfg.Arbitrage.StatsLogEveryCycles)
	b.Run(ctx)

	// Monitors observe cancellation at their next poll boundary; gateway
	// connections close only once none of them can still place orders.
	logger.Info("waiting for position monitors to finish", "open_positions", registry.Len())
	registry.Wait()
	manager.CloseAll()
	logger.Info("bot shutdown complete")
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
