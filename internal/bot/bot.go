// Package bot drives the scan-and-execute cadence. It is deliberately thin:
// all detection and trading logic lives in the arbitrage and trader
// packages.
package bot

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Scanner produces the current profitable opportunities.
type Scanner interface {
	Scan(ctx context.Context) []model.Opportunity
}

// Executor realizes a single opportunity.
type Executor interface {
	Execute(ctx context.Context, opp model.Opportunity) (*model.TradeResult, error)
}

// MonitorSpawner starts a watcher for a completed trade.
type MonitorSpawner interface {
	Watch(ctx context.Context, trade model.TradeResult)
}

// Stats accumulates run counters for the periodic summary log.
type Stats struct {
	OpportunitiesFound int
	TradesExecuted     int
	SuccessfulTrades   int
	FailedTrades       int
	TotalProfit        float64
	StartTime          time.Time
}

// Bot repeatedly scans for opportunities and executes the most profitable
// one per cycle. Monitors spawned for successful trades outlive cycles and
// are drained by the caller at shutdown.
type Bot struct {
	logger     *slog.Logger
	scanner    Scanner
	executor   Executor
	monitor    MonitorSpawner
	interval   time.Duration
	statsEvery int

	stats Stats
}

// New creates a Bot with the given cycle interval. statsEvery controls how
// many cycles pass between summary logs.
func New(logger *slog.Logger, scanner Scanner, executor Executor, monitor MonitorSpawner, interval time.Duration, statsEvery int) *Bot {
	if statsEvery < 1 {
		statsEvery = 1
	}
	return &Bot{
		logger:     logger.With("component", "bot"),
		scanner:    scanner,
		executor:   executor,
		monitor:    monitor,
		interval:   interval,
		statsEvery: statsEvery,
	}
}

// Run cycles until ctx is cancelled. No new cycle starts after
// cancellation; running monitors are left to the caller to drain.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("starting arbitrage bot", "cycle_interval", b.interval)
	b.stats.StartTime = time.Now().UTC()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for cycle := 1; ; cycle++ {
		b.runCycle(ctx)
		if cycle%b.statsEvery == 0 {
			b.logStats()
		}
		select {
		case <-ctx.Done():
			b.logger.Info("shutting down arbitrage bot")
			b.logStats()
			return
		case <-ticker.C:
		}
	}
}

func (b *Bot) runCycle(ctx context.Context) {
	opportunities := b.scanner.Scan(ctx)
	if len(opportunities) == 0 {
		return
	}
	b.stats.OpportunitiesFound += len(opportunities)
	b.logger.Info("found potential arbitrage opportunities", "count", len(opportunities))

	// Single-flight per cycle: only the best opportunity is executed.
	sort.Slice(opportunities, func(i, j int) bool {
		return opportunities[i].ExpectedProfit > opportunities[j].ExpectedProfit
	})
	best := opportunities[0]

	b.stats.TradesExecuted++
	trade, err := b.executor.Execute(ctx, best)
	if err != nil {
		b.stats.FailedTrades++
		b.logger.Warn("trade execution failed", "opportunity_id", best.ID, "error", err)
		return
	}

	b.stats.SuccessfulTrades++
	b.stats.TotalProfit += trade.ActualProfit
	b.logger.Info("trade successful", "trade_id", trade.ID, "profit", trade.ActualProfit)
	b.monitor.Watch(ctx, *trade)
}

func (b *Bot) logStats() {
	hours := time.Since(b.stats.StartTime).Hours()
	successRate := 0.0
	if b.stats.TradesExecuted > 0 {
		successRate = float64(b.stats.SuccessfulTrades) / float64(b.stats.TradesExecuted) * 100
	}
	profitPerHour := b.stats.TotalProfit
	if hours > 1 {
		profitPerHour = b.stats.TotalProfit / hours
	}
	b.logger.Info("run statistics",
		"runtime_hours", hours,
		"opportunities_found", b.stats.OpportunitiesFound,
		"trades_executed", b.stats.TradesExecuted,
		"successful_trades", b.stats.SuccessfulTrades,
		"failed_trades", b.stats.FailedTrades,
		"total_profit", b.stats.TotalProfit,
		"success_rate_percent", successRate,
		"profit_per_hour", profitPerHour,
	)
}
