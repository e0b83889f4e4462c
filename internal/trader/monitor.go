package trader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/config"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Monitor spawns one watcher goroutine per completed trade. Each watcher
// polls the buy venue's price and exits the position via stop-loss or
// take-profit, then removes itself from the registry. Watchers observe ctx
// cancellation at the next poll boundary.
type Monitor struct {
	logger   *slog.Logger
	gw       Gateway
	registry *Registry
	alerter  Alerter
	cfg      config.RiskConfig
}

// NewMonitor creates a new Monitor.
func NewMonitor(logger *slog.Logger, gw Gateway, registry *Registry, alerter Alerter, cfg config.RiskConfig) *Monitor {
	return &Monitor{
		logger:   logger.With("component", "monitor"),
		gw:       gw,
		registry: registry,
		alerter:  alerter,
		cfg:      cfg,
	}
}

// Watch registers the trade's position and starts its watcher goroutine.
func (m *Monitor) Watch(ctx context.Context, trade model.TradeResult) {
	pos := &model.Position{
		TradeID:    trade.ID,
		Symbol:     trade.Symbol,
		Venue:      trade.BuyVenue,
		EntryPrice: trade.BuyPrice,
		Amount:     trade.Amount,
		Status:     model.StatusMonitoring,
	}
	m.registry.Add(pos)
	m.registry.wg.Add(1)
	go func() {
		defer m.registry.wg.Done()
		defer m.registry.Remove(pos.TradeID)
		m.watch(ctx, pos)
	}()
}

func (m *Monitor) watch(ctx context.Context, pos *model.Position) {
	log := m.logger.With("trade_id", pos.TradeID, "symbol", pos.Symbol, "venue", pos.Venue)
	log.Info("monitoring position", "entry_price", pos.EntryPrice, "amount", pos.Amount)

	stopLossPrice := pos.EntryPrice * (1 - m.cfg.StopLossPercent/100)
	takeProfitPrice := pos.EntryPrice * (1 + m.cfg.TakeProfitPercent/100)

	fetchFailures := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown requested, leaving position open", "status", pos.Status)
			return
		case <-time.After(m.cfg.PollInterval):
		}

		quote, err := m.gw.GetQuote(ctx, pos.Venue, pos.Symbol)
		if err != nil {
			fetchFailures++
			log.Warn("price fetch failed", "consecutive_failures", fetchFailures, "error", err)
			// A monitor that cannot see prices must not spin forever.
			if fetchFailures >= m.cfg.MaxFetchRetries {
				pos.Status = model.StatusError
				log.Error("giving up on position after repeated fetch failures")
				if m.alerter != nil {
					m.alerter.Alert(ctx, "Position monitor stopped",
						fmt.Sprintf("Lost price feed for %s on %s after %d attempts; position of %.8f is no longer watched.",
							pos.Symbol, pos.Venue, fetchFailures, pos.Amount))
				}
				return
			}
			continue
		}
		fetchFailures = 0
		currentPrice := quote.Last

		switch {
		case currentPrice <= stopLossPrice:
			log.Warn("stop loss hit", "current_price", currentPrice, "stop_loss_price", stopLossPrice)
			m.liquidate(ctx, log, pos, model.StatusStoppedLoss)
			return
		case currentPrice >= takeProfitPrice:
			log.Info("take profit hit", "current_price", currentPrice, "take_profit_price", takeProfitPrice)
			m.liquidate(ctx, log, pos, model.StatusTakeProfit)
			return
		}
	}
}

// liquidate issues the exiting market sell and records the terminal status.
func (m *Monitor) liquidate(ctx context.Context, log *slog.Logger, pos *model.Position, status model.PositionStatus) {
	order, err := m.gw.PlaceOrder(ctx, pos.Venue, pos.Symbol, model.OrderMarket, model.SideSell, pos.Amount, 0)
	if err != nil {
		pos.Status = model.StatusError
		log.Error("liquidating sell failed", "exit", status, "error", err)
		if m.alerter != nil {
			m.alerter.Alert(ctx, "Position exit failed",
				fmt.Sprintf("Could not sell %.8f %s on %s (%s exit): %v",
					pos.Amount, pos.Symbol, pos.Venue, status, err))
		}
		return
	}
	pos.Status = status
	log.Info("position closed",
		"exit", status,
		"order_id", order.ID,
		"price", order.FilledPrice,
		"amount", order.FilledAmount,
		"pnl", (order.FilledPrice-pos.EntryPrice)*order.FilledAmount,
	)
}
