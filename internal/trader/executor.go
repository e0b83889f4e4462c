package trader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Gateway is the slice of the exchange layer the trading side needs.
// *exchange.Manager satisfies it.
type Gateway interface {
	GetQuote(ctx context.Context, venue, symbol string) (model.Quote, error)
	GetFreeBalance(ctx context.Context, venue, currency string) (float64, error)
	PlaceOrder(ctx context.Context, venue, symbol string, kind model.OrderKind, side model.OrderSide, amount, price float64) (model.Order, error)
}

// OpportunityVerifier re-validates an opportunity immediately before
// execution.
type OpportunityVerifier interface {
	Verify(ctx context.Context, opp model.Opportunity) (bool, string)
}

// Alerter delivers operator-visible alerts. Implementations must be safe for
// concurrent use.
type Alerter interface {
	Alert(ctx context.Context, title, message string)
}

// Executor realizes a verified opportunity as a paired buy/sell. The buy leg
// commits first; if the sell leg then fails, the acquired inventory is
// liquidated back on the buy venue. The caller must not assume a position
// exists unless a TradeResult is returned.
type Executor struct {
	logger   *slog.Logger
	gw       Gateway
	verifier OpportunityVerifier
	alerter  Alerter
}

// NewExecutor creates a new Executor.
func NewExecutor(logger *slog.Logger, gw Gateway, verifier OpportunityVerifier, alerter Alerter) *Executor {
	return &Executor{
		logger:   logger.With("component", "executor"),
		gw:       gw,
		verifier: verifier,
		alerter:  alerter,
	}
}

// Execute attempts to realize the opportunity. A nil error means both legs
// filled and the returned TradeResult is settled. Rejections (stale
// opportunity, insufficient balance) and leg failures are returned as
// errors; after a failed sell leg the compensating liquidation has already
// been attempted.
func (e *Executor) Execute(ctx context.Context, opp model.Opportunity) (*model.TradeResult, error) {
	log := e.logger.With("opportunity_id", opp.ID, "symbol", opp.Symbol)

	valid, reason := e.verifier.Verify(ctx, opp)
	if !valid {
		log.Warn("opportunity no longer valid", "reason", reason)
		return nil, fmt.Errorf("opportunity no longer valid: %s", reason)
	}

	quoteCurrency := model.QuoteCurrency(opp.Symbol)
	balance, err := e.gw.GetFreeBalance(ctx, opp.BuyVenue, quoteCurrency)
	if err != nil {
		return nil, fmt.Errorf("read %s balance on %s: %w", quoteCurrency, opp.BuyVenue, err)
	}
	required := opp.TradeAmount * opp.BuyPrice
	if balance < required {
		log.Warn("insufficient balance for buy leg",
			"venue", opp.BuyVenue, "currency", quoteCurrency,
			"balance", balance, "required", required)
		return nil, fmt.Errorf("%w: %s on %s: %.2f < %.2f",
			model.ErrInsufficientBalance, quoteCurrency, opp.BuyVenue, balance, required)
	}

	buyOrder, err := e.gw.PlaceOrder(ctx, opp.BuyVenue, opp.Symbol, model.OrderMarket, model.SideBuy, opp.TradeAmount, 0)
	if err != nil {
		return nil, fmt.Errorf("buy leg on %s: %w", opp.BuyVenue, err)
	}
	log.Info("buy leg filled", "order_id", buyOrder.ID,
		"price", buyOrder.FilledPrice, "amount", buyOrder.FilledAmount)

	// The sell leg sizes from the actual buy fill so the hedge matches
	// real inventory.
	sellOrder, err := e.gw.PlaceOrder(ctx, opp.SellVenue, opp.Symbol, model.OrderMarket, model.SideSell, buyOrder.FilledAmount, 0)
	if err != nil {
		log.Error("sell leg failed, compensating on buy venue", "error", err)
		e.compensate(ctx, opp.BuyVenue, opp.Symbol, buyOrder.FilledAmount)
		return nil, fmt.Errorf("sell leg on %s: %w", opp.SellVenue, err)
	}
	log.Info("sell leg filled", "order_id", sellOrder.ID,
		"price", sellOrder.FilledPrice, "amount", sellOrder.FilledAmount)

	actualProfit := sellOrder.FilledPrice*sellOrder.FilledAmount - buyOrder.FilledPrice*buyOrder.FilledAmount
	result := &model.TradeResult{
		ID:             buyOrder.ID + "_" + sellOrder.ID,
		Symbol:         opp.Symbol,
		BuyVenue:       opp.BuyVenue,
		SellVenue:      opp.SellVenue,
		BuyPrice:       buyOrder.FilledPrice,
		SellPrice:      sellOrder.FilledPrice,
		Amount:         buyOrder.FilledAmount,
		ExpectedProfit: opp.ExpectedProfit,
		ActualProfit:   actualProfit,
		Timestamp:      sellOrder.Timestamp,
		Status:         "completed",
	}
	log.Info("arbitrage trade completed",
		"trade_id", result.ID,
		"expected_profit", result.ExpectedProfit,
		"actual_profit", result.ActualProfit,
	)
	return result, nil
}

// compensate liquidates inventory acquired by a buy leg whose sell leg
// failed. Best effort: a failure here means real unhedged exposure and is
// surfaced to the operator instead of being retried in a loop.
func (e *Executor) compensate(ctx context.Context, venue, symbol string, amount float64) {
	order, err := e.gw.PlaceOrder(ctx, venue, symbol, model.OrderMarket, model.SideSell, amount, 0)
	if err != nil {
		e.logger.Error("FATAL: compensating sell failed, unhedged inventory remains",
			"venue", venue, "symbol", symbol, "amount", amount, "error", err)
		if e.alerter != nil {
			e.alerter.Alert(ctx, "Unhedged position",
				fmt.Sprintf("Compensating sell of %.8f %s on %s failed: %v. Manual intervention required.",
					amount, symbol, venue, err))
		}
		return
	}
	e.logger.Warn("compensating sell completed",
		"venue", venue, "symbol", symbol, "order_id", order.ID,
		"price", order.FilledPrice, "amount", order.FilledAmount)
}
