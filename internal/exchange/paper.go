package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// PaperClient wraps a live client for market data while simulating account
// balances and order fills. Orders fill in full at the current top of book.
type PaperClient struct {
	live   Client
	logger *slog.Logger

	mu       sync.Mutex
	balances map[string]float64
}

// NewPaperClient creates a dry-run venue backed by live market data. Every
// quote currency starts with startingBalance.
func NewPaperClient(live Client, logger *slog.Logger, startingBalance float64, quoteCurrencies []string) *PaperClient {
	balances := make(map[string]float64, len(quoteCurrencies))
	for _, c := range quoteCurrencies {
		balances[c] = startingBalance
	}
	return &PaperClient{
		live:     live,
		logger:   logger.With("venue", live.Name(), "mode", "paper"),
		balances: balances,
	}
}

func (p *PaperClient) Name() string {
	return p.live.Name()
}

func (p *PaperClient) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	return p.live.GetQuote(ctx, symbol)
}

func (p *PaperClient) GetDepth(ctx context.Context, symbol string, limit int) (model.DepthSnapshot, error) {
	return p.live.GetDepth(ctx, symbol, limit)
}

func (p *PaperClient) GetFreeBalance(ctx context.Context, currency string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[currency], nil
}

// PlaceOrder simulates a fill at the live top of book: buys fill at the ask,
// sells at the bid. Limit orders fill at the limit price.
func (p *PaperClient) PlaceOrder(ctx context.Context, symbol string, kind model.OrderKind, side model.OrderSide, amount, price float64) (model.Order, error) {
	if kind == model.OrderLimit && price <= 0 {
		return model.Order{}, model.ErrPriceRequired
	}

	fillPrice := price
	if kind == model.OrderMarket {
		quote, err := p.live.GetQuote(ctx, symbol)
		if err != nil {
			return model.Order{}, fmt.Errorf("paper: quote for fill price: %w", err)
		}
		if side == model.SideBuy {
			fillPrice = quote.Ask
		} else {
			fillPrice = quote.Bid
		}
	}

	base := model.BaseCurrency(symbol)
	quoteCur := model.QuoteCurrency(symbol)
	notional := amount * fillPrice

	p.mu.Lock()
	defer p.mu.Unlock()
	if side == model.SideBuy {
		if p.balances[quoteCur] < notional {
			return model.Order{}, fmt.Errorf("paper: %w: %s %.2f < %.2f", model.ErrInsufficientBalance, quoteCur, p.balances[quoteCur], notional)
		}
		p.balances[quoteCur] -= notional
		p.balances[base] += amount
	} else {
		if p.balances[base] < amount {
			return model.Order{}, fmt.Errorf("paper: %w: %s %.8f < %.8f", model.ErrInsufficientBalance, base, p.balances[base], amount)
		}
		p.balances[base] -= amount
		p.balances[quoteCur] += notional
	}

	order := model.Order{
		ID:           uuid.New().String(),
		Venue:        p.Name(),
		Symbol:       symbol,
		Side:         side,
		Kind:         kind,
		FilledPrice:  fillPrice,
		FilledAmount: amount,
		Status:       "closed",
		Timestamp:    time.Now().UTC(),
	}
	p.logger.Info("simulated fill",
		"order_id", order.ID,
		"symbol", symbol,
		"side", side,
		"amount", amount,
		"price", fillPrice,
	)
	return order, nil
}

func (p *PaperClient) Close() error {
	return p.live.Close()
}

// StartStream delegates to the live client when it supports streaming.
func (p *PaperClient) StartStream(ctx context.Context, symbols []string) error {
	if s, ok := p.live.(Streamer); ok {
		return s.StartStream(ctx, symbols)
	}
	return nil
}
