package exchange

import (
	"context"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Client defines the standard interface for all venue clients. Remote calls
// are retried internally up to the configured attempt count with a fixed
// delay between attempts; an error is returned only once retries are
// exhausted.
type Client interface {
	Name() string

	// GetQuote returns the current top-of-book quote for a symbol.
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)

	// GetDepth returns up to limit levels of order-book depth per side.
	GetDepth(ctx context.Context, symbol string, limit int) (model.DepthSnapshot, error)

	// GetFreeBalance returns the free balance of a single currency.
	GetFreeBalance(ctx context.Context, currency string) (float64, error)

	// PlaceOrder submits an order and returns its fill report. price is
	// only meaningful for limit orders.
	PlaceOrder(ctx context.Context, symbol string, kind model.OrderKind, side model.OrderSide, amount, price float64) (model.Order, error)

	// Close releases any resources held by the client.
	Close() error
}

// Streamer is implemented by clients that can keep their quotes fresh from a
// live feed instead of polling.
type Streamer interface {
	// StartStream blocks until ctx is cancelled, maintaining the client's
	// internal quote cache for the given symbols.
	StartStream(ctx context.Context, symbols []string) error
}
