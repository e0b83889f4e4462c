package exchange

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// stubClient is a minimal in-memory venue for manager and paper tests.
type stubClient struct {
	name  string
	quote model.Quote
	depth model.DepthSnapshot
}

func (s *stubClient) Name() string { return s.name }

func (s *stubClient) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	return s.quote, nil
}

func (s *stubClient) GetDepth(ctx context.Context, symbol string, limit int) (model.DepthSnapshot, error) {
	return s.depth, nil
}

func (s *stubClient) GetFreeBalance(ctx context.Context, currency string) (float64, error) {
	return 0, nil
}

func (s *stubClient) PlaceOrder(ctx context.Context, symbol string, kind model.OrderKind, side model.OrderSide, amount, price float64) (model.Order, error) {
	return model.Order{}, nil
}

func (s *stubClient) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestManager_VenuesAndFees(t *testing.T) {
	m := NewManager(testLogger())
	m.Register(&stubClient{name: "kraken"}, 0.26)
	m.Register(&stubClient{name: "binance"}, 0.1)

	assert.Equal(t, []string{"binance", "kraken"}, m.Venues())
	assert.Equal(t, 0.26, m.TradingFeePercent("kraken"))
	assert.Equal(t, 0.1, m.TradingFeePercent("binance"))
	// Unknown venues default to zero fee.
	assert.Equal(t, 0.0, m.TradingFeePercent("coinbase"))
}

func TestManager_UnknownVenueErrors(t *testing.T) {
	m := NewManager(testLogger())
	m.Register(&stubClient{name: "kraken"}, 0.26)

	_, err := m.GetQuote(context.Background(), "coinbase", "BTC/USDT")
	assert.ErrorIs(t, err, model.ErrUnknownVenue)

	_, err = m.PlaceOrder(context.Background(), "coinbase", "BTC/USDT", model.OrderMarket, model.SideBuy, 1, 0)
	assert.ErrorIs(t, err, model.ErrUnknownVenue)
}

func TestManager_RoutesToRegisteredClient(t *testing.T) {
	quote := model.Quote{Venue: "kraken", Symbol: "BTC/USDT", Bid: 100, Ask: 101}
	m := NewManager(testLogger())
	m.Register(&stubClient{name: "kraken", quote: quote}, 0.26)

	got, err := m.GetQuote(context.Background(), "kraken", "BTC/USDT")
	assert.NoError(t, err)
	assert.Equal(t, quote, got)
}
