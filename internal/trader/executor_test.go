package trader

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) GetQuote(ctx context.Context, venue, symbol string) (model.Quote, error) {
	args := m.Called(ctx, venue, symbol)
	return args.Get(0).(model.Quote), args.Error(1)
}

func (m *MockGateway) GetFreeBalance(ctx context.Context, venue, currency string) (float64, error) {
	args := m.Called(ctx, venue, currency)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockGateway) PlaceOrder(ctx context.Context, venue, symbol string, kind model.OrderKind, side model.OrderSide, amount, price float64) (model.Order, error) {
	args := m.Called(ctx, venue, symbol, kind, side, amount, price)
	return args.Get(0).(model.Order), args.Error(1)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, opp model.Opportunity) (bool, string) {
	args := m.Called(ctx, opp)
	return args.Bool(0), args.String(1)
}

type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) Alert(ctx context.Context, title, message string) {
	m.Called(ctx, title, message)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testOpportunity() model.Opportunity {
	return model.Opportunity{
		ID:             "opp-1",
		Symbol:         "BTC/USDT",
		BuyVenue:       "a",
		SellVenue:      "b",
		BuyPrice:       100,
		SellPrice:      102,
		TradeAmount:    5,
		ExpectedProfit: 9.9,
	}
}

func order(id, venue string, side model.OrderSide, price, amount float64) model.Order {
	return model.Order{
		ID: id, Venue: venue, Symbol: "BTC/USDT", Side: side, Kind: model.OrderMarket,
		FilledPrice: price, FilledAmount: amount, Status: "closed", Timestamp: time.Now().UTC(),
	}
}

func TestExecutor_AbortsWhenVerificationFails(t *testing.T) {
	gw := new(MockGateway)
	verifier := new(MockVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything).Return(false, "spread no longer profitable")

	e := NewExecutor(testLogger(), gw, verifier, nil)
	result, err := e.Execute(context.Background(), testOpportunity())

	assert.Nil(t, result)
	assert.ErrorContains(t, err, "no longer valid")
	gw.AssertNotCalled(t, "PlaceOrder")
}

func TestExecutor_AbortsOnInsufficientBalance(t *testing.T) {
	gw := new(MockGateway)
	verifier := new(MockVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything).Return(true, "opportunity verified")
	// Need 5 * 100 = 500 USDT.
	gw.On("GetFreeBalance", mock.Anything, "a", "USDT").Return(499.0, nil)

	e := NewExecutor(testLogger(), gw, verifier, nil)
	result, err := e.Execute(context.Background(), testOpportunity())

	assert.Nil(t, result)
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)
	gw.AssertNotCalled(t, "PlaceOrder")
}

func TestExecutor_AbortsWhenBuyLegFails(t *testing.T) {
	gw := new(MockGateway)
	verifier := new(MockVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything).Return(true, "opportunity verified")
	gw.On("GetFreeBalance", mock.Anything, "a", "USDT").Return(1000.0, nil)
	gw.On("PlaceOrder", mock.Anything, "a", "BTC/USDT", model.OrderMarket, model.SideBuy, 5.0, 0.0).
		Return(model.Order{}, errors.New("order rejected"))

	e := NewExecutor(testLogger(), gw, verifier, nil)
	result, err := e.Execute(context.Background(), testOpportunity())

	assert.Nil(t, result)
	assert.ErrorContains(t, err, "buy leg")
	// No inventory was acquired, so nothing to compensate.
	gw.AssertNumberOfCalls(t, "PlaceOrder", 1)
}

func TestExecutor_CompensatesWhenSellLegFails(t *testing.T) {
	gw := new(MockGateway)
	verifier := new(MockVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything).Return(true, "opportunity verified")
	gw.On("GetFreeBalance", mock.Anything, "a", "USDT").Return(1000.0, nil)
	// Buy fills 4.9 of the requested 5.
	gw.On("PlaceOrder", mock.Anything, "a", "BTC/USDT", model.OrderMarket, model.SideBuy, 5.0, 0.0).
		Return(order("buy-1", "a", model.SideBuy, 100.1, 4.9), nil)
	gw.On("PlaceOrder", mock.Anything, "b", "BTC/USDT", model.OrderMarket, model.SideSell, 4.9, 0.0).
		Return(model.Order{}, errors.New("venue unavailable"))
	// The compensating sell goes back to the buy venue with the exact
	// filled buy amount.
	gw.On("PlaceOrder", mock.Anything, "a", "BTC/USDT", model.OrderMarket, model.SideSell, 4.9, 0.0).
		Return(order("comp-1", "a", model.SideSell, 100.0, 4.9), nil)

	e := NewExecutor(testLogger(), gw, verifier, nil)
	result, err := e.Execute(context.Background(), testOpportunity())

	assert.Nil(t, result)
	assert.ErrorContains(t, err, "sell leg")
	gw.AssertExpectations(t)
}

func TestExecutor_AlertsWhenCompensationFails(t *testing.T) {
	gw := new(MockGateway)
	verifier := new(MockVerifier)
	alerter := new(MockAlerter)
	verifier.On("Verify", mock.Anything, mock.Anything).Return(true, "opportunity verified")
	alerter.On("Alert", mock.Anything, "Unhedged position", mock.Anything).Once()
	gw.On("GetFreeBalance", mock.Anything, "a", "USDT").Return(1000.0, nil)
	gw.On("PlaceOrder", mock.Anything, "a", "BTC/USDT", model.OrderMarket, model.SideBuy, 5.0, 0.0).
		Return(order("buy-1", "a", model.SideBuy, 100.0, 5.0), nil)
	gw.On("PlaceOrder", mock.Anything, "b", "BTC/USDT", model.OrderMarket, model.SideSell, 5.0, 0.0).
		Return(model.Order{}, errors.New("venue unavailable"))
	gw.On("PlaceOrder", mock.Anything, "a", "BTC/USDT", model.OrderMarket, model.SideSell, 5.0, 0.0).
		Return(model.Order{}, errors.New("still unavailable"))

	e := NewExecutor(testLogger(), gw, verifier, alerter)
	result, err := e.Execute(context.Background(), testOpportunity())

	assert.Nil(t, result)
	assert.Error(t, err)
	alerter.AssertExpectations(t)
}

func TestExecutor_SuccessBuildsTradeResult(t *testing.T) {
	gw := new(MockGateway)
	verifier := new(MockVerifier)
	verifier.On("Verify", mock.Anything, mock.Anything).Return(true, "opportunity verified")
	gw.On("GetFreeBalance", mock.Anything, "a", "USDT").Return(1000.0, nil)
	gw.On("PlaceOrder", mock.Anything, "a", "BTC/USDT", model.OrderMarket, model.SideBuy, 5.0, 0.0).
		Return(order("buy-1", "a", model.SideBuy, 100.2, 5.0), nil)
	gw.On("PlaceOrder", mock.Anything, "b", "BTC/USDT", model.OrderMarket, model.SideSell, 5.0, 0.0).
		Return(order("sell-1", "b", model.SideSell, 101.9, 5.0), nil)

	e := NewExecutor(testLogger(), gw, verifier, nil)
	result, err := e.Execute(context.Background(), testOpportunity())

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, "buy-1_sell-1", result.ID)
	assert.Equal(t, "a", result.BuyVenue)
	assert.Equal(t, "b", result.SellVenue)
	assert.Equal(t, 100.2, result.BuyPrice)
	assert.Equal(t, 101.9, result.SellPrice)
	assert.Equal(t, 5.0, result.Amount)
	assert.Equal(t, 9.9, result.ExpectedProfit)
	assert.InDelta(t, (101.9-100.2)*5, result.ActualProfit, 1e-9)
	assert.Equal(t, "completed", result.Status)
}
