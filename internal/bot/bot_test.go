package bot

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

type MockScanner struct {
	mock.Mock
}

func (m *MockScanner) Scan(ctx context.Context) []model.Opportunity {
	args := m.Called(ctx)
	return args.Get(0).([]model.Opportunity)
}

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, opp model.Opportunity) (*model.TradeResult, error) {
	args := m.Called(ctx, opp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TradeResult), args.Error(1)
}

type MockMonitor struct {
	mock.Mock
}

func (m *MockMonitor) Watch(ctx context.Context, trade model.TradeResult) {
	m.Called(ctx, trade)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// runOneCycle cancels before Run's first tick so exactly one cycle executes.
func runOneCycle(b *Bot) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Run(ctx)
}

func TestBot_ExecutesBestOpportunityAndSpawnsMonitor(t *testing.T) {
	small := model.Opportunity{ID: "small", ExpectedProfit: 1.5}
	big := model.Opportunity{ID: "big", ExpectedProfit: 7.2}
	trade := &model.TradeResult{ID: "t-1", ActualProfit: 6.9}

	scanner := new(MockScanner)
	executor := new(MockExecutor)
	monitor := new(MockMonitor)
	scanner.On("Scan", mock.Anything).Return([]model.Opportunity{small, big})
	executor.On("Execute", mock.Anything, big).Return(trade, nil).Once()
	monitor.On("Watch", mock.Anything, *trade).Once()

	b := New(testLogger(), scanner, executor, monitor, time.Hour, 1)
	runOneCycle(b)

	executor.AssertExpectations(t)
	monitor.AssertExpectations(t)
	assert.Equal(t, 2, b.stats.OpportunitiesFound)
	assert.Equal(t, 1, b.stats.SuccessfulTrades)
	assert.InDelta(t, 6.9, b.stats.TotalProfit, 1e-9)
}

func TestBot_FailedExecutionDoesNotSpawnMonitor(t *testing.T) {
	scanner := new(MockScanner)
	executor := new(MockExecutor)
	monitor := new(MockMonitor)
	scanner.On("Scan", mock.Anything).Return([]model.Opportunity{{ID: "only", ExpectedProfit: 2}})
	executor.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("opportunity no longer valid")).Once()

	b := New(testLogger(), scanner, executor, monitor, time.Hour, 1)
	runOneCycle(b)

	monitor.AssertNotCalled(t, "Watch")
	assert.Equal(t, 1, b.stats.FailedTrades)
	assert.Equal(t, 0, b.stats.SuccessfulTrades)
}

func TestBot_EmptyScanDoesNothing(t *testing.T) {
	scanner := new(MockScanner)
	executor := new(MockExecutor)
	monitor := new(MockMonitor)
	scanner.On("Scan", mock.Anything).Return([]model.Opportunity{})

	b := New(testLogger(), scanner, executor, monitor, time.Hour, 1)
	runOneCycle(b)

	executor.AssertNotCalled(t, "Execute")
	assert.Equal(t, 0, b.stats.TradesExecuted)
}
