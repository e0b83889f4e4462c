package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/config"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Manager owns the venue registry and the per-venue fee table. It is the
// single gateway handle the core components receive; all venue lookups go
// through it.
type Manager struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]Client
	fees    map[string]float64 // taker fee percent per venue

	streams sync.WaitGroup
}

// NewManager creates an empty Manager. Venues are added with Register.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger:  logger.With("component", "exchange_manager"),
		clients: make(map[string]Client),
		fees:    make(map[string]float64),
	}
}

// NewManagerFromConfig builds a Manager with one client per configured
// exchange. In dry-run mode every client is wrapped in a paper venue that
// simulates balances and fills.
func NewManagerFromConfig(logger *slog.Logger, cfg config.Config) (*Manager, error) {
	retry := RetrySettings{
		Attempts: cfg.Gateway.MaxRetries,
		Delay:    cfg.Gateway.RetryDelay,
		Timeout:  cfg.Gateway.RequestTimeout,
	}

	quoteCurrencies := make([]string, 0, len(cfg.Arbitrage.TradingPairs))
	for _, pair := range cfg.Arbitrage.TradingPairs {
		quoteCurrencies = append(quoteCurrencies, model.QuoteCurrency(pair))
	}

	m := NewManager(logger)
	for name, exCfg := range cfg.Exchanges {
		client, err := NewClient(name, logger, exCfg, retry)
		if err != nil {
			return nil, fmt.Errorf("create client %s: %w", name, err)
		}
		if cfg.Trading.DryRun {
			client = NewPaperClient(client, logger, cfg.Trading.PaperBalance, quoteCurrencies)
		}
		m.Register(client, exCfg.TakerFeePercent)
	}
	return m, nil
}

// Register adds a venue client and its taker fee to the registry.
func (m *Manager) Register(client Client, feePercent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.Name()] = client
	m.fees[client.Name()] = feePercent
	m.logger.Info("registered venue", "venue", client.Name(), "taker_fee_percent", feePercent)
}

// Venues returns the registered venue names in stable order.
func (m *Manager) Venues() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) client(venue string) (Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[venue]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownVenue, venue)
	}
	return c, nil
}

// GetQuote fetches the current quote for a symbol on a venue.
func (m *Manager) GetQuote(ctx context.Context, venue, symbol string) (model.Quote, error) {
	c, err := m.client(venue)
	if err != nil {
		return model.Quote{}, err
	}
	return c.GetQuote(ctx, symbol)
}

// GetDepth fetches order-book depth for a symbol on a venue.
func (m *Manager) GetDepth(ctx context.Context, venue, symbol string, limit int) (model.DepthSnapshot, error) {
	c, err := m.client(venue)
	if err != nil {
		return model.DepthSnapshot{}, err
	}
	return c.GetDepth(ctx, symbol, limit)
}

// GetFreeBalance fetches the free balance of a currency on a venue.
func (m *Manager) GetFreeBalance(ctx context.Context, venue, currency string) (float64, error) {
	c, err := m.client(venue)
	if err != nil {
		return 0, err
	}
	return c.GetFreeBalance(ctx, currency)
}

// PlaceOrder submits an order on a venue.
func (m *Manager) PlaceOrder(ctx context.Context, venue, symbol string, kind model.OrderKind, side model.OrderSide, amount, price float64) (model.Order, error) {
	c, err := m.client(venue)
	if err != nil {
		return model.Order{}, err
	}
	return c.PlaceOrder(ctx, symbol, kind, side, amount, price)
}

// TradingFeePercent returns the configured taker fee for a venue, or 0 for
// an unknown venue.
func (m *Manager) TradingFeePercent(venue string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fees[venue]
}

// StartStreams launches the live quote stream of every venue that supports
// one. Streams stop when ctx is cancelled.
func (m *Manager) StartStreams(ctx context.Context, symbols []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, c := range m.clients {
		s, ok := c.(Streamer)
		if !ok {
			continue
		}
		m.streams.Add(1)
		go func(name string, s Streamer) {
			defer m.streams.Done()
			if err := s.StartStream(ctx, symbols); err != nil {
				m.logger.Error("quote stream terminated", "venue", name, "error", err)
			}
		}(name, s)
	}
}

// CloseAll waits for any running streams and releases every client's
// resources. Call only after all monitors have drained.
func (m *Manager) CloseAll() {
	m.streams.Wait()
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, c := range m.clients {
		if err := c.Close(); err != nil {
			m.logger.Error("failed to close venue client", "venue", name, "error", err)
		} else {
			m.logger.Info("closed venue client", "venue", name)
		}
	}
}
