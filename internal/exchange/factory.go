package exchange

import (
	"fmt"
	"log/slog"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/config"
)

// NewClient creates a new venue client based on the given name and
// configuration.
func NewClient(name string, logger *slog.Logger, cfg config.ExchangeConfig, retry RetrySettings) (Client, error) {
	switch name {
	case "kraken":
		return NewKrakenClient(logger, cfg.APIKey, cfg.APISecret, retry), nil
	case "binance":
		return NewBinanceClient(logger, cfg.APIKey, cfg.APISecret, retry), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
}
