package arbitrage

import (
	"context"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Gateway is the slice of the exchange layer the detection pipeline needs.
// *exchange.Manager satisfies it.
type Gateway interface {
	Venues() []string
	GetQuote(ctx context.Context, venue, symbol string) (model.Quote, error)
	GetDepth(ctx context.Context, venue, symbol string, limit int) (model.DepthSnapshot, error)
	TradingFeePercent(venue string) float64
}
