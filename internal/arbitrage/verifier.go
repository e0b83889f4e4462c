package arbitrage

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// slippageTolerance is the allowed price deviation when summing executable
// depth against the opportunity's scan-time prices.
const slippageTolerance = 0.001

// Verifier re-checks an opportunity against live order-book depth just
// before execution. Scan-time quotes are stale by the time execution is
// attempted; this is the single point enforcing that trades act on current
// market state.
type Verifier struct {
	logger     *slog.Logger
	gw         Gateway
	minProfit  float64
	depthLimit int
}

// NewVerifier creates a new Verifier.
func NewVerifier(logger *slog.Logger, gw Gateway, minProfitThreshold float64, depthLimit int) *Verifier {
	return &Verifier{
		logger:     logger.With("component", "verifier"),
		gw:         gw,
		minProfit:  minProfitThreshold,
		depthLimit: depthLimit,
	}
}

// Verify reports whether the opportunity is still actionable and why not if
// it isn't. It fails closed: any depth fetch failure invalidates the
// opportunity.
func (v *Verifier) Verify(ctx context.Context, opp model.Opportunity) (bool, string) {
	var buyBook, sellBook model.DepthSnapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		buyBook, err = v.gw.GetDepth(gctx, opp.BuyVenue, opp.Symbol, v.depthLimit)
		return err
	})
	g.Go(func() error {
		var err error
		sellBook, err = v.gw.GetDepth(gctx, opp.SellVenue, opp.Symbol, v.depthLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		v.logger.Warn("depth fetch failed", "opportunity_id", opp.ID, "error", err)
		return false, "failed to fetch order books"
	}

	// Executable volume within the slippage window on each side.
	buyAvailable := 0.0
	for _, lvl := range buyBook.Asks {
		if lvl.Price <= opp.BuyPrice*(1+slippageTolerance) {
			buyAvailable += lvl.Size
		}
	}
	sellAvailable := 0.0
	for _, lvl := range sellBook.Bids {
		if lvl.Price >= opp.SellPrice*(1-slippageTolerance) {
			sellAvailable += lvl.Size
		}
	}

	if buyAvailable < opp.TradeAmount {
		return false, fmt.Sprintf("insufficient buy volume: %.8f < %.8f", buyAvailable, opp.TradeAmount)
	}
	if sellAvailable < opp.TradeAmount {
		return false, fmt.Sprintf("insufficient sell volume: %.8f < %.8f", sellAvailable, opp.TradeAmount)
	}

	// The spread may have decayed since scan time; re-check top of book.
	bestAsk, okAsk := buyBook.BestAsk()
	bestBid, okBid := sellBook.BestBid()
	if !okAsk || !okBid {
		return false, "order book side is empty"
	}
	currentSpread := (bestBid.Price - bestAsk.Price) / bestAsk.Price * 100
	if currentSpread < v.minProfit {
		return false, fmt.Sprintf("spread no longer profitable: %.4f%% < %.4f%%", currentSpread, v.minProfit)
	}

	return true, "opportunity verified"
}
