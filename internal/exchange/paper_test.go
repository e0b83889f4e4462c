package exchange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

func paperVenue() *PaperClient {
	live := &stubClient{
		name:  "kraken",
		quote: model.Quote{Venue: "kraken", Symbol: "BTC/USDT", Bid: 99.9, Ask: 100.1, Last: 100},
	}
	return NewPaperClient(live, testLogger(), 1000, []string{"USDT"})
}

func TestPaperClient_BuyFillsAtAskAndMovesBalances(t *testing.T) {
	p := paperVenue()
	ctx := context.Background()

	order, err := p.PlaceOrder(ctx, "BTC/USDT", model.OrderMarket, model.SideBuy, 2, 0)
	assert.NoError(t, err)
	assert.Equal(t, 100.1, order.FilledPrice)
	assert.Equal(t, 2.0, order.FilledAmount)
	assert.NotEmpty(t, order.ID)

	usdt, _ := p.GetFreeBalance(ctx, "USDT")
	btc, _ := p.GetFreeBalance(ctx, "BTC")
	assert.InDelta(t, 1000-2*100.1, usdt, 1e-9)
	assert.InDelta(t, 2.0, btc, 1e-9)
}

func TestPaperClient_SellFillsAtBid(t *testing.T) {
	p := paperVenue()
	ctx := context.Background()

	_, err := p.PlaceOrder(ctx, "BTC/USDT", model.OrderMarket, model.SideBuy, 2, 0)
	assert.NoError(t, err)

	order, err := p.PlaceOrder(ctx, "BTC/USDT", model.OrderMarket, model.SideSell, 2, 0)
	assert.NoError(t, err)
	assert.Equal(t, 99.9, order.FilledPrice)

	btc, _ := p.GetFreeBalance(ctx, "BTC")
	assert.InDelta(t, 0.0, btc, 1e-9)
}

func TestPaperClient_RejectsOverdraft(t *testing.T) {
	p := paperVenue()
	ctx := context.Background()

	// 20 * 100.1 is over the 1000 USDT starting balance.
	_, err := p.PlaceOrder(ctx, "BTC/USDT", model.OrderMarket, model.SideBuy, 20, 0)
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)

	// Selling base we never bought is rejected too.
	_, err = p.PlaceOrder(ctx, "BTC/USDT", model.OrderMarket, model.SideSell, 1, 0)
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)
}

func TestPaperClient_LimitOrderRequiresPrice(t *testing.T) {
	p := paperVenue()
	_, err := p.PlaceOrder(context.Background(), "BTC/USDT", model.OrderLimit, model.SideBuy, 1, 0)
	assert.ErrorIs(t, err, model.ErrPriceRequired)
}
