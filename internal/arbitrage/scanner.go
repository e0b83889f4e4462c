package arbitrage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/config"
	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

// Scanner finds cross-venue price spreads that stay profitable after both
// legs' trading fees.
type Scanner struct {
	logger *slog.Logger
	gw     Gateway
	cfg    config.ArbitrageConfig
}

// NewScanner creates a new Scanner.
func NewScanner(logger *slog.Logger, gw Gateway, cfg config.ArbitrageConfig) *Scanner {
	return &Scanner{
		logger: logger.With("component", "scanner"),
		gw:     gw,
		cfg:    cfg,
	}
}

// Scan collects quotes for every tracked symbol from every venue and returns
// the profitable directed venue pairs. A venue that fails to quote is
// excluded from that symbol's comparison; a symbol with fewer than two
// quotes is skipped. Scan never fails as a whole.
func (s *Scanner) Scan(ctx context.Context) []model.Opportunity {
	var opportunities []model.Opportunity
	for _, symbol := range s.cfg.TradingPairs {
		quotes := s.gatherQuotes(ctx, symbol)
		if len(quotes) < 2 {
			s.logger.Debug("not enough quotes for symbol", "symbol", symbol, "quotes", len(quotes))
			continue
		}
		opportunities = append(opportunities, s.analyze(symbol, quotes)...)
	}
	return opportunities
}

// gatherQuotes requests one quote per venue concurrently and joins the
// results. Failed venues yield no entry rather than aborting the join.
func (s *Scanner) gatherQuotes(ctx context.Context, symbol string) []model.Quote {
	venues := s.gw.Venues()
	results := make([]*model.Quote, len(venues))

	var wg sync.WaitGroup
	for i, venue := range venues {
		wg.Add(1)
		go func(i int, venue string) {
			defer wg.Done()
			quote, err := s.gw.GetQuote(ctx, venue, symbol)
			if err != nil {
				s.logger.Warn("failed to fetch quote", "venue", venue, "symbol", symbol, "error", err)
				return
			}
			if quote.Bid <= 0 || quote.Ask <= 0 {
				s.logger.Warn("discarding malformed quote", "venue", venue, "symbol", symbol,
					"bid", quote.Bid, "ask", quote.Ask)
				return
			}
			results[i] = &quote
		}(i, venue)
	}
	wg.Wait()

	quotes := make([]model.Quote, 0, len(venues))
	for _, q := range results {
		if q != nil {
			quotes = append(quotes, *q)
		}
	}
	return quotes
}

// analyze evaluates every ordered pair of distinct venues. Both directions
// are checked independently; fees and volumes can make one side profitable
// and the other not.
func (s *Scanner) analyze(symbol string, quotes []model.Quote) []model.Opportunity {
	var found []model.Opportunity
	for _, buy := range quotes {
		for _, sell := range quotes {
			if buy.Venue == sell.Venue {
				continue
			}
			if opp, ok := s.evaluate(symbol, buy, sell); ok {
				found = append(found, opp)
			}
		}
	}
	return found
}

func (s *Scanner) evaluate(symbol string, buy, sell model.Quote) (model.Opportunity, bool) {
	buyPrice := buy.Ask
	sellPrice := sell.Bid

	grossPct := (sellPrice - buyPrice) / buyPrice * 100
	buyFee := s.gw.TradingFeePercent(buy.Venue)
	sellFee := s.gw.TradingFeePercent(sell.Venue)
	totalFeesPct := buyFee + sellFee
	netPct := grossPct - totalFeesPct

	if netPct < s.cfg.MinProfitThreshold {
		return model.Opportunity{}, false
	}

	// Size against the smaller venue volume and the notional cap.
	maxVolume := buy.Volume
	if sell.Volume < maxVolume {
		maxVolume = sell.Volume
	}
	amount := s.cfg.MaxTradeNotional / buyPrice
	if maxVolume < amount {
		amount = maxVolume
	}
	if amount <= 0 {
		return model.Opportunity{}, false
	}

	expectedProfit := amount*sellPrice - amount*buyPrice
	expectedProfit -= amount*buyPrice*buyFee/100 + amount*sellPrice*sellFee/100

	opp := model.Opportunity{
		ID:              uuid.New().String(),
		Symbol:          symbol,
		BuyVenue:        buy.Venue,
		SellVenue:       sell.Venue,
		BuyPrice:        buyPrice,
		SellPrice:       sellPrice,
		TradeAmount:     amount,
		GrossProfitPct:  grossPct,
		NetProfitPct:    netPct,
		ExpectedProfit:  expectedProfit,
		TotalFeesPct:    totalFeesPct,
		BuyVenueVolume:  buy.Volume,
		SellVenueVolume: sell.Volume,
		Timestamp:       time.Now().UTC(),
	}
	s.logger.Info("opportunity found",
		"id", opp.ID,
		"symbol", symbol,
		"buy_venue", opp.BuyVenue,
		"sell_venue", opp.SellVenue,
		"net_profit_pct", netPct,
		"expected_profit", expectedProfit,
		"amount", amount,
	)
	return opp, true
}
