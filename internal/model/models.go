package model

import (
	"strings"
	"time"
)

// Quote is a top-of-book snapshot for a symbol on a single venue. Quotes are
// produced fresh on every scan and never mutated.
type Quote struct {
	Venue     string
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Volume    float64 // available base-asset volume
	Timestamp time.Time
}

// PriceLevel is one order-book level.
type PriceLevel struct {
	Price float64
	Size  float64
}

// DepthSnapshot holds order-book depth for a symbol on a single venue.
// Asks are sorted by ascending price, bids by descending price.
type DepthSnapshot struct {
	Venue     string
	Symbol    string
	Asks      []PriceLevel
	Bids      []PriceLevel
	Timestamp time.Time
}

// BestAsk returns the lowest ask level.
func (d DepthSnapshot) BestAsk() (PriceLevel, bool) {
	if len(d.Asks) == 0 {
		return PriceLevel{}, false
	}
	return d.Asks[0], true
}

// BestBid returns the highest bid level.
func (d DepthSnapshot) BestBid() (PriceLevel, bool) {
	if len(d.Bids) == 0 {
		return PriceLevel{}, false
	}
	return d.Bids[0], true
}

// Opportunity is a directed cross-venue price spread that remains profitable
// after both legs' fees. Created by the scanner, read-only afterwards, and
// consumed at most once by the executor.
type Opportunity struct {
	ID              string
	Symbol          string
	BuyVenue        string
	SellVenue       string
	BuyPrice        float64 // buy venue ask at scan time
	SellPrice       float64 // sell venue bid at scan time
	TradeAmount     float64 // sized amount in base units
	GrossProfitPct  float64
	NetProfitPct    float64 // gross minus both venues' fees
	ExpectedProfit  float64 // quote currency, net of proportional fees
	TotalFeesPct    float64
	BuyVenueVolume  float64
	SellVenueVolume float64
	Timestamp       time.Time
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderKind distinguishes market and limit orders.
type OrderKind string

const (
	OrderMarket OrderKind = "market"
	OrderLimit  OrderKind = "limit"
)

// Order is the fill report returned by a venue for a placed order.
type Order struct {
	ID           string
	Venue        string
	Symbol       string
	Side         OrderSide
	Kind         OrderKind
	FilledPrice  float64
	FilledAmount float64
	Status       string
	Timestamp    time.Time
}

// TradeResult records a fully settled arbitrage trade (both legs filled).
type TradeResult struct {
	ID             string // "<buyOrderID>_<sellOrderID>"
	Symbol         string
	BuyVenue       string
	SellVenue      string
	BuyPrice       float64
	SellPrice      float64
	Amount         float64
	ExpectedProfit float64
	ActualProfit   float64
	Timestamp      time.Time
	Status         string // always "completed"
}

// PositionStatus is the lifecycle state of a monitored position.
type PositionStatus string

const (
	StatusMonitoring  PositionStatus = "monitoring"
	StatusStoppedLoss PositionStatus = "stopped_loss"
	StatusTakeProfit  PositionStatus = "take_profit"
	// StatusError marks a monitor that gave up after repeated quote
	// fetch failures.
	StatusError PositionStatus = "error"
)

// Position is the inventory left on the buy venue after a completed trade,
// watched by a single monitor goroutine until a terminal status.
type Position struct {
	TradeID    string
	Symbol     string
	Venue      string // buy venue
	EntryPrice float64
	Amount     float64
	Status     PositionStatus
}

// QuoteCurrency returns the quote leg of a "BASE/QUOTE" symbol, e.g. "USDT"
// for "BTC/USDT". Returns an empty string for malformed symbols.
func QuoteCurrency(symbol string) string {
	_, quote, _ := strings.Cut(symbol, "/")
	return quote
}

// BaseCurrency returns the base leg of a "BASE/QUOTE" symbol.
func BaseCurrency(symbol string) string {
	base, _, _ := strings.Cut(symbol, "/")
	return base
}
