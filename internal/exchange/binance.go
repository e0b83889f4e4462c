package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

const (
	binanceAPIBaseURL = "https://api.binance.com"
	binanceWSBaseURL  = "wss://stream.binance.com:9443/stream"

	// Quotes older than this are refetched over REST even when the
	// stream is running.
	binanceQuoteMaxAge = 3 * time.Second
)

// BinanceClient implements the Client interface for Binance. Public market
// data is served from the websocket ticker cache when fresh, falling back to
// REST; account and order calls are signed REST requests.
type BinanceClient struct {
	logger     *slog.Logger
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	retry      RetrySettings
	baseURL    string
	wsURL      string

	mu    sync.RWMutex
	cache map[string]model.Quote // keyed by "BASE/QUOTE" symbol
}

// NewBinanceClient creates a new BinanceClient.
func NewBinanceClient(logger *slog.Logger, apiKey, apiSecret string, retry RetrySettings) *BinanceClient {
	return &BinanceClient{
		logger:     logger.With("venue", "binance"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: retry.Timeout},
		retry:      retry,
		baseURL:    binanceAPIBaseURL,
		wsURL:      binanceWSBaseURL,
		cache:      make(map[string]model.Quote),
	}
}

func (b *BinanceClient) Name() string {
	return "binance"
}

// binanceMarket converts "BTC/USDT" to Binance's "BTCUSDT".
func binanceMarket(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}

// GetQuote returns the freshest quote available: the streamed cache entry if
// recent enough, otherwise the 24h ticker over REST.
func (b *BinanceClient) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	b.mu.RLock()
	cached, ok := b.cache[symbol]
	b.mu.RUnlock()
	if ok && time.Since(cached.Timestamp) < binanceQuoteMaxAge {
		return cached, nil
	}

	var quote model.Quote
	err := withRetry(ctx, b.logger, b.retry, "get_quote", func(ctx context.Context) error {
		var resp struct {
			BidPrice  string `json:"bidPrice"`
			AskPrice  string `json:"askPrice"`
			LastPrice string `json:"lastPrice"`
			Volume    string `json:"volume"`
		}
		q := url.Values{"symbol": {binanceMarket(symbol)}}
		if err := b.public(ctx, "/api/v3/ticker/24hr", q, &resp); err != nil {
			return err
		}
		bid, err := strconv.ParseFloat(resp.BidPrice, 64)
		if err != nil {
			return fmt.Errorf("parse bid: %w", err)
		}
		ask, err := strconv.ParseFloat(resp.AskPrice, 64)
		if err != nil {
			return fmt.Errorf("parse ask: %w", err)
		}
		last, err := strconv.ParseFloat(resp.LastPrice, 64)
		if err != nil {
			return fmt.Errorf("parse last: %w", err)
		}
		volume, err := strconv.ParseFloat(resp.Volume, 64)
		if err != nil {
			return fmt.Errorf("parse volume: %w", err)
		}
		quote = model.Quote{
			Venue:     b.Name(),
			Symbol:    symbol,
			Bid:       bid,
			Ask:       ask,
			Last:      last,
			Volume:    volume,
			Timestamp: time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return model.Quote{}, fmt.Errorf("binance: get quote %s: %w", symbol, err)
	}
	return quote, nil
}

// GetDepth returns the order book for a symbol, asks ascending and bids
// descending, as Binance already serves them.
func (b *BinanceClient) GetDepth(ctx context.Context, symbol string, limit int) (model.DepthSnapshot, error) {
	var depth model.DepthSnapshot
	err := withRetry(ctx, b.logger, b.retry, "get_depth", func(ctx context.Context) error {
		var resp struct {
			Bids [][]string `json:"bids"`
			Asks [][]string `json:"asks"`
		}
		q := url.Values{
			"symbol": {binanceMarket(symbol)},
			"limit":  {strconv.Itoa(limit)},
		}
		if err := b.public(ctx, "/api/v3/depth", q, &resp); err != nil {
			return err
		}
		asks, err := parseLevels(resp.Asks)
		if err != nil {
			return fmt.Errorf("parse asks: %w", err)
		}
		bids, err := parseLevels(resp.Bids)
		if err != nil {
			return fmt.Errorf("parse bids: %w", err)
		}
		depth = model.DepthSnapshot{
			Venue:     b.Name(),
			Symbol:    symbol,
			Asks:      asks,
			Bids:      bids,
			Timestamp: time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return model.DepthSnapshot{}, fmt.Errorf("binance: get depth %s: %w", symbol, err)
	}
	return depth, nil
}

// GetFreeBalance reads the free balance of one asset from the account
// endpoint.
func (b *BinanceClient) GetFreeBalance(ctx context.Context, currency string) (float64, error) {
	var free float64
	err := withRetry(ctx, b.logger, b.retry, "get_balance", func(ctx context.Context) error {
		var resp struct {
			Balances []struct {
				Asset string `json:"asset"`
				Free  string `json:"free"`
			} `json:"balances"`
		}
		if err := b.signed(ctx, http.MethodGet, "/api/v3/account", url.Values{}, &resp); err != nil {
			return err
		}
		free = 0
		for _, bal := range resp.Balances {
			if strings.EqualFold(bal.Asset, currency) {
				f, err := strconv.ParseFloat(bal.Free, 64)
				if err != nil {
					return fmt.Errorf("parse balance: %w", err)
				}
				free = f
				break
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("binance: get balance %s: %w", currency, err)
	}
	return free, nil
}

// PlaceOrder submits an order and reports the average fill.
func (b *BinanceClient) PlaceOrder(ctx context.Context, symbol string, kind model.OrderKind, side model.OrderSide, amount, price float64) (model.Order, error) {
	if kind == model.OrderLimit && price <= 0 {
		return model.Order{}, model.ErrPriceRequired
	}

	var order model.Order
	err := withRetry(ctx, b.logger, b.retry, "place_order", func(ctx context.Context) error {
		params := url.Values{
			"symbol":   {binanceMarket(symbol)},
			"side":     {strings.ToUpper(string(side))},
			"quantity": {strconv.FormatFloat(amount, 'f', -1, 64)},
		}
		switch kind {
		case model.OrderLimit:
			params.Set("type", "LIMIT")
			params.Set("timeInForce", "GTC")
			params.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
		default:
			params.Set("type", "MARKET")
		}

		var resp struct {
			OrderID            int64  `json:"orderId"`
			Status             string `json:"status"`
			ExecutedQty        string `json:"executedQty"`
			CummulativeQuoteQt string `json:"cummulativeQuoteQty"`
			TransactTime       int64  `json:"transactTime"`
		}
		if err := b.signed(ctx, http.MethodPost, "/api/v3/order", params, &resp); err != nil {
			return err
		}
		filled, err := strconv.ParseFloat(resp.ExecutedQty, 64)
		if err != nil {
			return fmt.Errorf("parse executedQty: %w", err)
		}
		quoteQty, err := strconv.ParseFloat(resp.CummulativeQuoteQt, 64)
		if err != nil {
			return fmt.Errorf("parse cummulativeQuoteQty: %w", err)
		}
		if resp.Status == "REJECTED" || resp.Status == "EXPIRED" || filled == 0 {
			return fmt.Errorf("%w: status %s", model.ErrOrderRejected, resp.Status)
		}
		order = model.Order{
			ID:           strconv.FormatInt(resp.OrderID, 10),
			Venue:        b.Name(),
			Symbol:       symbol,
			Side:         side,
			Kind:         kind,
			FilledPrice:  quoteQty / filled,
			FilledAmount: filled,
			Status:       strings.ToLower(resp.Status),
			Timestamp:    time.UnixMilli(resp.TransactTime).UTC(),
		}
		return nil
	})
	if err != nil {
		return model.Order{}, fmt.Errorf("binance: place %s %s %s: %w", kind, side, symbol, err)
	}
	return order, nil
}

func (b *BinanceClient) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}

// public issues an unauthenticated GET and decodes the JSON response.
func (b *BinanceClient) public(ctx context.Context, path string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	return b.do(req, out)
}

// signed issues an authenticated request with Binance's HMAC-SHA256 query
// signature.
func (b *BinanceClient) signed(ctx context.Context, method, path string, params url.Values, out any) error {
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")

	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(params.Encode()))
	params.Set("signature", hex.EncodeToString(mac.Sum(nil)))

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", b.apiKey)
	return b.do(req, out)
}

func (b *BinanceClient) do(req *http.Request, out any) error {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

func parseLevels(raw [][]string) ([]model.PriceLevel, error) {
	levels := make([]model.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(lvl[0], 64)
		if err != nil {
			return nil, err
		}
		size, err := strconv.ParseFloat(lvl[1], 64)
		if err != nil {
			return nil, err
		}
		levels = append(levels, model.PriceLevel{Price: price, Size: size})
	}
	return levels, nil
}

// StartStream connects to the combined ticker stream for the given symbols
// and keeps the quote cache current until ctx is cancelled. Reconnects with
// capped exponential backoff.
func (b *BinanceClient) StartStream(ctx context.Context, symbols []string) error {
	streams := make([]string, 0, len(symbols))
	markets := make(map[string]string, len(symbols)) // "BTCUSDT" -> "BTC/USDT"
	for _, s := range symbols {
		market := binanceMarket(s)
		markets[market] = s
		streams = append(streams, strings.ToLower(market)+"@ticker")
	}
	wsURL := b.wsURL + "?streams=" + strings.Join(streams, "/")

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stream shutting down")
			return nil
		default:
		}

		b.logger.Info("connecting to ticker stream", "url", wsURL, "backoff", backoff)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			b.logger.Error("stream connection failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > 16*time.Second {
					backoff = 16 * time.Second
				}
			}
			continue
		}
		backoff = time.Second
		b.logger.Info("ticker stream connected")

		b.readStream(ctx, conn, markets)
		conn.Close()
	}
}

func (b *BinanceClient) readStream(ctx context.Context, conn *websocket.Conn, markets map[string]string) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Error("stream read failed", "error", err)
			}
			return
		}

		var frame struct {
			Data struct {
				Symbol string `json:"s"`
				Bid    string `json:"b"`
				Ask    string `json:"a"`
				Last   string `json:"c"`
				Volume string `json:"v"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &frame); err != nil {
			b.logger.Warn("failed to parse stream message", "error", err)
			continue
		}
		symbol, ok := markets[frame.Data.Symbol]
		if !ok {
			continue
		}
		bid, err1 := strconv.ParseFloat(frame.Data.Bid, 64)
		ask, err2 := strconv.ParseFloat(frame.Data.Ask, 64)
		last, err3 := strconv.ParseFloat(frame.Data.Last, 64)
		volume, err4 := strconv.ParseFloat(frame.Data.Volume, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			b.logger.Warn("failed to parse ticker prices", "symbol", frame.Data.Symbol)
			continue
		}

		b.mu.Lock()
		b.cache[symbol] = model.Quote{
			Venue:     b.Name(),
			Symbol:    symbol,
			Bid:       bid,
			Ask:       ask,
			Last:      last,
			Volume:    volume,
			Timestamp: time.Now().UTC(),
		}
		b.mu.Unlock()
	}
}
