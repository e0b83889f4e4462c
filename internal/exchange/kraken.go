package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cm777-dev/crypto-arbitrage-bot/internal/model"
)

const krakenAPIBaseURL = "https://api.kraken.com"

// KrakenClient implements the Client interface for Kraken over its REST API.
type KrakenClient struct {
	logger     *slog.Logger
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	retry      RetrySettings
	baseURL    string
}

// NewKrakenClient creates a new KrakenClient.
func NewKrakenClient(logger *slog.Logger, apiKey, apiSecret string, retry RetrySettings) *KrakenClient {
	return &KrakenClient{
		logger:     logger.With("venue", "kraken"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: retry.Timeout},
		retry:      retry,
		baseURL:    krakenAPIBaseURL,
	}
}

func (k *KrakenClient) Name() string {
	return "kraken"
}

// krakenMarket converts "BTC/USDT" to Kraken's "XBTUSDT" notation.
func krakenMarket(symbol string) string {
	base := model.BaseCurrency(symbol)
	if base == "BTC" {
		base = "XBT"
	}
	return strings.ToUpper(base + model.QuoteCurrency(symbol))
}

type krakenResponse struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// GetQuote returns the current top-of-book quote from the public Ticker
// endpoint.
func (k *KrakenClient) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	var quote model.Quote
	err := withRetry(ctx, k.logger, k.retry, "get_quote", func(ctx context.Context) error {
		raw, err := k.public(ctx, "/0/public/Ticker", url.Values{"pair": {krakenMarket(symbol)}})
		if err != nil {
			return err
		}
		// Keyed by Kraken's canonical pair name, which may differ from
		// the requested one; there is exactly one entry.
		var pairs map[string]struct {
			Ask    []string `json:"a"`
			Bid    []string `json:"b"`
			Last   []string `json:"c"`
			Volume []string `json:"v"`
		}
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return err
		}
		for _, t := range pairs {
			if len(t.Ask) == 0 || len(t.Bid) == 0 || len(t.Last) == 0 || len(t.Volume) < 2 {
				return fmt.Errorf("incomplete ticker payload")
			}
			ask, err := strconv.ParseFloat(t.Ask[0], 64)
			if err != nil {
				return fmt.Errorf("parse ask: %w", err)
			}
			bid, err := strconv.ParseFloat(t.Bid[0], 64)
			if err != nil {
				return fmt.Errorf("parse bid: %w", err)
			}
			last, err := strconv.ParseFloat(t.Last[0], 64)
			if err != nil {
				return fmt.Errorf("parse last: %w", err)
			}
			volume, err := strconv.ParseFloat(t.Volume[1], 64)
			if err != nil {
				return fmt.Errorf("parse volume: %w", err)
			}
			quote = model.Quote{
				Venue:     k.Name(),
				Symbol:    symbol,
				Bid:       bid,
				Ask:       ask,
				Last:      last,
				Volume:    volume,
				Timestamp: time.Now().UTC(),
			}
			return nil
		}
		return fmt.Errorf("no ticker data for %s", symbol)
	})
	if err != nil {
		return model.Quote{}, fmt.Errorf("kraken: get quote %s: %w", symbol, err)
	}
	return quote, nil
}

// GetDepth returns the order book from the public Depth endpoint.
func (k *KrakenClient) GetDepth(ctx context.Context, symbol string, limit int) (model.DepthSnapshot, error) {
	var depth model.DepthSnapshot
	err := withRetry(ctx, k.logger, k.retry, "get_depth", func(ctx context.Context) error {
		q := url.Values{
			"pair":  {krakenMarket(symbol)},
			"count": {strconv.Itoa(limit)},
		}
		raw, err := k.public(ctx, "/0/public/Depth", q)
		if err != nil {
			return err
		}
		var pairs map[string]struct {
			Asks [][]json.Number `json:"asks"`
			Bids [][]json.Number `json:"bids"`
		}
		if err := json.Unmarshal(raw, &pairs); err != nil {
			return err
		}
		for _, book := range pairs {
			asks, err := parseKrakenLevels(book.Asks)
			if err != nil {
				return fmt.Errorf("parse asks: %w", err)
			}
			bids, err := parseKrakenLevels(book.Bids)
			if err != nil {
				return fmt.Errorf("parse bids: %w", err)
			}
			depth = model.DepthSnapshot{
				Venue:     k.Name(),
				Symbol:    symbol,
				Asks:      asks,
				Bids:      bids,
				Timestamp: time.Now().UTC(),
			}
			return nil
		}
		return fmt.Errorf("no depth data for %s", symbol)
	})
	if err != nil {
		return model.DepthSnapshot{}, fmt.Errorf("kraken: get depth %s: %w", symbol, err)
	}
	return depth, nil
}

// GetFreeBalance reads a single currency balance from the private Balance
// endpoint.
func (k *KrakenClient) GetFreeBalance(ctx context.Context, currency string) (float64, error) {
	asset := strings.ToUpper(currency)
	if asset == "BTC" {
		asset = "XBT"
	}
	var free float64
	err := withRetry(ctx, k.logger, k.retry, "get_balance", func(ctx context.Context) error {
		raw, err := k.private(ctx, "/0/private/Balance", url.Values{})
		if err != nil {
			return err
		}
		var balances map[string]string
		if err := json.Unmarshal(raw, &balances); err != nil {
			return err
		}
		free = 0
		for name, amount := range balances {
			if strings.EqualFold(strings.TrimPrefix(name, "X"), asset) ||
				strings.EqualFold(strings.TrimPrefix(name, "Z"), asset) ||
				strings.EqualFold(name, asset) {
				f, err := strconv.ParseFloat(amount, 64)
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
		return 0, fmt.Errorf("kraken: get balance %s: %w", currency, err)
	}
	return free, nil
}

// PlaceOrder submits an order via AddOrder and reads the fill back via
// QueryOrders.
func (k *KrakenClient) PlaceOrder(ctx context.Context, symbol string, kind model.OrderKind, side model.OrderSide, amount, price float64) (model.Order, error) {
	if kind == model.OrderLimit && price <= 0 {
		return model.Order{}, model.ErrPriceRequired
	}

	var order model.Order
	err := withRetry(ctx, k.logger, k.retry, "place_order", func(ctx context.Context) error {
		params := url.Values{
			"pair":      {krakenMarket(symbol)},
			"type":      {string(side)},
			"ordertype": {string(kind)},
			"volume":    {strconv.FormatFloat(amount, 'f', -1, 64)},
		}
		if kind == model.OrderLimit {
			params.Set("price", strconv.FormatFloat(price, 'f', -1, 64))
		}
		raw, err := k.private(ctx, "/0/private/AddOrder", params)
		if err != nil {
			return err
		}
		var added struct {
			TxID []string `json:"txid"`
		}
		if err := json.Unmarshal(raw, &added); err != nil {
			return err
		}
		if len(added.TxID) == 0 {
			return fmt.Errorf("%w: no transaction id returned", model.ErrOrderRejected)
		}
		txid := added.TxID[0]

		filledPrice, filledAmount, status, err := k.queryOrder(ctx, txid)
		if err != nil {
			return err
		}
		if filledAmount == 0 {
			return fmt.Errorf("%w: status %s", model.ErrOrderRejected, status)
		}
		order = model.Order{
			ID:           txid,
			Venue:        k.Name(),
			Symbol:       symbol,
			Side:         side,
			Kind:         kind,
			FilledPrice:  filledPrice,
			FilledAmount: filledAmount,
			Status:       status,
			Timestamp:    time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return model.Order{}, fmt.Errorf("kraken: place %s %s %s: %w", kind, side, symbol, err)
	}
	return order, nil
}

func (k *KrakenClient) queryOrder(ctx context.Context, txid string) (price, volume float64, status string, err error) {
	raw, err := k.private(ctx, "/0/private/QueryOrders", url.Values{"txid": {txid}})
	if err != nil {
		return 0, 0, "", err
	}
	var orders map[string]struct {
		Status  string `json:"status"`
		Price   string `json:"price"`
		VolExec string `json:"vol_exec"`
	}
	if err := json.Unmarshal(raw, &orders); err != nil {
		return 0, 0, "", err
	}
	info, ok := orders[txid]
	if !ok {
		return 0, 0, "", fmt.Errorf("order %s not found", txid)
	}
	price, err = strconv.ParseFloat(info.Price, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("parse price: %w", err)
	}
	volume, err = strconv.ParseFloat(info.VolExec, 64)
	if err != nil {
		return 0, 0, "", fmt.Errorf("parse vol_exec: %w", err)
	}
	return price, volume, info.Status, nil
}

func (k *KrakenClient) Close() error {
	k.httpClient.CloseIdleConnections()
	return nil
}

func (k *KrakenClient) public(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return k.do(req)
}

// private issues a POST signed with Kraken's HMAC-SHA512 path signature.
func (k *KrakenClient) private(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	params.Set("nonce", strconv.FormatInt(time.Now().UnixNano(), 10))
	body := params.Encode()

	sign, err := k.sign(path, params.Get("nonce"), body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.baseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", k.apiKey)
	req.Header.Set("API-Sign", sign)
	return k.do(req)
}

func (k *KrakenClient) sign(path, nonce, body string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(k.apiSecret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}
	digest := sha256.Sum256([]byte(nonce + body))
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(digest[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (k *KrakenClient) do(req *http.Request) (json.RawMessage, error) {
	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	var kr krakenResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return nil, err
	}
	if len(kr.Error) > 0 {
		return nil, fmt.Errorf("api error: %s", strings.Join(kr.Error, "; "))
	}
	return kr.Result, nil
}

func parseKrakenLevels(raw [][]json.Number) ([]model.PriceLevel, error) {
	levels := make([]model.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		price, err := lvl[0].Float64()
		if err != nil {
			return nil, err
		}
		size, err := lvl[1].Float64()
		if err != nil {
			return nil, err
		}
		levels = append(levels, model.PriceLevel{Price: price, Size: size})
	}
	return levels, nil
}
