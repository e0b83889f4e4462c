package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func krakenTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/0/public/Ticker", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XBTUSDT", r.URL.Query().Get("pair"))
		w.Write([]byte(`{"error":[],"result":{"XBTUSDT":{
			"a":["60010.5","1","1.000"],
			"b":["60005.1","2","2.000"],
			"c":["60008.0","0.05"],
			"v":["10.5","99.25"]}}}`))
	})
	mux.HandleFunc("/0/public/Depth", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":[],"result":{"XBTUSDT":{
			"asks":[["60010.5","1.2",1700000000],["60012.0","0.4",1700000001]],
			"bids":[["60005.1","0.9",1700000000]]}}}`))
	})
	return httptest.NewServer(mux)
}

func TestKrakenClient_GetQuote(t *testing.T) {
	srv := krakenTestServer(t)
	defer srv.Close()

	c := NewKrakenClient(testLogger(), "", "", testRetry())
	c.baseURL = srv.URL

	quote, err := c.GetQuote(context.Background(), "BTC/USDT")
	assert.NoError(t, err)
	assert.Equal(t, "kraken", quote.Venue)
	assert.Equal(t, "BTC/USDT", quote.Symbol)
	assert.Equal(t, 60005.1, quote.Bid)
	assert.Equal(t, 60010.5, quote.Ask)
	assert.Equal(t, 60008.0, quote.Last)
	// Rolling 24h volume, not the today counter.
	assert.Equal(t, 99.25, quote.Volume)
}

func TestKrakenClient_GetDepth(t *testing.T) {
	srv := krakenTestServer(t)
	defer srv.Close()

	c := NewKrakenClient(testLogger(), "", "", testRetry())
	c.baseURL = srv.URL

	depth, err := c.GetDepth(context.Background(), "BTC/USDT", 20)
	assert.NoError(t, err)
	assert.Len(t, depth.Asks, 2)
	assert.Len(t, depth.Bids, 1)
	assert.Equal(t, 60010.5, depth.Asks[0].Price)
	assert.Equal(t, 1.2, depth.Asks[0].Size)
}

func TestKrakenClient_APIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":["EGeneral:Invalid arguments"],"result":null}`))
	}))
	defer srv.Close()

	c := NewKrakenClient(testLogger(), "", "", testRetry())
	c.baseURL = srv.URL

	_, err := c.GetQuote(context.Background(), "BTC/USDT")
	assert.ErrorContains(t, err, "EGeneral")
}

func TestKrakenMarketMapping(t *testing.T) {
	assert.Equal(t, "XBTUSDT", krakenMarket("BTC/USDT"))
	assert.Equal(t, "ETHUSDT", krakenMarket("ETH/USDT"))
}
