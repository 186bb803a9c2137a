package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/Talent12666/shadowfx/shared"
	"github.com/peterldowns/testy/assert"
)

const timeSeriesBody = `{
	"meta": {"symbol": "XAU/USD", "interval": "15min"},
	"values": [
		{"datetime": "2025-02-04 15:00:00", "open": "2000.5", "high": "2010", "low": "1995", "close": "2005.25"},
		{"datetime": "2025-02-04 15:15:00", "open": "2005.25", "high": "2020", "low": "2001", "close": "2015"}
	],
	"status": "ok"
}`

func TestTwelveDataClient(t *testing.T) {
	// Ensure the client cannot be created with an invalid config.
	_, err := NewTwelveDataClient(&TwelveDataConfig{})
	assert.Error(t, err)

	var mtx sync.Mutex
	var query url.Values
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mtx.Lock()
		query = r.URL.Query()
		path = r.URL.Path
		mtx.Unlock()

		switch r.URL.Query().Get("symbol") {
		case "XAU/USD":
			_, _ = w.Write([]byte(timeSeriesBody))
		case "ERR":
			_, _ = w.Write([]byte(`{"code": 400, "message": "symbol not found", "status": "error"}`))
		case "EMPTY":
			_, _ = w.Write([]byte(`{"values": [], "status": "ok"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client, err := NewTwelveDataClient(&TwelveDataConfig{APIKey: "key", BaseURL: server.URL})
	assert.NoError(t, err)

	// Ensure urls can be formed accurately.
	params := url.Values{}
	params.Add("a", "bbb")
	params.Add("b", "ccc")
	assert.Equal(t, client.formURL("/path", params), server.URL+"/path?a=bbb&b=ccc")

	ctx := context.Background()

	// Ensure candles are fetched with the expected parameters and ordered newest-first.
	candles, err := client.FetchCandles(ctx, xauusd, shared.FifteenMinute, 200)
	assert.NoError(t, err)

	mtx.Lock()
	assert.Equal(t, path, "/time_series")
	assert.Equal(t, query.Get("interval"), "15min")
	assert.Equal(t, query.Get("outputsize"), "200")
	assert.Equal(t, query.Get("apikey"), "key")
	assert.Equal(t, query.Get("category"), shared.Commodities)
	assert.Equal(t, len(candles), 2)
	assert.Equal(t, candles[0].Close, float64(2015))
	assert.Equal(t, candles[1].Open, 2000.5)
	assert.Equal(t, candles[0].Instrument, "XAUUSD")
	assert.Equal(t, candles[0].Timeframe, shared.FifteenMinute)

	mtx.Unlock()

	// Ensure provider errors are surfaced.
	_, err = client.FetchCandles(ctx, shared.Instrument{Symbol: "ERR", Code: "ERR"}, shared.OneMinute, 10)
	assert.Error(t, err)

	// Ensure empty series are surfaced as errors.
	_, err = client.FetchCandles(ctx, shared.Instrument{Symbol: "EMPTY", Code: "EMPTY"}, shared.OneMinute, 10)
	assert.Error(t, err)

	// Ensure non-200 responses error.
	_, err = client.FetchCandles(ctx, shared.Instrument{Symbol: "FAIL", Code: "FAIL"}, shared.OneMinute, 10)
	assert.Error(t, err)

	// Ensure invalid counts and unknown timeframes error before any request.
	_, err = client.FetchCandles(ctx, xauusd, shared.OneMinute, 0)
	assert.Error(t, err)
	_, err = client.FetchCandles(ctx, xauusd, shared.Timeframe(999), 10)
	assert.Error(t, err)

	// Ensure cancelled requests error.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = client.FetchCandles(cancelled, xauusd, shared.OneMinute, 10)
	assert.Error(t, err)
}
