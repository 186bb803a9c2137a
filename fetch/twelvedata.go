package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Talent12666/shadowfx/shared"
	"github.com/tidwall/gjson"
)

const (
	// BaseURL is the twelve data api base url.
	BaseURL = "https://api.twelvedata.com"
	// timeSeriesPath is the twelve data time series endpoint.
	timeSeriesPath = "/time_series"
	// defaultTimeout is the default http client timeout.
	defaultTimeout = time.Second * 5
)

// TwelveDataConfig represents the configuration for the twelve data client.
type TwelveDataConfig struct {
	// APIKey is the twelve data API Key.
	APIKey string
	// BaseURL is the twelve data api base url.
	BaseURL string
	// Timeout is the request timeout, defaults to five seconds.
	Timeout time.Duration
	// Location is the location candle dates are parsed in, defaults to UTC.
	Location *time.Location
}

// Validate asserts the config sane inputs.
func (cfg *TwelveDataConfig) Validate() error {
	var errs error

	if cfg.APIKey == "" {
		errs = errors.Join(errs, fmt.Errorf("twelve data api key cannot be an empty string"))
	}
	if cfg.BaseURL == "" {
		errs = errors.Join(errs, fmt.Errorf("twelve data base url cannot be an empty string"))
	}

	return errs
}

// TwelveDataClient represents the Twelve Data market data API client.
type TwelveDataClient struct {
	cfg   *TwelveDataConfig
	httpc *http.Client
}

// Ensure the TwelveDataClient implements the MarketFetcher interface.
var _ shared.MarketFetcher = (*TwelveDataClient)(nil)

// NewTwelveDataClient instantiates a new twelve data client.
func NewTwelveDataClient(cfg *TwelveDataConfig) (*TwelveDataClient, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating twelve data config: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &TwelveDataClient{
		cfg:   cfg,
		httpc: &http.Client{Timeout: timeout},
	}, nil
}

// formURL creates full urls including parameters for the api.
func (c *TwelveDataClient) formURL(path string, params url.Values) string {
	return c.cfg.BaseURL + path + "?" + params.Encode()
}

// FetchCandles fetches the most recent count candles for the provided instrument, newest-first.
func (c *TwelveDataClient) FetchCandles(ctx context.Context, instrument shared.Instrument, timeframe shared.Timeframe, count int) ([]shared.Candlestick, error) {
	if count <= 0 {
		return nil, fmt.Errorf("candle count must be positive, got %d", count)
	}

	interval, err := timeframe.Interval()
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("symbol", instrument.Code)
	params.Add("interval", interval)
	params.Add("outputsize", strconv.Itoa(count))
	params.Add("apikey", c.cfg.APIKey)
	if instrument.Category != "" {
		params.Add("category", instrument.Category)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.formURL(timeSeriesPath, params), nil)
	if err != nil {
		return nil, fmt.Errorf("creating time series request: %w", err)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching time series (%s) for %s: %w", timeframe.String(), instrument.Symbol, err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status fetching time series (%s) for %s: %d",
			timeframe.String(), instrument.Symbol, resp.StatusCode)
	}

	return c.ParseTimeSeries(body, instrument, timeframe)
}

// ParseTimeSeries parses candlesticks from the provided time series response body.
func (c *TwelveDataClient) ParseTimeSeries(body []byte, instrument shared.Instrument, timeframe shared.Timeframe) ([]shared.Candlestick, error) {
	res := gjson.ParseBytes(body)

	status := res.Get("status").String()
	if status != "ok" {
		return nil, fmt.Errorf("time series (%s) for %s returned status %q: %s", timeframe.String(),
			instrument.Symbol, status, res.Get("message").String())
	}

	values := res.Get("values").Array()
	if len(values) == 0 {
		return nil, fmt.Errorf("time series (%s) for %s returned no values", timeframe.String(), instrument.Symbol)
	}

	candles, err := shared.ParseCandlesticks(values, instrument.Symbol, timeframe, c.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("parsing candlesticks for %s: %w", instrument.Symbol, err)
	}

	return candles, nil
}
