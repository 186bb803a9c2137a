package shared

import (
	"context"
)

// MarketFetcher defines the requirements for fetching instrument market data.
type MarketFetcher interface {
	// FetchCandles fetches the most recent count candles for the instrument, newest-first.
	FetchCandles(ctx context.Context, instrument Instrument, timeframe Timeframe, count int) ([]Candlestick, error)
}
