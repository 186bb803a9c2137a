package indicator

import (
	"fmt"

	"github.com/Talent12666/shadowfx/shared"
)

const (
	// FastTrendPeriod is the period of the fast trend moving average.
	FastTrendPeriod = 20
	// SlowTrendPeriod is the period of the slow trend moving average, it is also
	// the minimum number of candles required to determine a trend.
	SlowTrendPeriod = 50
)

// EMA returns the latest exponential moving average of the provided chronological
// (oldest first) values. The average is seeded with the simple moving average of
// the first period values.
func EMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("ema period must be positive, got %d", period)
	}
	if len(values) < period {
		return 0, fmt.Errorf("ema(%d) requires at least %d values, got %d", period, period, len(values))
	}

	var sum float64
	for idx := range period {
		sum += values[idx]
	}

	ema := sum / float64(period)
	k := 2 / float64(period+1)
	for idx := period; idx < len(values); idx++ {
		ema = (values[idx]-ema)*k + ema
	}

	return ema, nil
}

// DetermineTrend classifies the trend of the provided newest-first candles by
// comparing the fast and slow exponential moving averages of their closes. An
// up trend requires the fast average to be strictly above the slow one.
func DetermineTrend(candles []shared.Candlestick) shared.Trend {
	if len(candles) < SlowTrendPeriod {
		return shared.UnavailableTrend
	}

	closes := shared.Closes(candles)

	fast, err := EMA(closes, FastTrendPeriod)
	if err != nil {
		return shared.UnavailableTrend
	}

	slow, err := EMA(closes, SlowTrendPeriod)
	if err != nil {
		return shared.UnavailableTrend
	}

	if fast > slow {
		return shared.UpTrend
	}

	return shared.DownTrend
}
