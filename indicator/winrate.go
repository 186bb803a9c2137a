package indicator

import "github.com/Talent12666/shadowfx/shared"

// MinWinRateCandles is the minimum number of candles required for a win rate.
const MinWinRateCandles = 100

// WinRate returns the percentage of period-over-period positive closes of the
// provided newest-first candles. It reports false when there is not enough history.
func WinRate(candles []shared.Candlestick) (float64, bool) {
	if len(candles) < MinWinRateCandles {
		return 0, false
	}

	var positive int
	changes := len(candles) - 1
	for idx := range changes {
		if candles[idx].Close > candles[idx+1].Close {
			positive++
		}
	}

	return float64(positive) / float64(changes) * 100, true
}
