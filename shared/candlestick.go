package shared

import (
	"fmt"
	"slices"
	"time"

	"github.com/tidwall/gjson"
)

// Candlestick represents a unit candlestick for an instrument.
//
// Candlesticks are immutable once produced, sequences of them are ordered
// newest-first (index 0 is the most recent, possibly still forming, candle).
type Candlestick struct {
	Open  float64
	Low   float64
	High  float64
	Close float64
	Date  time.Time

	// Metadata.
	Instrument string
	Timeframe  Timeframe
}

// ParseCandlesticks parses candlesticks from the provided json data and orders them newest-first.
func ParseCandlesticks(data []gjson.Result, instrument string, timeframe Timeframe, loc *time.Location) ([]Candlestick, error) {
	if loc == nil {
		loc = time.UTC
	}

	candles := make([]Candlestick, 0, len(data))
	for idx := range data {
		var candle Candlestick

		candle.Open = data[idx].Get("open").Float()
		candle.Low = data[idx].Get("low").Float()
		candle.High = data[idx].Get("high").Float()
		candle.Close = data[idx].Get("close").Float()

		candle.Instrument = instrument
		candle.Timeframe = timeframe

		dt, err := parseCandleDate(data[idx].Get("datetime").String(), loc)
		if err != nil {
			return nil, fmt.Errorf("parsing candlestick date: %w", err)
		}

		candle.Date = dt
		candles = append(candles, candle)
	}

	SortNewestFirst(candles)

	return candles, nil
}

// parseCandleDate parses intraday and daily candle dates.
func parseCandleDate(date string, loc *time.Location) (time.Time, error) {
	dt, err := time.ParseInLocation(DateLayout, date, loc)
	if err == nil {
		return dt, nil
	}

	return time.ParseInLocation(DayLayout, date, loc)
}

// SortNewestFirst orders the provided candles by date, most recent first.
func SortNewestFirst(candles []Candlestick) {
	slices.SortStableFunc(candles, func(a, b Candlestick) int {
		return b.Date.Compare(a.Date)
	})
}

// Closes returns the close prices of the provided newest-first candles in
// chronological order, oldest first.
func Closes(candles []Candlestick) []float64 {
	closes := make([]float64, len(candles))
	for idx := range candles {
		closes[len(candles)-1-idx] = candles[idx].Close
	}

	return closes
}
