package shared

import (
	"fmt"
	"strings"
)

const (
	// DateLayout is the format layout for parsing intraday candle dates.
	DateLayout = "2006-01-02 15:04:05"
	// DayLayout is the format layout for parsing daily candle dates.
	DayLayout = "2006-01-02"
)

// Timeframe represents the market data time period.
type Timeframe int

const (
	OneMinute Timeframe = iota
	FiveMinute
	FifteenMinute
	OneHour
	FourHour
	OneDay
)

// String stringifies the provided timeframe.
func (t Timeframe) String() string {
	switch t {
	case OneMinute:
		return "1m"
	case FiveMinute:
		return "5m"
	case FifteenMinute:
		return "15m"
	case OneHour:
		return "1H"
	case FourHour:
		return "4H"
	case OneDay:
		return "1D"
	default:
		return "unknown"
	}
}

// Interval returns the market data provider interval code for the timeframe.
func (t Timeframe) Interval() (string, error) {
	switch t {
	case OneMinute:
		return "1min", nil
	case FiveMinute:
		return "5min", nil
	case FifteenMinute:
		return "15min", nil
	case OneHour:
		return "1h", nil
	case FourHour:
		return "4h", nil
	case OneDay:
		return "1day", nil
	default:
		return "", fmt.Errorf("unknown timeframe provided: %d", t)
	}
}

// ParseTimeframe parses a timeframe from either its string form or its provider interval code.
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1m", "1min":
		return OneMinute, nil
	case "5m", "5min":
		return FiveMinute, nil
	case "15m", "15min":
		return FifteenMinute, nil
	case "1h":
		return OneHour, nil
	case "4h":
		return FourHour, nil
	case "1d", "1day":
		return OneDay, nil
	default:
		return 0, fmt.Errorf("unknown timeframe: %q", s)
	}
}
