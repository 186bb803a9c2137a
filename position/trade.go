package position

import (
	"fmt"
	"time"

	"github.com/Talent12666/shadowfx/engine"
	"github.com/Talent12666/shadowfx/shared"
	"github.com/google/uuid"
)

// State represents the lifecycle state of a trade.
type State int

const (
	Open State = iota
	ClosedWin
	ClosedLoss
)

// String stringifies the provided trade state.
func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case ClosedWin:
		return "CLOSED_WIN"
	case ClosedLoss:
		return "CLOSED_LOSS"
	default:
		return "unknown"
	}
}

// Trade represents a tracked trade created from a breakout signal.
type Trade struct {
	ID         string
	Instrument shared.Instrument
	Direction  shared.Direction
	Entry      float64
	// StopLoss is the active stop, it equals Entry once breakeven is applied.
	StopLoss float64
	// InitialStopLoss is the stop computed by the signal.
	InitialStopLoss  float64
	TakeProfit1      float64
	TakeProfit2      float64
	BreakevenApplied bool
	// Owner is the subscriber the trade was created for.
	Owner     string
	State     State
	CreatedOn time.Time
	ClosedOn  time.Time
	ExitPrice float64
}

// generateTradeID derives a trade id from the instrument and creation time, the
// random suffix keeps ids unique for trades created in the same second.
func generateTradeID(symbol string, createdOn time.Time) string {
	return fmt.Sprintf("%s_%d_%s", symbol, createdOn.Unix(), uuid.New().String()[:8])
}

// NewTrade initializes a new open trade from the provided signal.
func NewTrade(signal *engine.Signal, owner string, now time.Time) (*Trade, error) {
	if signal == nil {
		return nil, fmt.Errorf("signal cannot be nil")
	}
	if signal.Instrument.Symbol == "" {
		return nil, fmt.Errorf("signal instrument cannot be empty")
	}

	trade := &Trade{
		ID:              generateTradeID(signal.Instrument.Symbol, now),
		Instrument:      signal.Instrument,
		Direction:       signal.Direction,
		Entry:           signal.Entry,
		StopLoss:        signal.StopLoss,
		InitialStopLoss: signal.StopLoss,
		TakeProfit1:     signal.TakeProfit1,
		TakeProfit2:     signal.TakeProfit2,
		Owner:           owner,
		State:           Open,
		CreatedOn:       now,
	}

	return trade, nil
}

// stopLossHit checks whether the provided price reaches the active stop.
func (t *Trade) stopLossHit(price float64) bool {
	switch t.Direction {
	case shared.Buy:
		return price <= t.StopLoss
	case shared.Sell:
		return price >= t.StopLoss
	default:
		return false
	}
}

// takeProfit2Hit checks whether the provided price reaches the second take profit.
func (t *Trade) takeProfit2Hit(price float64) bool {
	switch t.Direction {
	case shared.Buy:
		return price >= t.TakeProfit2
	case shared.Sell:
		return price <= t.TakeProfit2
	default:
		return false
	}
}

// takeProfit1Hit checks whether the provided price reaches the first take profit.
func (t *Trade) takeProfit1Hit(price float64) bool {
	switch t.Direction {
	case shared.Buy:
		return price >= t.TakeProfit1
	case shared.Sell:
		return price <= t.TakeProfit1
	default:
		return false
	}
}

// PNLPercent returns the percentage change of the trade at the provided price.
func (t *Trade) PNLPercent(price float64) float64 {
	if t.Entry == 0 {
		return 0
	}

	switch t.Direction {
	case shared.Sell:
		return ((t.Entry - price) / t.Entry) * 100
	default:
		return ((price - t.Entry) / t.Entry) * 100
	}
}
