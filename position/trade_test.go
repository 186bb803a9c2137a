package position

import (
	"strings"
	"testing"
	"time"

	"github.com/Talent12666/shadowfx/engine"
	"github.com/Talent12666/shadowfx/shared"
	"github.com/peterldowns/testy/assert"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{name: "open", state: Open, want: "OPEN"},
		{name: "closed win", state: ClosedWin, want: "CLOSED_WIN"},
		{name: "closed loss", state: ClosedLoss, want: "CLOSED_LOSS"},
		{name: "unknown", state: State(999), want: "unknown"},
	}

	for _, test := range tests {
		str := test.state.String()
		if str != test.want {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, str)
		}
	}
}

func TestNewTrade(t *testing.T) {
	now := time.Date(2025, 2, 4, 15, 0, 0, 0, time.UTC)

	// Ensure a nil signal is rejected.
	_, err := NewTrade(nil, "42", now)
	assert.Error(t, err)

	// Ensure a signal without an instrument is rejected.
	_, err = NewTrade(&engine.Signal{}, "42", now)
	assert.Error(t, err)

	signal := &engine.Signal{
		Instrument:  shared.Instrument{Symbol: "XAUUSD", Code: "XAU/USD", Category: shared.Commodities},
		Direction:   shared.Buy,
		Entry:       115,
		StopLoss:    95,
		Risk:        20,
		TakeProfit1: 155,
		TakeProfit2: 195,
	}

	trade, err := NewTrade(signal, "42", now)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(trade.ID, "XAUUSD_1738681200_"))
	assert.Equal(t, len(trade.ID), len("XAUUSD_1738681200_")+8)
	assert.Equal(t, trade.State, Open)
	assert.Equal(t, trade.Owner, "42")
	assert.Equal(t, trade.StopLoss, float64(95))
	assert.Equal(t, trade.InitialStopLoss, float64(95))
	assert.False(t, trade.BreakevenApplied)

	// Ensure trades created in the same second get distinct ids.
	other, err := NewTrade(signal, "42", now)
	assert.NoError(t, err)
	assert.NotEqual(t, trade.ID, other.ID)
}

func TestPNLPercent(t *testing.T) {
	buy := &Trade{Direction: shared.Buy, Entry: 100}
	assert.Equal(t, buy.PNLPercent(110), float64(10))

	sell := &Trade{Direction: shared.Sell, Entry: 100}
	assert.Equal(t, sell.PNLPercent(110), float64(-10))

	empty := &Trade{}
	assert.Equal(t, empty.PNLPercent(110), float64(0))
}
