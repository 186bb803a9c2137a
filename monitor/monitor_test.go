package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Talent12666/shadowfx/alert"
	"github.com/Talent12666/shadowfx/position"
	"github.com/Talent12666/shadowfx/shared"
	"github.com/go-co-op/gocron"
	"github.com/peterldowns/testy/assert"
	"github.com/rs/zerolog/log"
)

var (
	xauusd = shared.Instrument{Symbol: "XAUUSD", Code: "XAU/USD", Category: shared.Commodities}
	eurusd = shared.Instrument{Symbol: "EURUSD", Code: "EUR/USD", Category: shared.Forex}
)

// dispatched represents a dispatched notification.
type dispatched struct {
	subscriber string
	message    string
}

// harness bundles a monitor with its collaborators.
type harness struct {
	monitor  *Monitor
	registry *position.Registry
	subs     *alert.Subscriptions

	mtx        sync.Mutex
	prices     map[string][]shared.Candlestick
	trends     map[string][]shared.Candlestick
	fetchErrs  map[string]error
	messages   []dispatched
	fetchCalls int
}

func (h *harness) fetch(ctx context.Context, instrument shared.Instrument, timeframe shared.Timeframe) ([]shared.Candlestick, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	h.fetchCalls++
	err, ok := h.fetchErrs[instrument.Symbol]
	if ok {
		return nil, err
	}

	switch timeframe {
	case shared.OneMinute:
		return h.prices[instrument.Symbol], nil
	case shared.FifteenMinute:
		return h.trends[instrument.Symbol], nil
	default:
		return nil, fmt.Errorf("unexpected timeframe %s", timeframe.String())
	}
}

func (h *harness) setPrice(symbol string, price float64) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.prices[symbol] = []shared.Candlestick{{Open: price, High: price, Low: price, Close: price}}
}

// setTrend stores newest-first candles whose closes rise (up) or fall (down).
func (h *harness) setTrend(symbol string, up bool) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	candles := make([]shared.Candlestick, 60)
	for idx := range candles {
		price := float64(100 - idx)
		if !up {
			price = float64(100 + idx)
		}
		candles[idx] = shared.Candlestick{Open: price, High: price, Low: price, Close: price}
	}
	h.trends[symbol] = candles
}

func (h *harness) dispatched() []dispatched {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return append([]dispatched{}, h.messages...)
}

func setupHarness(t *testing.T) *harness {
	t.Helper()

	registry, err := position.NewRegistry(&position.RegistryConfig{Logger: &log.Logger})
	assert.NoError(t, err)
	subs, err := alert.NewSubscriptions(&alert.SubscriptionsConfig{Logger: &log.Logger})
	assert.NoError(t, err)

	h := &harness{
		registry:  registry,
		subs:      subs,
		prices:    make(map[string][]shared.Candlestick),
		trends:    make(map[string][]shared.Candlestick),
		fetchErrs: make(map[string]error),
	}

	table := shared.DefaultInstrumentTable()
	mon, err := NewMonitor(&MonitorConfig{
		ListOpenTrades:        registry.ListOpen,
		ApplyPriceUpdate:      registry.ApplyPriceUpdate,
		SubscribedInstruments: subs.Instruments,
		SubscribersOf:         subs.SubscribersOf,
		ObserveTrend:          subs.ObserveTrend,
		ResolveInstrument:     table.Resolve,
		FetchCandles:          h.fetch,
		Dispatch: func(subscriber string, message string) {
			h.mtx.Lock()
			h.messages = append(h.messages, dispatched{subscriber: subscriber, message: message})
			h.mtx.Unlock()
		},
		PriceTimeframe: shared.OneMinute,
		TrendTimeframe: shared.FifteenMinute,
		Interval:       DefaultInterval,
		JobScheduler:   gocron.NewScheduler(time.UTC),
		Logger:         &log.Logger,
	})
	assert.NoError(t, err)
	h.monitor = mon

	return h
}

func openBuy(t *testing.T, reg *position.Registry, id string, instrument shared.Instrument, owner string) {
	t.Helper()

	err := reg.Open(&position.Trade{
		ID:              id,
		Instrument:      instrument,
		Direction:       shared.Buy,
		Entry:           115,
		StopLoss:        95,
		InitialStopLoss: 95,
		TakeProfit1:     155,
		TakeProfit2:     195,
		Owner:           owner,
		State:           position.Open,
		CreatedOn:       time.Now(),
	})
	assert.NoError(t, err)
}

func TestMonitorConfigValidate(t *testing.T) {
	// Ensure an empty config reports every missing field.
	cfg := &MonitorConfig{}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "dispatch function cannot be nil"))
	assert.True(t, strings.Contains(err.Error(), "sweep interval must be positive"))
	assert.True(t, strings.Contains(err.Error(), "job scheduler cannot be nil"))

	_, err = NewMonitor(cfg)
	assert.Error(t, err)
}

func TestSweepTrades(t *testing.T) {
	h := setupHarness(t)
	openBuy(t, h.registry, "loss", xauusd, "1")
	openBuy(t, h.registry, "be", eurusd, "2")
	openBuy(t, h.registry, "skip", shared.Instrument{Symbol: "BTCUSD", Code: "BTC/USD"}, "3")

	h.setPrice("XAUUSD", 90)
	h.setPrice("EURUSD", 160)
	h.fetchErrs["BTCUSD"] = shared.ErrDataUnavailable

	// Ensure a sweep applies transitions and skips trades without data.
	report, err := h.monitor.RunSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, report.TradesChecked, uint32(2))
	assert.Equal(t, report.TradesSkipped, uint32(1))
	assert.Equal(t, report.Transitions, uint32(2))
	assert.Equal(t, report.Notifications, uint32(2))

	history := h.registry.History()
	assert.Equal(t, len(history), 1)
	assert.False(t, history[0])

	open := h.registry.ListOpen()
	assert.Equal(t, len(open), 2)

	be, err := h.registry.Get("be")
	assert.NoError(t, err)
	assert.True(t, be.BreakevenApplied)
	assert.Equal(t, be.StopLoss, float64(115))

	skipped, err := h.registry.Get("skip")
	assert.NoError(t, err)
	assert.Equal(t, skipped.StopLoss, float64(95))

	// Ensure owners are notified of their own transitions.
	msgs := h.dispatched()
	assert.Equal(t, len(msgs), 2)
	for _, msg := range msgs {
		switch msg.subscriber {
		case "1":
			assert.True(t, strings.Contains(msg.message, "stop loss hit"))
		case "2":
			assert.True(t, strings.Contains(msg.message, "breakeven"))
		default:
			t.Errorf("unexpected notification for %s", msg.subscriber)
		}
	}

	// Ensure an empty price series skips the trade.
	h.mtx.Lock()
	h.prices["EURUSD"] = []shared.Candlestick{}
	h.mtx.Unlock()

	report, err = h.monitor.RunSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, report.TradesChecked, uint32(0))
	assert.Equal(t, report.TradesSkipped, uint32(2))
}

func TestSweepTradesSharesPriceFetch(t *testing.T) {
	h := setupHarness(t)
	openBuy(t, h.registry, "a", xauusd, "1")
	openBuy(t, h.registry, "b", xauusd, "2")
	h.setPrice("XAUUSD", 120)

	// Ensure trades of the same instrument share a single price fetch.
	report, err := h.monitor.RunSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, report.TradesChecked, uint32(2))
	assert.Equal(t, report.Transitions, uint32(0))

	h.mtx.Lock()
	calls := h.fetchCalls
	h.mtx.Unlock()
	assert.Equal(t, calls, 1)
}

func TestSweepTrends(t *testing.T) {
	h := setupHarness(t)
	h.subs.Subscribe("XAUUSD", "1")
	h.subs.Subscribe("XAUUSD", "2")
	h.subs.Subscribe("EURUSD", "3")
	h.setTrend("XAUUSD", true)
	h.fetchErrs["EURUSD"] = shared.ErrDataUnavailable

	// Ensure the first observation is stored without notifications.
	report, err := h.monitor.RunSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, report.InstrumentsChecked, uint32(1))
	assert.Equal(t, report.InstrumentsSkipped, uint32(1))
	assert.Equal(t, report.TrendChanges, uint32(0))
	assert.Equal(t, len(h.dispatched()), 0)

	trend, ok := h.subs.Trend("XAUUSD")
	assert.True(t, ok)
	assert.Equal(t, trend, shared.UpTrend)
	_, ok = h.subs.Trend("EURUSD")
	assert.False(t, ok)

	// Ensure an unchanged trend does not notify.
	_, err = h.monitor.RunSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, len(h.dispatched()), 0)

	// Ensure a trend change notifies every subscriber in subscription order.
	h.setTrend("XAUUSD", false)
	report, err = h.monitor.RunSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, report.TrendChanges, uint32(1))
	assert.Equal(t, report.Notifications, uint32(2))

	msgs := h.dispatched()
	assert.Equal(t, len(msgs), 2)
	assert.Equal(t, msgs[0].subscriber, "1")
	assert.Equal(t, msgs[1].subscriber, "2")
	assert.Equal(t, msgs[0].message, "📈 XAUUSD Trend Changed: Down trend")

	// Ensure insufficient trend history skips the instrument.
	h.mtx.Lock()
	h.trends["XAUUSD"] = h.trends["XAUUSD"][:10]
	h.mtx.Unlock()
	report, err = h.monitor.RunSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, report.InstrumentsSkipped, uint32(2))
	trend, _ = h.subs.Trend("XAUUSD")
	assert.Equal(t, trend, shared.DownTrend)
}

func TestSweepUnknownSubscribedInstrument(t *testing.T) {
	h := setupHarness(t)
	h.subs.Subscribe("UNKNOWN", "1")

	// Ensure an unresolvable instrument is skipped.
	report, err := h.monitor.RunSweep(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, report.InstrumentsSkipped, uint32(1))
}

func TestOverlappingSweep(t *testing.T) {
	h := setupHarness(t)
	openBuy(t, h.registry, "a", xauusd, "1")

	entered := make(chan struct{})
	release := make(chan struct{})
	h.monitor.cfg.FetchCandles = func(ctx context.Context, instrument shared.Instrument, timeframe shared.Timeframe) ([]shared.Candlestick, error) {
		close(entered)
		<-release
		return nil, shared.ErrDataUnavailable
	}

	done := make(chan error)
	go func() {
		_, err := h.monitor.RunSweep(context.Background())
		done <- err
	}()

	// Ensure a sweep requested while another is running is refused.
	<-entered
	_, err := h.monitor.RunSweep(context.Background())
	assert.True(t, errors.Is(err, ErrSweepInProgress))

	close(release)
	assert.NoError(t, <-done)
}

func TestMonitorRun(t *testing.T) {
	h := setupHarness(t)

	swept := make(chan struct{}, 1)
	h.monitor.cfg.Interval = time.Millisecond * 50
	h.monitor.cfg.ListOpenTrades = func() []position.Trade {
		select {
		case swept <- struct{}{}:
		default:
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.monitor.Run(ctx)
		close(done)
	}()

	// Ensure the monitor runs scheduled sweeps until cancelled.
	select {
	case <-swept:
	case <-time.After(time.Second * 5):
		t.Fatal("expected a scheduled sweep")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("expected the monitor to stop")
	}
}
