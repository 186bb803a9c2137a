package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Talent12666/shadowfx/indicator"
	"github.com/Talent12666/shadowfx/position"
	"github.com/Talent12666/shadowfx/shared"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	// maxWorkers is the maximum number of concurrent fetch workers.
	maxWorkers = 8
	// DefaultInterval is the default sweep interval.
	DefaultInterval = time.Minute * 5
)

// ErrSweepInProgress is returned when a sweep is requested while another is running.
var ErrSweepInProgress = errors.New("sweep in progress")

// MonitorConfig represents the condition monitor configuration.
type MonitorConfig struct {
	// ListOpenTrades returns a snapshot of the open trades.
	ListOpenTrades func() []position.Trade
	// ApplyPriceUpdate applies the provided price to the open trade with the provided id.
	ApplyPriceUpdate func(id string, price float64) (position.Update, error)
	// SubscribedInstruments returns the instruments with at least one trend subscriber.
	SubscribedInstruments func() []string
	// SubscribersOf returns the trend subscribers of the provided instrument.
	SubscribersOf func(instrument string) []string
	// ObserveTrend records the current trend of the provided instrument and reports
	// the previous trend and whether it changed.
	ObserveTrend func(instrument string, trend shared.Trend) (shared.Trend, bool)
	// ResolveInstrument resolves the provided symbol to a supported instrument.
	ResolveInstrument func(symbol string) (shared.Instrument, error)
	// FetchCandles fetches the candles of the provided instrument and timeframe.
	FetchCandles func(ctx context.Context, instrument shared.Instrument, timeframe shared.Timeframe) ([]shared.Candlestick, error)
	// Dispatch sends the provided message to the provided subscriber.
	Dispatch func(subscriber string, message string)
	// PriceTimeframe is the timeframe of the latest trade price.
	PriceTimeframe shared.Timeframe
	// TrendTimeframe is the timeframe trends are determined on.
	TrendTimeframe shared.Timeframe
	// Interval is the sweep interval.
	Interval time.Duration
	// JobScheduler represents the job scheduler.
	JobScheduler *gocron.Scheduler
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *MonitorConfig) Validate() error {
	var errs error

	if cfg.ListOpenTrades == nil {
		errs = errors.Join(errs, fmt.Errorf("list open trades function cannot be nil"))
	}
	if cfg.ApplyPriceUpdate == nil {
		errs = errors.Join(errs, fmt.Errorf("apply price update function cannot be nil"))
	}
	if cfg.SubscribedInstruments == nil {
		errs = errors.Join(errs, fmt.Errorf("subscribed instruments function cannot be nil"))
	}
	if cfg.SubscribersOf == nil {
		errs = errors.Join(errs, fmt.Errorf("subscribers of function cannot be nil"))
	}
	if cfg.ObserveTrend == nil {
		errs = errors.Join(errs, fmt.Errorf("observe trend function cannot be nil"))
	}
	if cfg.ResolveInstrument == nil {
		errs = errors.Join(errs, fmt.Errorf("resolve instrument function cannot be nil"))
	}
	if cfg.FetchCandles == nil {
		errs = errors.Join(errs, fmt.Errorf("fetch candles function cannot be nil"))
	}
	if cfg.Dispatch == nil {
		errs = errors.Join(errs, fmt.Errorf("dispatch function cannot be nil"))
	}
	if cfg.Interval <= 0 {
		errs = errors.Join(errs, fmt.Errorf("sweep interval must be positive"))
	}
	if cfg.JobScheduler == nil {
		errs = errors.Join(errs, fmt.Errorf("job scheduler cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// SweepReport summarizes a sweep.
type SweepReport struct {
	TradesChecked      uint32
	TradesSkipped      uint32
	Transitions        uint32
	InstrumentsChecked uint32
	InstrumentsSkipped uint32
	TrendChanges       uint32
	Notifications      uint32
}

// sweepCounters tracks the progress of a sweep across workers.
type sweepCounters struct {
	tradesChecked      atomic.Uint32
	tradesSkipped      atomic.Uint32
	transitions        atomic.Uint32
	instrumentsChecked atomic.Uint32
	instrumentsSkipped atomic.Uint32
	trendChanges       atomic.Uint32
	notifications      atomic.Uint32
}

// report returns the sweep report of the counters.
func (c *sweepCounters) report() SweepReport {
	return SweepReport{
		TradesChecked:      c.tradesChecked.Load(),
		TradesSkipped:      c.tradesSkipped.Load(),
		Transitions:        c.transitions.Load(),
		InstrumentsChecked: c.instrumentsChecked.Load(),
		InstrumentsSkipped: c.instrumentsSkipped.Load(),
		TrendChanges:       c.trendChanges.Load(),
		Notifications:      c.notifications.Load(),
	}
}

// Monitor periodically re-evaluates open trades and trend subscriptions.
type Monitor struct {
	cfg      *MonitorConfig
	sweeping atomic.Bool
	workers  chan struct{}
}

// NewMonitor initializes a new condition monitor.
func NewMonitor(cfg *MonitorConfig) (*Monitor, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating monitor config: %w", err)
	}

	return &Monitor{
		cfg:     cfg,
		workers: make(chan struct{}, maxWorkers),
	}, nil
}

// dispatch sends the provided message to the provided subscriber.
func (m *Monitor) dispatch(counters *sweepCounters, subscriber string, message string) {
	m.cfg.Dispatch(subscriber, message)
	counters.notifications.Inc()
}

// transitionMessage returns the owner notification of the provided price update.
func transitionMessage(update position.Update, price float64) string {
	trade := update.Trade
	switch update.Outcome {
	case position.StopLossHit:
		return fmt.Sprintf("🛑 %s %s stop loss hit @ %.5f, trade %s closed as a loss",
			trade.Instrument.Symbol, trade.Direction.String(), price, trade.ID)
	case position.TakeProfitHit:
		return fmt.Sprintf("🎯 %s %s TP2 hit @ %.5f, trade %s closed as a win",
			trade.Instrument.Symbol, trade.Direction.String(), price, trade.ID)
	case position.BreakevenMoved:
		return fmt.Sprintf("🔒 %s %s TP1 reached @ %.5f, stop loss moved to breakeven %.5f for trade %s",
			trade.Instrument.Symbol, trade.Direction.String(), price, trade.StopLoss, trade.ID)
	default:
		return ""
	}
}

// checkTrades fetches the latest price of every instrument with open trades and
// applies it to those trades. A failed fetch only skips the trades of that instrument.
func (m *Monitor) checkTrades(ctx context.Context, counters *sweepCounters) {
	trades := m.cfg.ListOpenTrades()
	if len(trades) == 0 {
		return
	}

	groups := make(map[string][]position.Trade)
	order := []string{}
	for _, trade := range trades {
		symbol := trade.Instrument.Symbol
		_, ok := groups[symbol]
		if !ok {
			order = append(order, symbol)
		}
		groups[symbol] = append(groups[symbol], trade)
	}

	var wg sync.WaitGroup
	for _, symbol := range order {
		group := groups[symbol]

		m.workers <- struct{}{}
		wg.Add(1)
		go func(group []position.Trade) {
			defer func() {
				<-m.workers
				wg.Done()
			}()

			m.checkInstrumentTrades(ctx, counters, group)
		}(group)
	}

	wg.Wait()
}

// checkInstrumentTrades applies the latest price to the provided trades of a single instrument.
func (m *Monitor) checkInstrumentTrades(ctx context.Context, counters *sweepCounters, trades []position.Trade) {
	instrument := trades[0].Instrument

	// Fetch before touching the registry, the registry lock is never held across I/O.
	candles, err := m.cfg.FetchCandles(ctx, instrument, m.cfg.PriceTimeframe)
	if err == nil && len(candles) == 0 {
		err = fmt.Errorf("%w: no %s candles for %s", shared.ErrDataUnavailable,
			m.cfg.PriceTimeframe.String(), instrument.Symbol)
	}
	if err != nil {
		m.cfg.Logger.Warn().Msgf("skipping %d %s trade(s): %v", len(trades), instrument.Symbol, err)
		counters.tradesSkipped.Add(uint32(len(trades)))
		return
	}

	price := candles[0].Close
	for _, trade := range trades {
		update, err := m.cfg.ApplyPriceUpdate(trade.ID, price)
		if err != nil {
			// The trade may have been closed since the snapshot was taken.
			m.cfg.Logger.Warn().Msgf("applying price update to trade %s: %v", trade.ID, err)
			counters.tradesSkipped.Inc()
			continue
		}

		counters.tradesChecked.Inc()
		if update.Outcome == position.NoTransition {
			continue
		}

		counters.transitions.Inc()
		if update.Trade.Owner != "" {
			m.dispatch(counters, update.Trade.Owner, transitionMessage(update, price))
		}
	}
}

// trendMessage returns the trend change notification of the provided instrument.
func trendMessage(symbol string, trend shared.Trend) string {
	return fmt.Sprintf("📈 %s Trend Changed: %s", symbol, trend.String())
}

// checkTrends recomputes the trend of every subscribed instrument and notifies
// subscribers of changes.
func (m *Monitor) checkTrends(ctx context.Context, counters *sweepCounters) {
	instruments := m.cfg.SubscribedInstruments()

	var wg sync.WaitGroup
	for _, symbol := range instruments {
		m.workers <- struct{}{}
		wg.Add(1)
		go func(symbol string) {
			defer func() {
				<-m.workers
				wg.Done()
			}()

			m.checkTrend(ctx, counters, symbol)
		}(symbol)
	}

	wg.Wait()
}

// checkTrend recomputes the trend of the provided instrument.
func (m *Monitor) checkTrend(ctx context.Context, counters *sweepCounters, symbol string) {
	instrument, err := m.cfg.ResolveInstrument(symbol)
	if err != nil {
		m.cfg.Logger.Error().Msgf("resolving subscribed instrument %s: %v", symbol, err)
		counters.instrumentsSkipped.Inc()
		return
	}

	candles, err := m.cfg.FetchCandles(ctx, instrument, m.cfg.TrendTimeframe)
	if err == nil && len(candles) < indicator.SlowTrendPeriod {
		err = fmt.Errorf("%w: %d %s candles for %s, need %d", shared.ErrDataUnavailable,
			len(candles), m.cfg.TrendTimeframe.String(), symbol, indicator.SlowTrendPeriod)
	}
	if err != nil {
		m.cfg.Logger.Warn().Msgf("skipping %s trend: %v", symbol, err)
		counters.instrumentsSkipped.Inc()
		return
	}

	counters.instrumentsChecked.Inc()

	trend := indicator.DetermineTrend(candles)
	prev, changed := m.cfg.ObserveTrend(symbol, trend)
	if !changed {
		return
	}

	counters.trendChanges.Inc()
	m.cfg.Logger.Info().Msgf("%s trend changed from %s to %s", symbol, prev.String(), trend.String())

	msg := trendMessage(symbol, trend)
	for _, subscriber := range m.cfg.SubscribersOf(symbol) {
		m.dispatch(counters, subscriber, msg)
	}
}

// RunSweep evaluates every open trade and every trend subscription once. A
// sweep requested while another is running is refused with ErrSweepInProgress.
func (m *Monitor) RunSweep(ctx context.Context) (SweepReport, error) {
	if !m.sweeping.CAS(false, true) {
		return SweepReport{}, ErrSweepInProgress
	}
	defer m.sweeping.Store(false)

	start := time.Now()
	counters := &sweepCounters{}

	m.checkTrades(ctx, counters)
	m.checkTrends(ctx, counters)

	report := counters.report()
	m.cfg.Logger.Info().Msgf("sweep done in %s: %d trade(s) checked, %d skipped, %d transition(s), "+
		"%d instrument(s) checked, %d skipped, %d trend change(s), %d notification(s)",
		time.Since(start), report.TradesChecked, report.TradesSkipped, report.Transitions,
		report.InstrumentsChecked, report.InstrumentsSkipped, report.TrendChanges, report.Notifications)

	return report, nil
}

// Run schedules periodic sweeps until the provided context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	_, err := m.cfg.JobScheduler.Every(m.cfg.Interval).SingletonMode().Do(func() {
		_, err := m.RunSweep(ctx)
		if err != nil {
			m.cfg.Logger.Error().Msgf("running sweep: %v", err)
		}
	})
	if err != nil {
		m.cfg.Logger.Error().Msgf("scheduling sweep job: %v", err)
		return
	}

	m.cfg.JobScheduler.StartAsync()

	<-ctx.Done()
	m.cfg.JobScheduler.Stop()
}
