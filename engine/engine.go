package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Talent12666/shadowfx/indicator"
	"github.com/Talent12666/shadowfx/shared"
	"github.com/rs/zerolog"
)

const (
	// minAnalysisCandles is the minimum analysis candles required, the most recent
	// candle may still be forming so the reference is the previous one.
	minAnalysisCandles = 2
	// minRiskCandles is the minimum risk candles required.
	minRiskCandles = 2
	// minEntryCandles is the minimum entry candles required.
	minEntryCandles = 1
)

// StopReference represents the timeframe whose previous candle supplies the stop loss.
type StopReference int

const (
	AnalysisStop StopReference = iota
	RiskStop
)

// String stringifies the provided stop reference.
func (s StopReference) String() string {
	switch s {
	case AnalysisStop:
		return "analysis"
	case RiskStop:
		return "risk"
	default:
		return "unknown"
	}
}

// ParseStopReference parses a stop reference from its string form.
func ParseStopReference(s string) (StopReference, error) {
	switch s {
	case "analysis", "":
		return AnalysisStop, nil
	case "risk":
		return RiskStop, nil
	default:
		return 0, fmt.Errorf("unknown stop reference: %q", s)
	}
}

// Policy represents the configurable parts of the breakout rule.
type Policy struct {
	// Analysis is the coarsest timeframe, its previous candle defines the breakout range.
	Analysis shared.Timeframe
	// Risk is the medium timeframe.
	Risk shared.Timeframe
	// Entry is the finest timeframe, its latest close is the entry price.
	Entry shared.Timeframe
	// Stop selects the timeframe whose previous candle supplies the stop loss.
	Stop StopReference
	// FirstTargetMultiple is the risk multiple of the first take profit.
	FirstTargetMultiple float64
	// SecondTargetMultiple is the risk multiple of the second take profit.
	SecondTargetMultiple float64
}

// DefaultPolicy returns the default breakout policy: 15m/5m/1m timeframes, the
// stop at the previous analysis candle and take profits at 2x and 4x risk.
func DefaultPolicy() Policy {
	return Policy{
		Analysis:             shared.FifteenMinute,
		Risk:                 shared.FiveMinute,
		Entry:                shared.OneMinute,
		Stop:                 AnalysisStop,
		FirstTargetMultiple:  2,
		SecondTargetMultiple: 4,
	}
}

// Validate asserts the policy sane inputs.
func (p *Policy) Validate() error {
	var errs error

	if p.FirstTargetMultiple <= 0 {
		errs = errors.Join(errs, fmt.Errorf("first target multiple must be positive"))
	}
	if p.SecondTargetMultiple <= p.FirstTargetMultiple {
		errs = errors.Join(errs, fmt.Errorf("second target multiple must exceed the first"))
	}
	if p.Stop != AnalysisStop && p.Stop != RiskStop {
		errs = errors.Join(errs, fmt.Errorf("unknown stop reference: %d", p.Stop))
	}
	for _, tf := range []shared.Timeframe{p.Analysis, p.Risk, p.Entry} {
		_, err := tf.Interval()
		if err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}

// Signal represents a breakout trade signal.
type Signal struct {
	Instrument  shared.Instrument
	Direction   shared.Direction
	Entry       float64
	StopLoss    float64
	Risk        float64
	TakeProfit1 float64
	TakeProfit2 float64
	// WinRate is the advisory percentage of positive analysis closes, only
	// meaningful when WinRateAvailable is set.
	WinRate          float64
	WinRateAvailable bool
	// Trend is the analysis timeframe trend.
	Trend     shared.Trend
	CreatedOn time.Time
}

// Evaluate applies the breakout rule to the provided newest-first candles. It
// fails closed with ErrDataUnavailable when any sequence is short and returns
// ErrNoSignal when the entry price stays within the previous analysis range.
func Evaluate(policy Policy, analysis, risk, entry []shared.Candlestick) (*Signal, error) {
	if len(analysis) < minAnalysisCandles {
		return nil, fmt.Errorf("%w: %d analysis candles, need %d", shared.ErrDataUnavailable,
			len(analysis), minAnalysisCandles)
	}
	if len(risk) < minRiskCandles {
		return nil, fmt.Errorf("%w: %d risk candles, need %d", shared.ErrDataUnavailable,
			len(risk), minRiskCandles)
	}
	if len(entry) < minEntryCandles {
		return nil, fmt.Errorf("%w: %d entry candles, need %d", shared.ErrDataUnavailable,
			len(entry), minEntryCandles)
	}

	prevHigh := analysis[1].High
	prevLow := analysis[1].Low

	stopHigh, stopLow := prevHigh, prevLow
	if policy.Stop == RiskStop {
		stopHigh, stopLow = risk[1].High, risk[1].Low
	}

	price := entry[0].Close
	signal := &Signal{Entry: price}

	// Boundaries are not breakouts.
	switch {
	case price > prevHigh:
		signal.Direction = shared.Buy
		signal.StopLoss = stopLow
	case price < prevLow:
		signal.Direction = shared.Sell
		signal.StopLoss = stopHigh
	default:
		return nil, shared.ErrNoSignal
	}

	signal.Risk = math.Abs(signal.Entry - signal.StopLoss)

	switch signal.Direction {
	case shared.Buy:
		if signal.StopLoss >= signal.Entry {
			return nil, fmt.Errorf("%w: stop %f not below entry %f", shared.ErrNoSignal,
				signal.StopLoss, signal.Entry)
		}
		signal.TakeProfit1 = signal.Entry + policy.FirstTargetMultiple*signal.Risk
		signal.TakeProfit2 = signal.Entry + policy.SecondTargetMultiple*signal.Risk
	case shared.Sell:
		if signal.StopLoss <= signal.Entry {
			return nil, fmt.Errorf("%w: stop %f not above entry %f", shared.ErrNoSignal,
				signal.StopLoss, signal.Entry)
		}
		signal.TakeProfit1 = signal.Entry - policy.FirstTargetMultiple*signal.Risk
		signal.TakeProfit2 = signal.Entry - policy.SecondTargetMultiple*signal.Risk
	}

	signal.WinRate, signal.WinRateAvailable = indicator.WinRate(analysis)
	signal.Trend = indicator.DetermineTrend(analysis)

	return signal, nil
}

// EngineConfig represents the signal engine configuration.
type EngineConfig struct {
	// Fetch fetches the candles of the provided instrument and timeframe.
	Fetch func(ctx context.Context, instrument shared.Instrument, timeframe shared.Timeframe) ([]shared.Candlestick, error)
	// Policy is the breakout policy.
	Policy Policy
	// Now returns the current time, defaults to time.Now.
	Now func() time.Time
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *EngineConfig) Validate() error {
	var errs error

	if cfg.Fetch == nil {
		errs = errors.Join(errs, fmt.Errorf("fetch function cannot be nil"))
	}
	err := cfg.Policy.Validate()
	if err != nil {
		errs = errors.Join(errs, err)
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Engine turns multi-timeframe market data into breakout signals.
type Engine struct {
	cfg *EngineConfig
}

// NewEngine initializes a new signal engine.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating engine config: %w", err)
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{cfg: cfg}, nil
}

// Policy returns the engine's breakout policy.
func (e *Engine) Policy() Policy {
	return e.cfg.Policy
}

// Analyze fetches the policy timeframes for the provided instrument and evaluates
// the breakout rule. Any unavailable timeframe fails the whole analysis.
func (e *Engine) Analyze(ctx context.Context, instrument shared.Instrument) (*Signal, error) {
	timeframes := []shared.Timeframe{e.cfg.Policy.Analysis, e.cfg.Policy.Risk, e.cfg.Policy.Entry}
	data := make([][]shared.Candlestick, len(timeframes))
	for idx, tf := range timeframes {
		candles, err := e.cfg.Fetch(ctx, instrument, tf)
		if err != nil {
			return nil, fmt.Errorf("analyzing %s: %w", instrument.Symbol, err)
		}

		data[idx] = candles
	}

	signal, err := Evaluate(e.cfg.Policy, data[0], data[1], data[2])
	if err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", instrument.Symbol, err)
	}

	signal.Instrument = instrument
	signal.CreatedOn = e.cfg.Now()

	e.cfg.Logger.Info().Msgf("%s breakout signal for %s @ %f, stop %f, tp1 %f, tp2 %f",
		signal.Direction.String(), instrument.Symbol, signal.Entry, signal.StopLoss,
		signal.TakeProfit1, signal.TakeProfit2)

	return signal, nil
}
