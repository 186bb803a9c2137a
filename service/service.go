package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Talent12666/shadowfx/alert"
	"github.com/Talent12666/shadowfx/engine"
	"github.com/Talent12666/shadowfx/fetch"
	"github.com/Talent12666/shadowfx/monitor"
	"github.com/Talent12666/shadowfx/position"
	"github.com/Talent12666/shadowfx/shared"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	// persistTimeout is the maximum duration allowed to persist a closed trade.
	persistTimeout = time.Second * 5
)

// ServiceConfig represents the configuration struct for the trade lifecycle service.
type ServiceConfig struct {
	// Fetcher represents the external market data source.
	Fetcher shared.MarketFetcher
	// Instruments is the supported instrument table.
	Instruments *shared.InstrumentTable
	// Policy is the breakout policy.
	Policy engine.Policy
	// FreshnessWindow is the market data cache freshness window.
	FreshnessWindow time.Duration
	// OutputSize is the number of candles requested per fetch.
	OutputSize int
	// SweepInterval is the condition monitor sweep interval.
	SweepInterval time.Duration
	// Dispatch sends the provided message to the provided subscriber.
	Dispatch func(subscriber string, message string)
	// PersistClosedTrade persists the provided closed trade, optional.
	PersistClosedTrade func(ctx context.Context, trade *position.Trade) error
	// Location is the location of the job scheduler, defaults to UTC.
	Location *time.Location
	// Logger is the service logger, defaults to the global logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *ServiceConfig) Validate() error {
	var errs error

	if cfg.Fetcher == nil {
		errs = errors.Join(errs, fmt.Errorf("market fetcher cannot be nil"))
	}
	if cfg.Instruments == nil {
		errs = errors.Join(errs, fmt.Errorf("instrument table cannot be nil"))
	}
	err := cfg.Policy.Validate()
	if err != nil {
		errs = errors.Join(errs, err)
	}
	if cfg.SweepInterval <= 0 {
		errs = errors.Join(errs, fmt.Errorf("sweep interval must be positive"))
	}
	if cfg.Dispatch == nil {
		errs = errors.Join(errs, fmt.Errorf("dispatch function cannot be nil"))
	}

	return errs
}

// Service monitors the lifecycle of breakout trades and trend alert subscriptions.
type Service struct {
	cfg           *ServiceConfig
	cache         *fetch.Cache
	engine        *engine.Engine
	registry      *position.Registry
	subscriptions *alert.Subscriptions
	monitor       *monitor.Monitor
	logger        *zerolog.Logger
	wg            sync.WaitGroup
}

// NewService initializes a new trade lifecycle service.
func NewService(cfg *ServiceConfig) (*Service, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating service config: %w", err)
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	base := log.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	logger := base.With().Str("service", "shadowfx").Logger()

	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	cacheLogger := logger.With().Str("component", "cache").Logger()
	cache, err := fetch.NewCache(&fetch.CacheConfig{
		Fetcher:         cfg.Fetcher,
		FreshnessWindow: cfg.FreshnessWindow,
		OutputSize:      cfg.OutputSize,
		Logger:          &cacheLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating market data cache: %w", err)
	}

	engineLogger := logger.With().Str("component", "engine").Logger()
	eng, err := engine.NewEngine(&engine.EngineConfig{
		Fetch:  cache.Fetch,
		Policy: cfg.Policy,
		Logger: &engineLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating signal engine: %w", err)
	}

	var persist func(trade *position.Trade) error
	if cfg.PersistClosedTrade != nil {
		persist = func(trade *position.Trade) error {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			return cfg.PersistClosedTrade(ctx, trade)
		}
	}

	registryLogger := logger.With().Str("component", "registry").Logger()
	registry, err := position.NewRegistry(&position.RegistryConfig{
		PersistClosedTrade: persist,
		Logger:             &registryLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating trade registry: %w", err)
	}

	subscriptionsLogger := logger.With().Str("component", "subscriptions").Logger()
	subscriptions, err := alert.NewSubscriptions(&alert.SubscriptionsConfig{
		Logger: &subscriptionsLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating alert subscriptions: %w", err)
	}

	monitorLogger := logger.With().Str("component", "monitor").Logger()
	mon, err := monitor.NewMonitor(&monitor.MonitorConfig{
		ListOpenTrades:        registry.ListOpen,
		ApplyPriceUpdate:      registry.ApplyPriceUpdate,
		SubscribedInstruments: subscriptions.Instruments,
		SubscribersOf:         subscriptions.SubscribersOf,
		ObserveTrend:          subscriptions.ObserveTrend,
		ResolveInstrument:     cfg.Instruments.Resolve,
		FetchCandles:          cache.Fetch,
		Dispatch:              cfg.Dispatch,
		PriceTimeframe:        shared.OneMinute,
		TrendTimeframe:        cfg.Policy.Analysis,
		Interval:              cfg.SweepInterval,
		JobScheduler:          gocron.NewScheduler(cfg.Location),
		Logger:                &monitorLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating condition monitor: %w", err)
	}

	return &Service{
		cfg:           cfg,
		cache:         cache,
		engine:        eng,
		registry:      registry,
		subscriptions: subscriptions,
		monitor:       mon,
		logger:        &logger,
	}, nil
}

// CreateTradeFromSignal analyzes the provided symbol and opens a trade for the
// provided owner when the breakout rule fires. It returns ErrNoSignal when the
// rule does not fire and ErrDataUnavailable when market data is missing, in
// both cases no trade is created.
func (s *Service) CreateTradeFromSignal(ctx context.Context, symbol string, owner string) (*position.Trade, *engine.Signal, error) {
	instrument, err := s.cfg.Instruments.Resolve(symbol)
	if err != nil {
		return nil, nil, err
	}

	signal, err := s.engine.Analyze(ctx, instrument)
	if err != nil {
		return nil, nil, err
	}

	trade, err := position.NewTrade(signal, owner, signal.CreatedOn)
	if err != nil {
		return nil, nil, fmt.Errorf("creating trade: %w", err)
	}

	err = s.registry.Open(trade)
	if err != nil {
		return nil, nil, fmt.Errorf("opening trade: %w", err)
	}

	return trade, signal, nil
}

// Subscribe subscribes the provided subscriber to trend alerts of the provided symbol.
func (s *Service) Subscribe(symbol string, subscriber string) (alert.SubscribeResult, error) {
	instrument, err := s.cfg.Instruments.Resolve(symbol)
	if err != nil {
		return 0, err
	}

	return s.subscriptions.Subscribe(instrument.Symbol, subscriber), nil
}

// Unsubscribe unsubscribes the provided subscriber from trend alerts of the provided symbol.
func (s *Service) Unsubscribe(symbol string, subscriber string) (alert.UnsubscribeResult, error) {
	instrument, err := s.cfg.Instruments.Resolve(symbol)
	if err != nil {
		return alert.NotFound, err
	}

	return s.subscriptions.Unsubscribe(instrument.Symbol, subscriber), nil
}

// CurrentPrice returns the latest one minute close of the provided symbol.
func (s *Service) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	instrument, err := s.cfg.Instruments.Resolve(symbol)
	if err != nil {
		return 0, err
	}

	return s.cache.LatestClose(ctx, instrument, shared.OneMinute)
}

// Instruments returns the supported symbols.
func (s *Service) Instruments() []string {
	return s.cfg.Instruments.Symbols()
}

// OpenTrades returns the open trades of the provided owner.
func (s *Service) OpenTrades(owner string) []position.Trade {
	return s.registry.ListOpenByOwner(owner)
}

// Stats summarizes the closed trade history.
func (s *Service) Stats() position.Stats {
	return s.registry.Stats()
}

// RunSweep runs a single condition monitor sweep.
func (s *Service) RunSweep(ctx context.Context) (monitor.SweepReport, error) {
	return s.monitor.RunSweep(ctx)
}

// Run handles the lifecycle processes of the service.
func (s *Service) Run(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		s.monitor.Run(ctx)
		s.wg.Done()
	}()

	s.logger.Info().Msgf("monitoring %d instruments, sweeping every %s",
		len(s.cfg.Instruments.Symbols()), s.cfg.SweepInterval)

	s.wg.Wait()

	stats := s.cache.Stats()
	s.logger.Info().Msgf("service stopped, cache hits %d, misses %d, failures %d",
		stats.Hits, stats.Misses, stats.Failures)
}
