package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Talent12666/shadowfx/shared"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultFreshnessWindow is the default maximum age of a cached fetch.
	DefaultFreshnessWindow = time.Second * 60
	// DefaultOutputSize is the default number of candles fetched per request.
	DefaultOutputSize = 200
	// DefaultFetchTimeout is the default maximum duration of a shared fetch.
	DefaultFetchTimeout = time.Second * 10
)

// CacheConfig represents the market data cache configuration.
type CacheConfig struct {
	// Fetcher represents the external market data source.
	Fetcher shared.MarketFetcher
	// FreshnessWindow is the maximum age of a cached fetch before it must be refreshed.
	FreshnessWindow time.Duration
	// OutputSize is the number of candles requested per fetch.
	OutputSize int
	// FetchTimeout bounds a shared fetch, it is independent of any single caller.
	FetchTimeout time.Duration
	// Now returns the current time, defaults to time.Now.
	Now func() time.Time
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *CacheConfig) Validate() error {
	var errs error

	if cfg.Fetcher == nil {
		errs = errors.Join(errs, fmt.Errorf("market fetcher cannot be nil"))
	}
	if cfg.FreshnessWindow < 0 {
		errs = errors.Join(errs, fmt.Errorf("freshness window cannot be negative"))
	}
	if cfg.OutputSize < 0 {
		errs = errors.Join(errs, fmt.Errorf("output size cannot be negative"))
	}
	if cfg.FetchTimeout < 0 {
		errs = errors.Join(errs, fmt.Errorf("fetch timeout cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// cacheKey identifies a cache entry.
type cacheKey struct {
	instrument string
	timeframe  shared.Timeframe
}

// String stringifies the cache key.
func (k cacheKey) String() string {
	return k.instrument + "/" + k.timeframe.String()
}

// cacheEntry is a cached fetch. Entries are replaced wholesale, never mutated.
type cacheEntry struct {
	fetchedAt time.Time
	candles   []shared.Candlestick
}

// CacheStats represents the market data cache counters.
type CacheStats struct {
	Hits     uint64
	Misses   uint64
	Failures uint64
	Entries  int
}

// Cache is a time-windowed cache in front of the external market data source.
//
// Returned candle slices are shared between callers and must be treated as read-only.
type Cache struct {
	cfg        *CacheConfig
	entries    map[cacheKey]*cacheEntry
	entriesMtx sync.RWMutex
	inflight   singleflight.Group
	hits       atomic.Uint64
	misses     atomic.Uint64
	failures   atomic.Uint64
}

// NewCache initializes a new market data cache.
func NewCache(cfg *CacheConfig) (*Cache, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating cache config: %w", err)
	}

	if cfg.FreshnessWindow == 0 {
		cfg.FreshnessWindow = DefaultFreshnessWindow
	}
	if cfg.OutputSize == 0 {
		cfg.OutputSize = DefaultOutputSize
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Cache{
		cfg:     cfg,
		entries: make(map[cacheKey]*cacheEntry),
	}, nil
}

// fresh returns the candles of the entry for the provided key if it is within the freshness window.
func (c *Cache) fresh(key cacheKey) ([]shared.Candlestick, bool) {
	c.entriesMtx.RLock()
	entry, ok := c.entries[key]
	c.entriesMtx.RUnlock()

	if !ok || c.cfg.Now().Sub(entry.fetchedAt) >= c.cfg.FreshnessWindow {
		return nil, false
	}

	return entry.candles, true
}

// Fetch returns the candles for the provided instrument and timeframe, refetching
// synchronously when there is no entry within the freshness window. A failed
// refetch leaves any existing entry untouched and returns ErrDataUnavailable.
func (c *Cache) Fetch(ctx context.Context, instrument shared.Instrument, timeframe shared.Timeframe) ([]shared.Candlestick, error) {
	key := cacheKey{instrument: instrument.Symbol, timeframe: timeframe}

	candles, ok := c.fresh(key)
	if ok {
		c.hits.Inc()
		return candles, nil
	}

	// Concurrent misses for the same key share a single fetch. The fetch outlives
	// the caller that started it, each caller only stops waiting on its own context.
	ch := c.inflight.DoChan(key.String(), func() (interface{}, error) {
		candles, ok := c.fresh(key)
		if ok {
			c.hits.Inc()
			return candles, nil
		}

		c.misses.Inc()

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
		defer cancel()

		candles, err := c.cfg.Fetcher.FetchCandles(fetchCtx, instrument, timeframe, c.cfg.OutputSize)
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 {
			return nil, fmt.Errorf("no candles returned")
		}

		c.entriesMtx.Lock()
		c.entries[key] = &cacheEntry{fetchedAt: c.cfg.Now(), candles: candles}
		c.entriesMtx.Unlock()

		return candles, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		res.Err = ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		c.failures.Inc()
		c.cfg.Logger.Debug().Msgf("fetching %s candles: %v", key.String(), res.Err)
		return nil, fmt.Errorf("%w: fetching %s candles: %w", shared.ErrDataUnavailable, key.String(), res.Err)
	}

	return res.Val.([]shared.Candlestick), nil
}

// LatestClose returns the most recent close of the provided instrument on the provided timeframe.
func (c *Cache) LatestClose(ctx context.Context, instrument shared.Instrument, timeframe shared.Timeframe) (float64, error) {
	candles, err := c.Fetch(ctx, instrument, timeframe)
	if err != nil {
		return 0, err
	}

	return candles[0].Close, nil
}

// Stats returns the cache counters.
func (c *Cache) Stats() CacheStats {
	c.entriesMtx.RLock()
	entries := len(c.entries)
	c.entriesMtx.RUnlock()

	return CacheStats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Failures: c.failures.Load(),
		Entries:  entries,
	}
}
