package alert

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Talent12666/shadowfx/shared"
	"github.com/rs/zerolog"
)

// SubscribeResult represents the result of a subscribe request.
type SubscribeResult int

const (
	Activated SubscribeResult = iota
	AlreadyActive
)

// String stringifies the provided subscribe result.
func (r SubscribeResult) String() string {
	switch r {
	case Activated:
		return "activated"
	case AlreadyActive:
		return "already active"
	default:
		return "unknown"
	}
}

// UnsubscribeResult represents the result of an unsubscribe request.
type UnsubscribeResult int

const (
	Removed UnsubscribeResult = iota
	NotFound
)

// String stringifies the provided unsubscribe result.
func (r UnsubscribeResult) String() string {
	switch r {
	case Removed:
		return "removed"
	case NotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// SubscriptionsConfig represents the alert subscriptions configuration.
type SubscriptionsConfig struct {
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *SubscriptionsConfig) Validate() error {
	var errs error

	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Subscriptions tracks trend alert subscribers per instrument and the last
// observed trend of every subscribed instrument.
type Subscriptions struct {
	cfg         *SubscriptionsConfig
	subscribers map[string][]string
	trends      map[string]shared.Trend
	mtx         sync.RWMutex
}

// NewSubscriptions initializes new alert subscriptions.
func NewSubscriptions(cfg *SubscriptionsConfig) (*Subscriptions, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating subscriptions config: %w", err)
	}

	return &Subscriptions{
		cfg:         cfg,
		subscribers: make(map[string][]string),
		trends:      make(map[string]shared.Trend),
	}, nil
}

// Subscribe adds the provided subscriber to the trend alerts of the provided instrument.
func (s *Subscriptions) Subscribe(instrument string, subscriber string) SubscribeResult {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if slices.Contains(s.subscribers[instrument], subscriber) {
		return AlreadyActive
	}

	s.subscribers[instrument] = append(s.subscribers[instrument], subscriber)
	s.cfg.Logger.Info().Msgf("%s subscribed to %s trend alerts", subscriber, instrument)

	return Activated
}

// Unsubscribe removes the provided subscriber from the trend alerts of the
// provided instrument. The stored trend of an instrument is dropped along with
// its last subscriber.
func (s *Subscriptions) Unsubscribe(instrument string, subscriber string) UnsubscribeResult {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	subs := s.subscribers[instrument]
	idx := slices.Index(subs, subscriber)
	if idx < 0 {
		return NotFound
	}

	subs = slices.Delete(slices.Clone(subs), idx, idx+1)
	if len(subs) == 0 {
		delete(s.subscribers, instrument)
		delete(s.trends, instrument)
	} else {
		s.subscribers[instrument] = subs
	}

	s.cfg.Logger.Info().Msgf("%s unsubscribed from %s trend alerts", subscriber, instrument)

	return Removed
}

// SubscribersOf returns a snapshot of the subscribers of the provided instrument
// in subscription order.
func (s *Subscriptions) SubscribersOf(instrument string) []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return slices.Clone(s.subscribers[instrument])
}

// Instruments returns the sorted instruments with at least one subscriber.
func (s *Subscriptions) Instruments() []string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	instruments := make([]string, 0, len(s.subscribers))
	for instrument := range s.subscribers {
		instruments = append(instruments, instrument)
	}
	slices.Sort(instruments)

	return instruments
}

// ObserveTrend records the provided trend as the current trend of the provided
// instrument. It reports the previous trend and whether the observation is a
// change from a known previous trend, a first observation is never a change.
// Observations for instruments without subscribers are ignored.
func (s *Subscriptions) ObserveTrend(instrument string, trend shared.Trend) (shared.Trend, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if len(s.subscribers[instrument]) == 0 {
		return shared.UnavailableTrend, false
	}

	prev, ok := s.trends[instrument]
	s.trends[instrument] = trend
	if !ok {
		return shared.UnavailableTrend, false
	}

	return prev, prev != trend
}

// Trend returns the last observed trend of the provided instrument.
func (s *Subscriptions) Trend(instrument string) (shared.Trend, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	trend, ok := s.trends[instrument]
	return trend, ok
}
