package position

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Talent12666/shadowfx/shared"
	"github.com/rs/zerolog"
)

// Outcome represents the result of applying a price update to an open trade.
type Outcome int

const (
	NoTransition Outcome = iota
	StopLossHit
	TakeProfitHit
	BreakevenMoved
)

// String stringifies the provided outcome.
func (o Outcome) String() string {
	switch o {
	case NoTransition:
		return "no transition"
	case StopLossHit:
		return "stop loss hit"
	case TakeProfitHit:
		return "take profit hit"
	case BreakevenMoved:
		return "breakeven moved"
	default:
		return "unknown"
	}
}

// Update represents the result of a price update, Trade is a snapshot of the
// trade after the update was applied.
type Update struct {
	Outcome Outcome
	Trade   Trade
}

// Stats represents a summary of the closed trade history.
type Stats struct {
	Total      int
	Wins       int
	Losses     int
	WinPercent float64
}

// RegistryConfig represents the trade registry configuration.
type RegistryConfig struct {
	// PersistClosedTrade persists the provided closed trade, optional.
	PersistClosedTrade func(trade *Trade) error
	// Now returns the current time, defaults to time.Now.
	Now func() time.Time
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *RegistryConfig) Validate() error {
	var errs error

	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Registry tracks open trades and the outcomes of closed ones.
type Registry struct {
	cfg       *RegistryConfig
	trades    map[string]*Trade
	history   []bool
	tradesMtx sync.RWMutex
}

// NewRegistry initializes a new trade registry.
func NewRegistry(cfg *RegistryConfig) (*Registry, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating registry config: %w", err)
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Registry{
		cfg:    cfg,
		trades: make(map[string]*Trade),
	}, nil
}

// Open starts tracking the provided trade.
func (r *Registry) Open(trade *Trade) error {
	if trade == nil {
		return fmt.Errorf("trade cannot be nil")
	}
	if trade.State != Open {
		return fmt.Errorf("%w: cannot open trade %s in state %s", shared.ErrInvalidTransition,
			trade.ID, trade.State.String())
	}

	r.tradesMtx.Lock()
	defer r.tradesMtx.Unlock()

	_, ok := r.trades[trade.ID]
	if ok {
		return fmt.Errorf("trade %s already exists", trade.ID)
	}

	stored := *trade
	r.trades[trade.ID] = &stored

	r.cfg.Logger.Info().Msgf("opened %s trade %s for %s @ %f, stop %f, tp1 %f, tp2 %f",
		trade.Direction.String(), trade.ID, trade.Instrument.Symbol, trade.Entry,
		trade.StopLoss, trade.TakeProfit1, trade.TakeProfit2)

	return nil
}

// sortedSnapshot returns copies of the provided trades ordered by creation time.
func sortedSnapshot(trades []*Trade) []Trade {
	snapshot := make([]Trade, 0, len(trades))
	for _, trade := range trades {
		snapshot = append(snapshot, *trade)
	}

	slices.SortFunc(snapshot, func(a, b Trade) int {
		cmp := a.CreatedOn.Compare(b.CreatedOn)
		if cmp != 0 {
			return cmp
		}
		return strings.Compare(a.ID, b.ID)
	})

	return snapshot
}

// ListOpen returns a snapshot of the open trades.
func (r *Registry) ListOpen() []Trade {
	r.tradesMtx.RLock()
	defer r.tradesMtx.RUnlock()

	trades := make([]*Trade, 0, len(r.trades))
	for _, trade := range r.trades {
		trades = append(trades, trade)
	}

	return sortedSnapshot(trades)
}

// ListOpenByOwner returns a snapshot of the open trades of the provided owner.
func (r *Registry) ListOpenByOwner(owner string) []Trade {
	r.tradesMtx.RLock()
	defer r.tradesMtx.RUnlock()

	trades := []*Trade{}
	for _, trade := range r.trades {
		if trade.Owner == owner {
			trades = append(trades, trade)
		}
	}

	return sortedSnapshot(trades)
}

// Get returns a snapshot of the open trade with the provided id.
func (r *Registry) Get(id string) (Trade, error) {
	r.tradesMtx.RLock()
	defer r.tradesMtx.RUnlock()

	trade, ok := r.trades[id]
	if !ok {
		return Trade{}, fmt.Errorf("%w: %s", shared.ErrTradeNotFound, id)
	}

	return *trade, nil
}

// closeLocked transitions the provided trade to a closed state, removes it from
// the open set and records its outcome. The caller must hold the trades lock.
func (r *Registry) closeLocked(trade *Trade, state State, price float64) {
	trade.State = state
	trade.ExitPrice = price
	trade.ClosedOn = r.cfg.Now()

	delete(r.trades, trade.ID)
	r.history = append(r.history, state == ClosedWin)
}

// persist hands the provided closed trade to the persistence hook if one is set.
func (r *Registry) persist(trade Trade) {
	if r.cfg.PersistClosedTrade == nil {
		return
	}

	err := r.cfg.PersistClosedTrade(&trade)
	if err != nil {
		r.cfg.Logger.Error().Msgf("persisting closed trade %s: %v", trade.ID, err)
	}
}

// ApplyPriceUpdate evaluates the transition rules of the open trade with the
// provided id against the provided price. A stop loss hit outranks a second take
// profit hit which in turn outranks moving the stop to breakeven, only the first
// matching rule is applied.
func (r *Registry) ApplyPriceUpdate(id string, price float64) (Update, error) {
	r.tradesMtx.Lock()

	trade, ok := r.trades[id]
	if !ok {
		r.tradesMtx.Unlock()
		return Update{}, fmt.Errorf("%w: %s", shared.ErrTradeNotFound, id)
	}
	if trade.State != Open {
		r.tradesMtx.Unlock()
		return Update{}, fmt.Errorf("%w: trade %s is %s", shared.ErrInvalidTransition,
			id, trade.State.String())
	}

	update := Update{Outcome: NoTransition}
	switch {
	case trade.stopLossHit(price):
		r.closeLocked(trade, ClosedLoss, price)
		update.Outcome = StopLossHit
	case trade.takeProfit2Hit(price):
		r.closeLocked(trade, ClosedWin, price)
		update.Outcome = TakeProfitHit
	case !trade.BreakevenApplied && trade.takeProfit1Hit(price):
		trade.StopLoss = trade.Entry
		trade.BreakevenApplied = true
		update.Outcome = BreakevenMoved
	}

	update.Trade = *trade
	r.tradesMtx.Unlock()

	switch update.Outcome {
	case StopLossHit, TakeProfitHit:
		r.cfg.Logger.Info().Msgf("closed %s trade %s for %s @ %f (%s)",
			update.Trade.Direction.String(), id, update.Trade.Instrument.Symbol, price,
			update.Trade.State.String())
		r.persist(update.Trade)
	case BreakevenMoved:
		r.cfg.Logger.Info().Msgf("moved stop of trade %s to breakeven @ %f", id, update.Trade.Entry)
	}

	return update, nil
}

// Close closes the open trade with the provided id using the provided closed
// state and exit price.
func (r *Registry) Close(id string, state State, price float64) (Trade, error) {
	if state != ClosedWin && state != ClosedLoss {
		return Trade{}, fmt.Errorf("%w: cannot close trade %s as %s", shared.ErrInvalidTransition,
			id, state.String())
	}

	r.tradesMtx.Lock()
	trade, ok := r.trades[id]
	if !ok {
		r.tradesMtx.Unlock()
		return Trade{}, fmt.Errorf("%w: %s", shared.ErrTradeNotFound, id)
	}

	r.closeLocked(trade, state, price)
	closed := *trade
	r.tradesMtx.Unlock()

	r.cfg.Logger.Info().Msgf("closed trade %s for %s @ %f (%s)", id, closed.Instrument.Symbol,
		price, closed.State.String())
	r.persist(closed)

	return closed, nil
}

// History returns a copy of the closed trade outcomes, true marks a win.
func (r *Registry) History() []bool {
	r.tradesMtx.RLock()
	defer r.tradesMtx.RUnlock()

	return slices.Clone(r.history)
}

// Stats summarizes the closed trade history.
func (r *Registry) Stats() Stats {
	r.tradesMtx.RLock()
	defer r.tradesMtx.RUnlock()

	var stats Stats
	for _, win := range r.history {
		stats.Total++
		if win {
			stats.Wins++
			continue
		}
		stats.Losses++
	}

	if stats.Total > 0 {
		stats.WinPercent = float64(stats.Wins) / float64(stats.Total) * 100
	}

	return stats
}
