package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Talent12666/shadowfx/alert"
	"github.com/Talent12666/shadowfx/engine"
	"github.com/Talent12666/shadowfx/position"
	"github.com/Talent12666/shadowfx/shared"
	"github.com/rs/zerolog"
)

// Replies.
const (
	invalidCommandReply      = "❌ Invalid command. Send 'HI' for help"
	invalidStopAlertReply    = "❌ Invalid command format. Use: STOP ALERT XAUUSD"
	unsupportedAssetReply    = "❌ Unsupported asset. Send 'PAIRS' to see supported instruments."
	priceUnavailableReply    = "❌ Price unavailable"
	noOpenTradesReply        = "You have no open trades"
	internalErrorReplyFormat = "❌ Unable to process %s right now, try again shortly"
)

// Service defines the operations the command handler relies on.
type Service interface {
	// CreateTradeFromSignal analyzes the provided symbol and opens a trade for the
	// provided owner when the breakout rule fires.
	CreateTradeFromSignal(ctx context.Context, symbol string, owner string) (*position.Trade, *engine.Signal, error)
	// Subscribe subscribes the provided subscriber to trend alerts of the provided symbol.
	Subscribe(symbol string, subscriber string) (alert.SubscribeResult, error)
	// Unsubscribe unsubscribes the provided subscriber from trend alerts of the provided symbol.
	Unsubscribe(symbol string, subscriber string) (alert.UnsubscribeResult, error)
	// CurrentPrice returns the latest price of the provided symbol.
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	// Instruments returns the supported symbols.
	Instruments() []string
	// OpenTrades returns the open trades of the provided owner.
	OpenTrades(owner string) []position.Trade
	// Stats summarizes the closed trade history.
	Stats() position.Stats
}

// HandlerConfig represents the command handler configuration.
type HandlerConfig struct {
	// Service is the trade lifecycle service.
	Service Service
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *HandlerConfig) Validate() error {
	var errs error

	if cfg.Service == nil {
		errs = errors.Join(errs, fmt.Errorf("service cannot be nil"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Handler turns free-text commands into service calls and replies.
type Handler struct {
	cfg *HandlerConfig
}

// NewHandler initializes a new command handler.
func NewHandler(cfg *HandlerConfig) (*Handler, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating handler config: %w", err)
	}

	return &Handler{cfg: cfg}, nil
}

// Handle processes the provided command text sent by the provided subscriber and returns the reply.
func (h *Handler) Handle(ctx context.Context, subscriber string, text string) string {
	fields := strings.Fields(strings.ToUpper(text))
	if len(fields) == 0 {
		return invalidCommandReply
	}

	switch fields[0] {
	case "HI", "HELLO", "START", "/START":
		if len(fields) == 1 {
			return h.help()
		}
	case "PRICE":
		if len(fields) == 2 {
			return h.price(ctx, fields[1])
		}
	case "ALERT":
		if len(fields) == 2 {
			return h.subscribe(fields[1], subscriber)
		}
	case "STOP":
		if len(fields) >= 2 && fields[1] == "ALERT" {
			if len(fields) != 3 {
				return invalidStopAlertReply
			}
			return h.unsubscribe(fields[2], subscriber)
		}
	case "PAIRS":
		if len(fields) == 1 {
			return fmt.Sprintf("✅ Supported Pairs: %s", strings.Join(h.cfg.Service.Instruments(), ", "))
		}
	case "TRADES":
		if len(fields) == 1 {
			return h.trades(subscriber)
		}
	case "STATS":
		if len(fields) == 1 {
			return h.stats()
		}
	default:
		if len(fields) == 1 {
			return h.analyze(ctx, fields[0], subscriber)
		}
	}

	return invalidCommandReply
}

// help returns the welcome message.
func (h *Handler) help() string {
	return fmt.Sprintf("📈 ShadowFX Trading Bot 📈\n"+
		"Supported Instruments: %s\n\n"+
		"Commands:\n"+
		"➤ Analysis: XAUUSD\n"+
		"➤ Price: PRICE BTCUSD\n"+
		"➤ Alert: ALERT SPX\n"+
		"➤ Stop Alert: STOP ALERT XAUUSD\n"+
		"➤ Supported Pairs: PAIRS\n"+
		"➤ Open Trades: TRADES\n"+
		"➤ Trade Stats: STATS",
		strings.Join(h.cfg.Service.Instruments(), ", "))
}

// price returns the latest price of the provided symbol.
func (h *Handler) price(ctx context.Context, symbol string) string {
	price, err := h.cfg.Service.CurrentPrice(ctx, symbol)
	if err != nil {
		if errors.Is(err, shared.ErrUnknownInstrument) {
			return unsupportedAssetReply
		}

		h.cfg.Logger.Warn().Msgf("fetching %s price: %v", symbol, err)
		return priceUnavailableReply
	}

	return fmt.Sprintf("Current %s: %.5f", symbol, price)
}

// subscribe subscribes the provided subscriber to trend alerts of the provided symbol.
func (h *Handler) subscribe(symbol string, subscriber string) string {
	result, err := h.cfg.Service.Subscribe(symbol, subscriber)
	if err != nil {
		return unsupportedAssetReply
	}

	switch result {
	case alert.AlreadyActive:
		return fmt.Sprintf("⚠️ Already receiving alerts for %s", symbol)
	default:
		return fmt.Sprintf("✅ You will now receive alerts for %s", symbol)
	}
}

// unsubscribe unsubscribes the provided subscriber from trend alerts of the provided symbol.
func (h *Handler) unsubscribe(symbol string, subscriber string) string {
	result, err := h.cfg.Service.Unsubscribe(symbol, subscriber)
	if err != nil || result == alert.NotFound {
		return fmt.Sprintf("❌ No active alerts for %s", symbol)
	}

	return fmt.Sprintf("🚫 Alerts stopped for %s", symbol)
}

// formatWinRate formats the advisory win rate of the provided signal.
func formatWinRate(signal *engine.Signal) string {
	if !signal.WinRateAvailable {
		return "N/A"
	}

	return fmt.Sprintf("%.2f%%", signal.WinRate)
}

// analyze runs the breakout analysis of the provided symbol and reports the opened trade.
func (h *Handler) analyze(ctx context.Context, symbol string, subscriber string) string {
	trade, signal, err := h.cfg.Service.CreateTradeFromSignal(ctx, symbol, subscriber)
	switch {
	case errors.Is(err, shared.ErrUnknownInstrument):
		return invalidCommandReply
	case errors.Is(err, shared.ErrNoSignal):
		return fmt.Sprintf("No trading opportunity found for %s", symbol)
	case errors.Is(err, shared.ErrDataUnavailable):
		h.cfg.Logger.Warn().Msgf("analyzing %s: %v", symbol, err)
		return fmt.Sprintf("❌ Market data unavailable for %s, try again shortly", symbol)
	case err != nil:
		h.cfg.Logger.Error().Msgf("analyzing %s: %v", symbol, err)
		return fmt.Sprintf(internalErrorReplyFormat, symbol)
	}

	return fmt.Sprintf("📊 %s Analysis\n"+
		"Signal: %s\n"+
		"Winrate: %s\n"+
		"Trend: %s\n"+
		"Entry: %.5f\n"+
		"SL: %.5f\n"+
		"TP1: %.5f\n"+
		"TP2: %.5f\n"+
		"Trade: %s",
		symbol, trade.Direction.String(), formatWinRate(signal), signal.Trend.String(),
		trade.Entry, trade.StopLoss, trade.TakeProfit1, trade.TakeProfit2, trade.ID)
}

// trades lists the open trades of the provided subscriber.
func (h *Handler) trades(subscriber string) string {
	trades := h.cfg.Service.OpenTrades(subscriber)
	if len(trades) == 0 {
		return noOpenTradesReply
	}

	var b strings.Builder
	b.WriteString("📂 Open Trades")
	for _, trade := range trades {
		breakeven := ""
		if trade.BreakevenApplied {
			breakeven = " (breakeven)"
		}

		fmt.Fprintf(&b, "\n%s %s @ %.5f SL %.5f%s TP1 %.5f TP2 %.5f",
			trade.Instrument.Symbol, trade.Direction.String(), trade.Entry, trade.StopLoss,
			breakeven, trade.TakeProfit1, trade.TakeProfit2)
	}

	return b.String()
}

// stats summarizes the closed trade history.
func (h *Handler) stats() string {
	stats := h.cfg.Service.Stats()
	if stats.Total == 0 {
		return "No closed trades yet"
	}

	return fmt.Sprintf("📊 Trade Stats\nTotal: %d\nWins: %d\nLosses: %d\nWin rate: %.2f%%",
		stats.Total, stats.Wins, stats.Losses, stats.WinPercent)
}
