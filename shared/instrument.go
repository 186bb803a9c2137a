package shared

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Instrument categories.
const (
	Forex       = "forex"
	Commodities = "commodities"
	Indices     = "indices"
	Crypto      = "crypto"
	ETF         = "etf"
	Stocks      = "stocks"
)

// Instrument represents a tradable symbol and its market data provider code.
type Instrument struct {
	// Symbol is the user facing symbol, e.g. XAUUSD.
	Symbol string `yaml:"symbol"`
	// Code is the provider code, e.g. XAU/USD.
	Code string `yaml:"code"`
	// Category is the provider asset category.
	Category string `yaml:"category"`
}

// DefaultInstruments is the supported instrument catalog.
var DefaultInstruments = []Instrument{
	// Forex majors.
	{Symbol: "EURUSD", Code: "EUR/USD", Category: Forex},
	{Symbol: "GBPUSD", Code: "GBP/USD", Category: Forex},
	{Symbol: "USDJPY", Code: "USD/JPY", Category: Forex},
	{Symbol: "AUDUSD", Code: "AUD/USD", Category: Forex},
	{Symbol: "USDCAD", Code: "USD/CAD", Category: Forex},
	{Symbol: "USDCHF", Code: "USD/CHF", Category: Forex},
	{Symbol: "NZDUSD", Code: "NZD/USD", Category: Forex},

	{Symbol: "XAUUSD", Code: "XAU/USD", Category: Commodities},
	{Symbol: "XAGUSD", Code: "XAG/USD", Category: Commodities},
	{Symbol: "XPTUSD", Code: "XPT/USD", Category: Commodities},
	{Symbol: "XPDUSD", Code: "XPD/USD", Category: Commodities},
	{Symbol: "CL1", Code: "CL/F", Category: Commodities},
	{Symbol: "NG1", Code: "NG/F", Category: Commodities},

	{Symbol: "SPX", Code: "SPX", Category: Indices},
	{Symbol: "NDX", Code: "NDX", Category: Indices},
	{Symbol: "DJI", Code: "DJI", Category: Indices},
	{Symbol: "FTSE", Code: "FTSE", Category: Indices},
	{Symbol: "DAX", Code: "DAX", Category: Indices},
	{Symbol: "NIKKEI", Code: "NIKKEI", Category: Indices},

	{Symbol: "BTCUSD", Code: "BTC/USD", Category: Crypto},
	{Symbol: "ETHUSD", Code: "ETH/USD", Category: Crypto},
	{Symbol: "XRPUSD", Code: "XRP/USD", Category: Crypto},
	{Symbol: "LTCUSD", Code: "LTC/USD", Category: Crypto},

	{Symbol: "SPY", Code: "SPY", Category: ETF},
	{Symbol: "QQQ", Code: "QQQ", Category: ETF},
	{Symbol: "GLD", Code: "GLD", Category: ETF},

	{Symbol: "AAPL", Code: "AAPL", Category: Stocks},
	{Symbol: "TSLA", Code: "TSLA", Category: Stocks},
	{Symbol: "AMZN", Code: "AMZN", Category: Stocks},
	{Symbol: "GOOGL", Code: "GOOGL", Category: Stocks},
	{Symbol: "MSFT", Code: "MSFT", Category: Stocks},
}

// InstrumentTable resolves user facing symbols to instruments. It is read-only
// once created and safe for concurrent use.
type InstrumentTable struct {
	instruments map[string]Instrument
	symbols     []string
}

// NewInstrumentTable initializes an instrument table from the provided instruments.
func NewInstrumentTable(instruments []Instrument) (*InstrumentTable, error) {
	if len(instruments) == 0 {
		return nil, errors.New("no instruments provided")
	}

	table := &InstrumentTable{
		instruments: make(map[string]Instrument, len(instruments)),
		symbols:     make([]string, 0, len(instruments)),
	}

	for idx := range instruments {
		inst := instruments[idx]
		inst.Symbol = strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if inst.Symbol == "" {
			return nil, fmt.Errorf("instrument at index %d has no symbol", idx)
		}
		if inst.Code == "" {
			return nil, fmt.Errorf("instrument %s has no provider code", inst.Symbol)
		}
		if _, ok := table.instruments[inst.Symbol]; ok {
			return nil, fmt.Errorf("duplicate instrument symbol: %s", inst.Symbol)
		}

		table.instruments[inst.Symbol] = inst
		table.symbols = append(table.symbols, inst.Symbol)
	}

	return table, nil
}

// DefaultInstrumentTable returns the table of the default instrument catalog.
func DefaultInstrumentTable() *InstrumentTable {
	table, err := NewInstrumentTable(DefaultInstruments)
	if err != nil {
		// The default catalog is static.
		panic(err)
	}

	return table
}

// LoadInstruments loads an instrument table from the yaml file at the provided path.
//
// The file is expected to hold an `instruments` list of symbol, code and category entries.
func LoadInstruments(path string) (*InstrumentTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading instruments file '%s': %w", path, err)
	}

	var catalog struct {
		Instruments []Instrument `yaml:"instruments"`
	}

	err = yaml.Unmarshal(b, &catalog)
	if err != nil {
		return nil, fmt.Errorf("parsing instruments file '%s': %w", path, err)
	}

	return NewInstrumentTable(catalog.Instruments)
}

// Resolve returns the instrument for the provided user facing symbol.
func (t *InstrumentTable) Resolve(symbol string) (Instrument, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	inst, ok := t.instruments[symbol]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, symbol)
	}

	return inst, nil
}

// Symbols returns the supported symbols in catalog order.
func (t *InstrumentTable) Symbols() []string {
	return append([]string(nil), t.symbols...)
}
