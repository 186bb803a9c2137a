package database

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Talent12666/shadowfx/position"
	"github.com/davecgh/go-spew/spew"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"
)

const (
	// SQL statements.
	createTradeTableSQL   = "CREATE TABLE IF NOT EXISTS trade (id TEXT PRIMARY KEY, instrument TEXT, direction TEXT, entry REAL, stoploss REAL, initialstoploss REAL, takeprofit1 REAL, takeprofit2 REAL, breakeven INTEGER, owner TEXT, state TEXT, exitprice REAL, pnlpercent REAL, createdon INTEGER, closedon INTEGER)"
	createOutcomeTableSQL = "CREATE TABLE IF NOT EXISTS outcome (id TEXT PRIMARY KEY, instrument TEXT, total INTEGER, wins INTEGER, losses INTEGER, createdon INTEGER)"
	persistClosedTradeSQL = "INSERT INTO trade(id, instrument, direction, entry, stoploss, initialstoploss, takeprofit1, takeprofit2, breakeven, owner, state, exitprice, pnlpercent, createdon, closedon) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"
	upsertOutcomeSQL      = "INSERT INTO outcome(id, instrument, total, wins, losses, createdon) VALUES(?,?,1,?,?,?) ON CONFLICT(id) DO UPDATE SET total = total + 1, wins = wins + excluded.wins, losses = losses + excluded.losses"
)

// TradeStorer defines the requirements for storing closed trades.
type TradeStorer interface {
	// PersistClosedTrade stores the provided closed trade to the database.
	PersistClosedTrade(ctx context.Context, trade *position.Trade) error
}

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *DatabaseConfig) Validate() error {
	var errs error

	if cfg.Endpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the TradeStorer interface.
var _ TradeStorer = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating database config: %w", err)
	}

	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	if cfg.User != "" {
		client.SetBasicAuth(cfg.User, cfg.Pass)
	}

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// execute runs the provided statements in a transaction and surfaces statement errors.
func (db *Database) execute(ctx context.Context, stmts rqlitehttp.SQLStatements) error {
	resp, err := db.client.Execute(ctx, stmts, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("statement %d: %s", idx, errStr)
	}

	return nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	return db.execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createTradeTableSQL},
		{SQL: createOutcomeTableSQL},
	})
}

// generateOutcomeID generates deterministic ids for outcome rows using the
// month, week and instrument of the provided time.
func generateOutcomeID(closedOn time.Time, instrument string) string {
	month := closedOn.Month().String()
	week := (closedOn.Day()-1)/7 + 1

	return fmt.Sprintf("%d-%s-Week-%d-%s", closedOn.Year(), month, week, instrument)
}

// outcomeCounts returns the win and loss increments of the provided closed trade.
func outcomeCounts(trade *position.Trade) (int, int, bool) {
	switch trade.State {
	case position.ClosedWin:
		return 1, 0, true
	case position.ClosedLoss:
		return 0, 1, true
	default:
		return 0, 0, false
	}
}

// PersistClosedTrade stores the provided closed trade and updates the weekly
// outcome of its instrument.
func (db *Database) PersistClosedTrade(ctx context.Context, trade *position.Trade) error {
	win, loss, ok := outcomeCounts(trade)
	if !ok {
		db.cfg.Logger.Error().Msgf("unexpected trade state for outcome calculations: %s", spew.Sdump(trade))
		return fmt.Errorf("trade %s is not closed: %s", trade.ID, trade.State.String())
	}

	closedOn := trade.ClosedOn
	if closedOn.IsZero() {
		closedOn = time.Now()
	}

	id := generateOutcomeID(closedOn.UTC(), trade.Instrument.Symbol)
	err := db.execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL: persistClosedTradeSQL,
			PositionalParams: []any{trade.ID, trade.Instrument.Symbol, trade.Direction.String(),
				trade.Entry, trade.StopLoss, trade.InitialStopLoss, trade.TakeProfit1, trade.TakeProfit2,
				trade.BreakevenApplied, trade.Owner, trade.State.String(), trade.ExitPrice,
				trade.PNLPercent(trade.ExitPrice), trade.CreatedOn.Unix(), closedOn.Unix()},
		},
		{
			SQL:              upsertOutcomeSQL,
			PositionalParams: []any{id, trade.Instrument.Symbol, win, loss, closedOn.Unix()},
		},
	})
	if err != nil {
		return fmt.Errorf("persisting closed trade %s: %w", trade.ID, err)
	}

	return nil
}
