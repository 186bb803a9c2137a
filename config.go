package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/Talent12666/shadowfx/engine"
	"github.com/Talent12666/shadowfx/fetch"
	"github.com/Talent12666/shadowfx/monitor"
	"github.com/Talent12666/shadowfx/shared"
	"github.com/joho/godotenv"
)

const (
	// defaultListenAddress is the default command webhook listen address.
	defaultListenAddress = ":8080"
)

// Config is the configuration struct for the service.
type Config struct {
	// TwelveAPIKey is the Twelve Data API key.
	TwelveAPIKey string
	// TelegramToken is the telegram bot token, notifications are logged when empty.
	TelegramToken string
	// WebhookURL is the public command webhook url registered with telegram, optional.
	WebhookURL string
	// ListenAddress is the command webhook listen address.
	ListenAddress string
	// SweepInterval is the condition monitor sweep interval.
	SweepInterval time.Duration
	// CacheWindow is the market data cache freshness window.
	CacheWindow time.Duration
	// OutputSize is the number of candles requested per fetch.
	OutputSize int
	// FirstTargetMultiple is the risk multiple of the first take profit.
	FirstTargetMultiple float64
	// SecondTargetMultiple is the risk multiple of the second take profit.
	SecondTargetMultiple float64
	// AnalysisTimeframe is the timeframe supplying the breakout range.
	AnalysisTimeframe string
	// RiskTimeframe is the timeframe supplying the alternate stop reference.
	RiskTimeframe string
	// EntryTimeframe is the timeframe supplying the current price.
	EntryTimeframe string
	// StopTimeframe selects the timeframe supplying the stop loss, analysis or risk.
	StopTimeframe string
	// InstrumentsFile is the optional instrument catalog file.
	InstrumentsFile string
	// DBEndpoint is the optional outcome journal endpoint.
	DBEndpoint string
	// DBUser is the outcome journal user.
	DBUser string
	// DBPass is the outcome journal user pass.
	DBPass string

	registeredFlags map[string]bool
}

// applyDefaults fills unset values with their defaults.
func (cfg *Config) applyDefaults() {
	policy := engine.DefaultPolicy()

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListenAddress
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = monitor.DefaultInterval
	}
	if cfg.CacheWindow == 0 {
		cfg.CacheWindow = fetch.DefaultFreshnessWindow
	}
	if cfg.OutputSize == 0 {
		cfg.OutputSize = fetch.DefaultOutputSize
	}
	if cfg.FirstTargetMultiple == 0 {
		cfg.FirstTargetMultiple = policy.FirstTargetMultiple
	}
	if cfg.SecondTargetMultiple == 0 {
		cfg.SecondTargetMultiple = policy.SecondTargetMultiple
	}
	if cfg.AnalysisTimeframe == "" {
		cfg.AnalysisTimeframe = policy.Analysis.String()
	}
	if cfg.RiskTimeframe == "" {
		cfg.RiskTimeframe = policy.Risk.String()
	}
	if cfg.EntryTimeframe == "" {
		cfg.EntryTimeframe = policy.Entry.String()
	}
	if cfg.StopTimeframe == "" {
		cfg.StopTimeframe = policy.Stop.String()
	}
}

// Policy returns the breakout policy described by the config.
func (cfg *Config) Policy() (engine.Policy, error) {
	stop, err := engine.ParseStopReference(cfg.StopTimeframe)
	if err != nil {
		return engine.Policy{}, err
	}

	analysis, err := shared.ParseTimeframe(cfg.AnalysisTimeframe)
	if err != nil {
		return engine.Policy{}, fmt.Errorf("analysis timeframe: %w", err)
	}
	risk, err := shared.ParseTimeframe(cfg.RiskTimeframe)
	if err != nil {
		return engine.Policy{}, fmt.Errorf("risk timeframe: %w", err)
	}
	entry, err := shared.ParseTimeframe(cfg.EntryTimeframe)
	if err != nil {
		return engine.Policy{}, fmt.Errorf("entry timeframe: %w", err)
	}

	policy := engine.DefaultPolicy()
	policy.Analysis = analysis
	policy.Risk = risk
	policy.Entry = entry
	policy.Stop = stop
	policy.FirstTargetMultiple = cfg.FirstTargetMultiple
	policy.SecondTargetMultiple = cfg.SecondTargetMultiple

	return policy, nil
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.TwelveAPIKey == "" {
		errs = errors.Join(errs, fmt.Errorf("twelve data api key cannot be an empty string"))
	}
	if cfg.ListenAddress == "" {
		errs = errors.Join(errs, fmt.Errorf("listen address cannot be an empty string"))
	}
	if cfg.SweepInterval <= 0 {
		errs = errors.Join(errs, fmt.Errorf("sweep interval must be positive"))
	}
	if cfg.CacheWindow <= 0 {
		errs = errors.Join(errs, fmt.Errorf("cache window must be positive"))
	}
	if cfg.OutputSize <= 0 {
		errs = errors.Join(errs, fmt.Errorf("output size must be positive"))
	}

	policy, err := cfg.Policy()
	if err != nil {
		errs = errors.Join(errs, err)
	} else {
		err = policy.Validate()
		if err != nil {
			errs = errors.Join(errs, err)
		}
	}

	if cfg.WebhookURL != "" && cfg.TelegramToken == "" {
		errs = errors.Join(errs, fmt.Errorf("webhook url provided without a telegram token"))
	}
	if cfg.DBEndpoint == "" && (cfg.DBUser != "" || cfg.DBPass != "") {
		errs = errors.Join(errs, fmt.Errorf("database credentials provided without an endpoint"))
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	// Durations are int64 kinds, match them before the kind switch.
	d, ok := value.(*time.Duration)
	if ok {
		var def time.Duration
		if defValue != "" {
			parsed, err := time.ParseDuration(defValue)
			if err != nil {
				return fmt.Errorf("%s: parsing duration %q: %w", name, defValue, err)
			}
			def = parsed
		}
		flag.DurationVar(d, name, def, usage)
		return nil
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Float64:
		var def float64
		if defValue != "" {
			def, _ = strconv.ParseFloat(defValue, 64)
		}
		flag.Float64Var(value.(*float64), name, def, usage)
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	flags := []struct {
		name  string
		value interface{}
		usage string
	}{
		{"twelveapikey", &cfg.TwelveAPIKey, "the twelve data api key"},
		{"telegramtoken", &cfg.TelegramToken, "the telegram bot token"},
		{"webhookurl", &cfg.WebhookURL, "the public command webhook url registered with telegram"},
		{"listenaddress", &cfg.ListenAddress, "the command webhook listen address"},
		{"sweepinterval", &cfg.SweepInterval, "the condition monitor sweep interval"},
		{"cachewindow", &cfg.CacheWindow, "the market data cache freshness window"},
		{"outputsize", &cfg.OutputSize, "the number of candles requested per fetch"},
		{"firsttargetmultiple", &cfg.FirstTargetMultiple, "the risk multiple of the first take profit"},
		{"secondtargetmultiple", &cfg.SecondTargetMultiple, "the risk multiple of the second take profit"},
		{"analysistimeframe", &cfg.AnalysisTimeframe, "the timeframe supplying the breakout range"},
		{"risktimeframe", &cfg.RiskTimeframe, "the timeframe supplying the alternate stop reference"},
		{"entrytimeframe", &cfg.EntryTimeframe, "the timeframe supplying the current price"},
		{"stoptimeframe", &cfg.StopTimeframe, "the timeframe supplying the stop loss (analysis|risk)"},
		{"instrumentsfile", &cfg.InstrumentsFile, "the instrument catalog file"},
		{"dbendpoint", &cfg.DBEndpoint, "the outcome journal endpoint"},
		{"dbuser", &cfg.DBUser, "the outcome journal user"},
		{"dbpass", &cfg.DBPass, "the outcome journal user pass"},
	}
	for _, f := range flags {
		err = cfg.registerFlag(f.name, f.value, f.usage)
		if err != nil {
			return err
		}
	}

	// Parse command-line flags.
	flag.Parse()

	cfg.applyDefaults()

	return cfg.Validate()
}
