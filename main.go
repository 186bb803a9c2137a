package main

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/Talent12666/shadowfx/command"
	"github.com/Talent12666/shadowfx/database"
	"github.com/Talent12666/shadowfx/fetch"
	"github.com/Talent12666/shadowfx/notify"
	"github.com/Talent12666/shadowfx/position"
	"github.com/Talent12666/shadowfx/service"
	"github.com/Talent12666/shadowfx/shared"
	"github.com/rs/zerolog/log"
)

// Ensure the service implements the command service interface.
var _ command.Service = (*service.Service)(nil)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Error().Msgf("loading config: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instruments := shared.DefaultInstrumentTable()
	if cfg.InstrumentsFile != "" {
		instruments, err = shared.LoadInstruments(cfg.InstrumentsFile)
		if err != nil {
			log.Error().Msgf("loading instruments: %v", err)
			return
		}
	}

	twelve, err := fetch.NewTwelveDataClient(&fetch.TwelveDataConfig{
		APIKey:  cfg.TwelveAPIKey,
		BaseURL: fetch.BaseURL,
	})
	if err != nil {
		log.Error().Msgf("creating twelve data client: %v", err)
		return
	}

	notifyLogger := log.With().Str("component", "notify").Logger()
	var deliver func(subscriber string, message string)
	switch cfg.TelegramToken {
	case "":
		log.Warn().Msg("no telegram token provided, notifications will be logged")
		deliver = notify.NewLog(&notifyLogger).Dispatch
	default:
		tg, err := notify.NewTelegram(&notify.TelegramConfig{
			Token:      cfg.TelegramToken,
			WebhookURL: cfg.WebhookURL,
			Logger:     &notifyLogger,
		})
		if err != nil {
			log.Error().Msgf("creating telegram dispatcher: %v", err)
			return
		}
		deliver = tg.Dispatch
	}

	queue, err := notify.NewQueue(&notify.QueueConfig{
		Dispatch: deliver,
		Logger:   &notifyLogger,
	})
	if err != nil {
		log.Error().Msgf("creating notification queue: %v", err)
		return
	}
	dispatch := queue.Dispatch

	var persist func(ctx context.Context, trade *position.Trade) error
	if cfg.DBEndpoint != "" {
		dbLogger := log.With().Str("component", "database").Logger()
		db, err := database.NewDatabase(ctx, &database.DatabaseConfig{
			Endpoint: cfg.DBEndpoint,
			User:     cfg.DBUser,
			Pass:     cfg.DBPass,
			Logger:   &dbLogger,
		})
		if err != nil {
			log.Error().Msgf("creating database: %v", err)
			return
		}
		persist = db.PersistClosedTrade
	}

	policy, err := cfg.Policy()
	if err != nil {
		log.Error().Msgf("creating breakout policy: %v", err)
		return
	}

	svc, err := service.NewService(&service.ServiceConfig{
		Fetcher:            twelve,
		Instruments:        instruments,
		Policy:             policy,
		FreshnessWindow:    cfg.CacheWindow,
		OutputSize:         cfg.OutputSize,
		SweepInterval:      cfg.SweepInterval,
		Dispatch:           dispatch,
		PersistClosedTrade: persist,
	})
	if err != nil {
		log.Error().Msgf("creating service: %v", err)
		return
	}

	commandLogger := log.With().Str("component", "command").Logger()
	handler, err := command.NewHandler(&command.HandlerConfig{
		Service: svc,
		Logger:  &commandLogger,
	})
	if err != nil {
		log.Error().Msgf("creating command handler: %v", err)
		return
	}

	server, err := command.NewServer(&command.ServerConfig{
		Address:  cfg.ListenAddress,
		Handle:   handler.Handle,
		Dispatch: dispatch,
		Logger:   &commandLogger,
	})
	if err != nil {
		log.Error().Msgf("creating command server: %v", err)
		return
	}

	go handleTermination(ctx, cancel)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		queue.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		err := server.Run(ctx)
		if err != nil {
			log.Error().Msgf("running command server: %v", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		svc.Run(ctx)
	}()

	wg.Wait()
}
