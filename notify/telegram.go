package notify

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	// defaultTimeout is the default telegram request timeout.
	defaultTimeout = time.Second * 10
)

// TelegramConfig represents the telegram dispatcher configuration.
type TelegramConfig struct {
	// Token is the bot token.
	Token string
	// Endpoint is the bot api endpoint format, defaults to tgbotapi.APIEndpoint.
	Endpoint string
	// WebhookURL is the public command webhook url registered with telegram, optional.
	WebhookURL string
	// Timeout is the request timeout.
	Timeout time.Duration
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *TelegramConfig) Validate() error {
	var errs error

	if cfg.Token == "" {
		errs = errors.Join(errs, fmt.Errorf("telegram token cannot be an empty string"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// Telegram delivers notifications to telegram chats.
type Telegram struct {
	cfg *TelegramConfig
	bot *tgbotapi.BotAPI
}

// NewTelegram initializes a new telegram dispatcher, the bot token is verified on creation.
func NewTelegram(cfg *TelegramConfig) (*Telegram, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating telegram config: %w", err)
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	httpc := &http.Client{Timeout: cfg.Timeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	cfg.Logger.Info().Msgf("authorized telegram bot %s", bot.Self.UserName)

	tg := &Telegram{cfg: cfg, bot: bot}
	if cfg.WebhookURL != "" {
		err = tg.registerWebhook(cfg.WebhookURL)
		if err != nil {
			return nil, err
		}
	}

	return tg, nil
}

// registerWebhook points telegram updates of the bot at the provided url.
func (t *Telegram) registerWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("creating webhook config: %w", err)
	}

	_, err = t.bot.Request(wh)
	if err != nil {
		return fmt.Errorf("registering webhook %s: %w", url, err)
	}

	t.cfg.Logger.Info().Msgf("registered telegram webhook %s", url)

	return nil
}

// Send delivers the provided message to the provided chat.
func (t *Telegram) Send(chat string, message string) error {
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing chat id %q: %w", chat, err)
	}

	_, err = t.bot.Send(tgbotapi.NewMessage(chatID, message))
	if err != nil {
		return fmt.Errorf("sending message to %s: %w", chat, err)
	}

	return nil
}

// Dispatch delivers the provided message to the provided subscriber, failures
// are logged and not retried.
func (t *Telegram) Dispatch(subscriber string, message string) {
	err := t.Send(subscriber, message)
	if err != nil {
		t.cfg.Logger.Error().Msgf("dispatching notification: %v", err)
	}
}
