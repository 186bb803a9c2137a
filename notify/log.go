package notify

import "github.com/rs/zerolog"

// Log writes notifications to the application log, it stands in for telegram
// when no bot token is configured.
type Log struct {
	logger *zerolog.Logger
}

// NewLog initializes a new log dispatcher.
func NewLog(logger *zerolog.Logger) *Log {
	return &Log{logger: logger}
}

// Dispatch logs the provided message for the provided subscriber.
func (l *Log) Dispatch(subscriber string, message string) {
	l.logger.Info().Str("subscriber", subscriber).Msg(message)
}
