package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

const (
	// defaultQueueSize is the default notification buffer size.
	defaultQueueSize = 256
)

// QueueConfig represents the notification queue configuration.
type QueueConfig struct {
	// Dispatch delivers the provided message to the provided subscriber.
	Dispatch func(subscriber string, message string)
	// Size is the notification buffer size.
	Size int
	// Logger represents the application logger.
	Logger *zerolog.Logger
}

// Validate asserts the config sane inputs.
func (cfg *QueueConfig) Validate() error {
	var errs error

	if cfg.Dispatch == nil {
		errs = errors.Join(errs, fmt.Errorf("dispatch function cannot be nil"))
	}
	if cfg.Size < 0 {
		errs = errors.Join(errs, fmt.Errorf("queue size cannot be negative"))
	}
	if cfg.Logger == nil {
		errs = errors.Join(errs, fmt.Errorf("logger cannot be nil"))
	}

	return errs
}

// notification is a queued message.
type notification struct {
	subscriber string
	message    string
}

// Queue buffers notifications and delivers them from a single sender so
// callers never wait on delivery.
type Queue struct {
	cfg     *QueueConfig
	pending chan notification
}

// NewQueue initializes a new notification queue.
func NewQueue(cfg *QueueConfig) (*Queue, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validating queue config: %w", err)
	}

	if cfg.Size == 0 {
		cfg.Size = defaultQueueSize
	}

	return &Queue{
		cfg:     cfg,
		pending: make(chan notification, cfg.Size),
	}, nil
}

// Dispatch queues the provided message for the provided subscriber. Messages
// are dropped and logged when the queue is at capacity.
func (q *Queue) Dispatch(subscriber string, message string) {
	select {
	case q.pending <- notification{subscriber: subscriber, message: message}:
		// do nothing.
	default:
		q.cfg.Logger.Error().Msgf("notification queue at capacity: %d/%d, dropping message for %s",
			len(q.pending), q.cfg.Size, subscriber)
	}
}

// Run delivers queued notifications until the provided context is cancelled,
// notifications already queued at cancellation are delivered before returning.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case n := <-q.pending:
			q.cfg.Dispatch(n.subscriber, n.message)
		case <-ctx.Done():
			for {
				select {
				case n := <-q.pending:
					q.cfg.Dispatch(n.subscriber, n.message)
				default:
					return
				}
			}
		}
	}
}
