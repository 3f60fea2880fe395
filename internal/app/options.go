package app

import (
	"io"
	"log/slog"
	"time"
)

const (
	defaultHoldTTL     = 15 * time.Minute
	defaultMaxAttempts = 3
	defaultBackoff     = 20 * time.Millisecond
)

type options struct {
	holdTTL     time.Duration
	logger      *slog.Logger
	publisher   Publisher
	maxAttempts int
	backoff     time.Duration
}

func defaultOptions() options {
	return options{
		holdTTL:     defaultHoldTTL,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		publisher:   noopPublisher{},
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
	}
}

// Option configures the services in this package.
type Option func(*options)

// WithHoldTTL overrides the default duration of new holds.
func WithHoldTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.holdTTL = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPublisher routes lifecycle events to p.
func WithPublisher(p Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithRetry bounds how often a transient storage failure is retried.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(o *options) {
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			o.backoff = backoff
		}
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
