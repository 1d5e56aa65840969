package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
}

func DefaultRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 4, InitialDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Result describes a finished delivery.
type Result struct {
	Attempts int
	Err      error
}

// RetryObserver is told about every failed attempt that will be retried.
type RetryObserver func(attempt int, err error, wait time.Duration)

// RetryingSender retries a Sender with a doubling delay and no jitter.
type RetryingSender struct {
	next     Sender
	cfg      RetryConfig
	logger   *slog.Logger
	observer RetryObserver
}

func NewRetryingSender(next Sender, cfg RetryConfig, logger *slog.Logger, observer RetryObserver) *RetryingSender {
	def := DefaultRetry()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	return &RetryingSender{next: next, cfg: cfg, logger: logger, observer: observer}
}

// Deliver sends m, retrying until it succeeds, the attempts run out or ctx
// is done.
func (s *RetryingSender) Deliver(ctx context.Context, m Message) Result {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     s.cfg.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         s.cfg.MaxDelay,
	}
	b.Reset()

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, s.next.Send(ctx, m)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.logger.Warn("email send failed, retrying",
				"to", m.To, "attempt", attempts, "wait", wait, "err", err)
			if s.observer != nil {
				s.observer(attempts, err, wait)
			}
		}),
	)
	return Result{Attempts: attempts, Err: err}
}
