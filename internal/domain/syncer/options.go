package syncer

import (
	"time"

	"github.com/google/uuid"
	"github.com/okian/evalboard/pkg/logger"
)

// Default sweep configuration constants.
const (
	defaultCallTimeout = 10 * time.Second
	defaultAttempts    = 1
)

// RetryPolicy controls how often a failing record fetch is attempted before
// the record is skipped. With one attempt a failed record is skipped at once
// and, because the mark still advances past it, is not fetched again.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

type options struct {
	retry       RetryPolicy
	callTimeout time.Duration
	now         func() time.Time
	newRunID    func() string
	logger      logger.Logger
}

func defaultOptions() options {
	return options{
		retry:       RetryPolicy{Attempts: defaultAttempts},
		callTimeout: defaultCallTimeout,
		now:         time.Now,
		newRunID:    uuid.NewString,
		logger:      logger.Discard(),
	}
}

// Option applies a configuration option to a sweep or Synchronizer.
type Option func(*options)

// WithRetry sets the per-record retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(o *options) {
		if p.Attempts > 0 {
			o.retry.Attempts = p.Attempts
		}
		if p.Backoff >= 0 {
			o.retry.Backoff = p.Backoff
		}
	}
}

// WithCallTimeout bounds every remote call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRunID sets the generator for run identifiers.
func WithRunID(gen func() string) Option {
	return func(o *options) {
		if gen != nil {
			o.newRunID = gen
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
