package sink

import (
	"context"
	"log/slog"
	"time"

	"zarrstream/internal/logging"
)

// Retry defaults. Backoff doubles per attempt: 100ms, 200ms, 400ms.
const (
	DefaultAttempts = 3
	DefaultBackoff  = 100 * time.Millisecond
)

// Retry wraps a sink with bounded retries and exponential backoff.
// Transient write failures are absorbed here; only exhausted retries
// propagate to the pipeline.
type Retry struct {
	next     Sink
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// WithRetry wraps next. Zero attempts or backoff select the defaults.
func WithRetry(next Sink, attempts int, backoff time.Duration, logger *slog.Logger) *Retry {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Retry{
		next:     next,
		attempts: attempts,
		backoff:  backoff,
		logger:   logging.Default(logger).With("component", "sink"),
	}
}

func (r *Retry) Put(ctx context.Context, key string, data []byte) error {
	var err error
	delay := r.backoff
	for attempt := 1; ; attempt++ {
		err = r.next.Put(ctx, key, data)
		if err == nil {
			return nil
		}
		if attempt == r.attempts || ctx.Err() != nil {
			break
		}
		r.logger.Warn("put failed, retrying", "key", key, "attempt", attempt, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}

func (r *Retry) Close() error { return r.next.Close() }

var _ Sink = (*Retry)(nil)
