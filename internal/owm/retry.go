package owm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultDelays is the backoff schedule between attempts. The last delay
// repeats when more retries are allowed than there are entries.
var DefaultDelays = []time.Duration{1 * time.Second, 3 * time.Second}

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client retries a Fetcher on transient failures only.
type Client struct {
	fetcher Fetcher
	delays  []time.Duration
	sleep   SleepFunc
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDelays overrides the backoff schedule.
func WithDelays(delays ...time.Duration) ClientOption {
	return func(c *Client) { c.delays = delays }
}

// WithSleep replaces the sleep used between attempts, typically in tests.
func WithSleep(fn SleepFunc) ClientOption {
	return func(c *Client) { c.sleep = fn }
}

// NewClient wraps f with the default schedule.
func NewClient(f Fetcher, opts ...ClientOption) *Client {
	c := &Client{fetcher: f, delays: DefaultDelays, sleep: sleepCtx}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Attempts returns the total number of calls FetchWithRetry will make at most
// for maxRetries: min(maxRetries+1, len(delays)+1).
func (c *Client) Attempts(maxRetries int) int {
	n := maxRetries + 1
	if limit := len(c.delays) + 1; n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	return n
}

// FetchWithRetry calls the underlying fetcher until it succeeds, fails with a
// non-transient error, or the attempt budget is spent. The last error is
// returned unchanged. Cancellation during a call or a delay returns
// ctx.Err() immediately.
func (c *Client) FetchWithRetry(ctx context.Context, rawURL string, out any, maxRetries int) error {
	attempts := c.Attempts(maxRetries)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.delayFor(attempt - 1)
			slog.Debug("retrying after backoff", "attempt", attempt, "backoff", delay, "cause", lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := c.fetcher.Fetch(ctx, rawURL, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		lastErr = err
		if !IsTransient(err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) delayFor(i int) time.Duration {
	if len(c.delays) == 0 {
		return 0
	}
	if i < len(c.delays) {
		return c.delays[i]
	}
	return c.delays[len(c.delays)-1]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
