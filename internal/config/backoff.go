package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	BASE_BACKOFF   = 1 * time.Second
	MAX_BACKOFF    = 2 * time.Minute
	BACKOFF_FACTOR = 2.0
	JITTER_FACTOR  = 0.5
)

// ErrMaxRetries is wrapped by DoWithBackoff once every attempt has failed.
var ErrMaxRetries = errors.New("max retries exceeded")

// Backoff is an exponential retry policy with proportional jitter.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// DefaultBackoff is the policy used by DoWithBackoff.
var DefaultBackoff = Backoff{
	Base:   BASE_BACKOFF,
	Max:    MAX_BACKOFF,
	Factor: BACKOFF_FACTOR,
	Jitter: JITTER_FACTOR,
}

// DoWithBackoff sends req with DefaultBackoff, retrying up to maxRetries times.
func DoWithBackoff(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	return DefaultBackoff.Do(ctx, client, req, maxRetries)
}

// Do sends req, retrying transport errors and 5xx responses. Other responses,
// including 4xx, are returned to the caller as-is. The request must not carry
// a body, since it is re-sent verbatim.
func (b Backoff) Do(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	delay := b.Base
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := client.Do(req.Clone(ctx))
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			err = fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, attempt+1, err)
		}

		timer := time.NewTimer(b.withJitter(delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay = b.next(delay)
	}
}

func (b Backoff) withJitter(delay time.Duration) time.Duration {
	delay += time.Duration(rand.Float64() * float64(delay) * b.Jitter)
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}

func (b Backoff) next(delay time.Duration) time.Duration {
	delay = time.Duration(float64(delay) * b.Factor)
	if b.Max > 0 && delay >= b.Max {
		delay = b.Max
	}
	return delay
}
