package generation

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

type RetryPolicy struct {
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int
	// BaseDelay doubles after every failed attempt.
	BaseDelay time.Duration
}

type retryingClient struct {
	Client
	policy RetryPolicy
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// WithRetry retries transient failures with exponential backoff. A stream is
// only retried while nothing has been delivered to the caller yet.
func WithRetry(c Client, policy RetryPolicy, logger zerolog.Logger) Client {
	if policy.MaxRetries <= 0 {
		return c
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	return &retryingClient{Client: c, policy: policy, logger: logger, sleep: sleepCtx}
}

func (r *retryingClient) Generate(ctx context.Context, req Request) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := r.backoff(ctx, attempt, lastErr); err != nil {
				return nil, lastErr
			}
		}
		res, err := r.Client.Generate(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !Retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (r *retryingClient) Stream(ctx context.Context, req Request, fn func(Chunk) error) error {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := r.backoff(ctx, attempt, lastErr); err != nil {
				return lastErr
			}
		}
		delivered := false
		err := r.Client.Stream(ctx, req, func(c Chunk) error {
			delivered = true
			return fn(c)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if delivered || !Retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (r *retryingClient) backoff(ctx context.Context, attempt int, cause error) error {
	delay := r.policy.BaseDelay << (attempt - 1)
	r.logger.Warn().Err(cause).
		Int("attempt", attempt).
		Int("max_retries", r.policy.MaxRetries).
		Dur("delay", delay).
		Str("model", r.Model()).
		Msg("generation retry")
	return r.sleep(ctx, delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retryable reports transient failures: provider overload, rate limits and
// connections dropped before an answer arrived.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
