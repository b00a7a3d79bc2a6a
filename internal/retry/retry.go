package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/amishk599/statejobs/internal/model"
)

// Policy controls how many times and how slowly a call is retried.
// MaxRetries is the number of additional attempts after the first failure.
// BaseDelay is the delay before the first retry, doubled on each subsequent retry.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Do runs fn, retrying transient failures with exponential backoff and jitter.
// Non-retryable errors and context cancellation return immediately.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err == nil || !isRetryable(err) {
		return v, err
	}

	lastErr := err
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		delay := p.backoffDelay(attempt, lastErr)

		logger.Warn("retrying after transient error",
			"op", op,
			"attempt", attempt,
			"max_retries", p.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		v, err = fn(ctx)
		if err == nil || !isRetryable(err) {
			return v, err
		}
		lastErr = err
	}

	var zero T
	return zero, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (p Policy) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	// Integrity and not-found errors are permanent.
	if errors.Is(err, model.ErrIntegrity) || errors.Is(err, model.ErrNotFound) {
		return false
	}

	// Non-HTTP errors (network, DNS) are retryable.
	return true
}

// RetryFetcher retries transient feed failures before giving up.
type RetryFetcher struct {
	inner  model.FeedFetcher
	policy Policy
	logger *slog.Logger
}

// NewRetryFetcher wraps a FeedFetcher with retry logic.
func NewRetryFetcher(inner model.FeedFetcher, policy Policy, logger *slog.Logger) *RetryFetcher {
	return &RetryFetcher{inner: inner, policy: policy, logger: logger}
}

func (f *RetryFetcher) FetchSummaries(ctx context.Context) ([]model.Summary, error) {
	return Do(ctx, f.policy, f.logger, "fetch feed", f.inner.FetchSummaries)
}

// RetryScraper retries transient detail-page failures.
type RetryScraper struct {
	inner  model.DetailScraper
	policy Policy
	logger *slog.Logger
}

// NewRetryScraper wraps a DetailScraper with retry logic.
func NewRetryScraper(inner model.DetailScraper, policy Policy, logger *slog.Logger) *RetryScraper {
	return &RetryScraper{inner: inner, policy: policy, logger: logger}
}

func (s *RetryScraper) ScrapeDetail(ctx context.Context, link string) (model.Detail, error) {
	return Do(ctx, s.policy, s.logger.With("link", link), "scrape detail", func(ctx context.Context) (model.Detail, error) {
		return s.inner.ScrapeDetail(ctx, link)
	})
}

// RetryExtractor retries transient model-provider failures.
type RetryExtractor struct {
	inner  model.Extractor
	policy Policy
	logger *slog.Logger
}

// NewRetryExtractor wraps an Extractor with retry logic.
func NewRetryExtractor(inner model.Extractor, policy Policy, logger *slog.Logger) *RetryExtractor {
	return &RetryExtractor{inner: inner, policy: policy, logger: logger}
}

func (e *RetryExtractor) Extract(ctx context.Context, text string) (model.Extraction, error) {
	return Do(ctx, e.policy, e.logger, "extract", func(ctx context.Context) (model.Extraction, error) {
		return e.inner.Extract(ctx, text)
	})
}
