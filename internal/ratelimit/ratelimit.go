package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/time/rate"

	"github.com/amishk599/statejobs/internal/model"
)

// HostLimiter keeps one token bucket per hostname, so detail pages on the
// same site share a request budget.
type HostLimiter struct {
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

// NewHostLimiter creates a limiter allowing reqPerSec sustained requests with
// bursts of up to burst per host. A non-positive rate disables limiting.
func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	limit := rate.Limit(reqPerSec)
	if reqPerSec <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		hosts: make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

func (l *HostLimiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, ok := l.hosts[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.hosts[host] = lim
	return lim
}

// WaitURL blocks until the host of raw may receive another request.
// Returns an error if the context is cancelled while waiting.
func (l *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	host := "_"
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Host
	}
	if err := l.limiterFor(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", host, err)
	}
	return nil
}

// RateLimitedScraper is a decorator that waits for the host's token bucket
// before delegating to the wrapped DetailScraper.
type RateLimitedScraper struct {
	inner   model.DetailScraper
	limiter *HostLimiter
}

// NewRateLimitedScraper wraps a DetailScraper with per-host rate limiting.
// Scrapers hitting the same hosts should share the same limiter instance.
func NewRateLimitedScraper(inner model.DetailScraper, limiter *HostLimiter) *RateLimitedScraper {
	return &RateLimitedScraper{inner: inner, limiter: limiter}
}

func (s *RateLimitedScraper) ScrapeDetail(ctx context.Context, link string) (model.Detail, error) {
	if err := s.limiter.WaitURL(ctx, link); err != nil {
		return model.Detail{}, err
	}
	return s.inner.ScrapeDetail(ctx, link)
}
