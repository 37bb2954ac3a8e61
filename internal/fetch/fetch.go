// Package fetch retrieves listing documents from museum sites. It layers
// per-host politeness and bounded retry with exponential backoff over two
// interchangeable strategies: a plain HTTP client and a headless browser
// for pages that render their listings client-side.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/ratelimit"
)

// Request describes a single document to retrieve.
type Request struct {
	// URL is the absolute page URL.
	URL string
	// RenderJS requests the headless browser strategy. Pages whose listings
	// are injected client-side need it; static pages should leave it false.
	RenderJS bool
	// WaitSelector is the CSS selector the browser strategy waits for before
	// capturing the page. Ignored by the HTTP strategy.
	WaitSelector string
}

// Document is a fetched page.
type Document struct {
	URL         string
	Body        []byte
	ContentType string
	FetchedAt   time.Time
	// Strategy records which strategy produced the document ("http" or "browser").
	Strategy string
}

// Strategy retrieves a single document. Implementations do not retry;
// the Fetcher owns the retry loop.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*Document, error)
}

// RetryPolicy bounds the retry loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay is doubled after each failed attempt.
	BaseDelay time.Duration
}

// Backoff returns the delay before the given retry. attempt is 1-based:
// the delay after the first failure is BaseDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Fetcher retrieves documents with politeness and retry.
type Fetcher struct {
	http    Strategy
	browser Strategy // nil when the browser is disabled
	limiter *ratelimit.KeyedRateLimiter
	policy  RetryPolicy
	log     *logger.Logger
}

// Config assembles a Fetcher.
type Config struct {
	HTTP    Strategy
	Browser Strategy
	Limiter *ratelimit.KeyedRateLimiter
	Policy  RetryPolicy
	Logger  *logger.Logger
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Policy.MaxAttempts < 1 {
		cfg.Policy.MaxAttempts = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Noop()
	}
	return &Fetcher{
		http:    cfg.HTTP,
		browser: cfg.Browser,
		limiter: cfg.Limiter,
		policy:  cfg.Policy,
		log:     log,
	}
}

// Fetch retrieves a document, waiting on the per-host politeness budget
// before every attempt and backing off between attempts. Transient errors
// (429, 5xx, network failures) are retried up to the policy limit; a
// Retry-After hint from the server overrides the computed backoff when
// it is longer. Permanent errors fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Document, error) {
	strategy := f.http
	if req.RenderJS {
		if f.browser == nil {
			return nil, fmt.Errorf("fetch %s: page requires browser rendering but the browser strategy is disabled", req.URL)
		}
		strategy = f.browser
	}

	host, err := hostOf(req.URL)
	if err != nil {
		return nil, &Error{URL: req.URL, Transient: false, Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, host); err != nil {
				return nil, err
			}
		}

		doc, err := strategy.Fetch(ctx, req)
		if err == nil {
			return doc, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
		if attempt == f.policy.MaxAttempts {
			break
		}

		delay := f.policy.Backoff(attempt)
		if ra := retryAfterOf(err); ra > delay {
			delay = ra
		}
		f.log.Warn("fetch attempt failed, retrying",
			"url", req.URL,
			"strategy", strategy.Name(),
			"attempt", attempt,
			"delay", delay,
			"error", err.Error(),
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("fetch %s: exhausted %d attempts: %w", req.URL, f.policy.MaxAttempts, lastErr)
}

// Error is a classified fetch failure.
type Error struct {
	URL        string
	StatusCode int // zero for network-level failures
	Transient  bool
	RetryAfter time.Duration // server hint, zero when absent
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Transient
	}
	// Unclassified errors (network resets, timeouts from the transport)
	// are treated as transient.
	return true
}

func retryAfterOf(err error) time.Duration {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.RetryAfter
	}
	return 0
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return u.Host, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
