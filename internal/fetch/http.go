package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// maxBodyBytes caps how much of a listing page we read. Museum calendar
// pages are well under this; anything bigger is not a page we want.
const maxBodyBytes = 8 << 20

// HTTPStrategy fetches documents with a plain HTTP client.
type HTTPStrategy struct {
	client    *http.Client
	userAgent string
}

// NewHTTPStrategy creates an HTTP strategy.
func NewHTTPStrategy(timeout time.Duration, userAgent string) *HTTPStrategy {
	return &HTTPStrategy{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
	}
}

// Name implements Strategy.
func (s *HTTPStrategy) Name() string { return "http" }

// Fetch retrieves the page. Status 429 and the retryable 5xx family come
// back as transient errors carrying any Retry-After hint; other non-2xx
// statuses are permanent.
func (s *HTTPStrategy) Fetch(ctx context.Context, req Request) (*Document, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &Error{URL: req.URL, Transient: false, Err: err}
	}
	httpReq.Header.Set("User-Agent", s.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, &Error{URL: req.URL, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Transient:  isRetryableStatus(resp.StatusCode),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{URL: req.URL, Transient: true, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Document{
		URL:         req.URL,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FetchedAt:   time.Now().UTC(),
		Strategy:    s.Name(),
	}, nil
}

// isRetryableStatus reports whether a status code warrants another attempt.
func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// parseRetryAfter understands the delta-seconds form of Retry-After.
// The HTTP-date form is rare on the sites we crawl and is ignored.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
