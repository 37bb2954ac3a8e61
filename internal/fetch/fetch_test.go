package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasruntaochen-ops/art-activity-collection/internal/logger"
	"github.com/thomasruntaochen-ops/art-activity-collection/internal/ratelimit"
)

func newTestFetcher(t *testing.T, policy RetryPolicy) *Fetcher {
	t.Helper()
	limiter := ratelimit.New(1000, 1000)
	t.Cleanup(limiter.Stop)
	return New(Config{
		HTTP:    NewHTTPStrategy(5*time.Second, "test-agent"),
		Limiter: limiter,
		Policy:  policy,
		Logger:  logger.Noop(),
	})
}

func TestFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>calendar</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	doc, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Contains(t, string(doc.Body), "calendar")
	assert.Equal(t, "http", doc.Strategy)
	assert.Contains(t, doc.ContentType, "text/html")
	assert.False(t, doc.FetchedAt.IsZero())
}

func TestFetcher_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond})

	doc, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(doc.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_PermanentStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher(t, RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond})

	_, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.False(t, fe.Transient)
}

func TestFetcher_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newTestFetcher(t, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	_, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted 3 attempts")
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetcher_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond})

	start := time.Now()
	doc, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(doc.Body))
	// The 1s Retry-After must override the 1ms backoff.
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestFetcher_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(t, RetryPolicy{MaxAttempts: 5, BaseDelay: 10 * time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, Request{URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetcher_BrowserDisabled(t *testing.T) {
	f := newTestFetcher(t, RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond})

	_, err := f.Fetch(context.Background(), Request{URL: "https://www.moma.org/calendar", RenderJS: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser strategy is disabled")
}

func TestFetcher_InvalidURL(t *testing.T) {
	f := newTestFetcher(t, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	_, err := f.Fetch(context.Background(), Request{URL: "not-a-url"})
	require.Error(t, err)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 2 * time.Second}

	assert.Equal(t, 2*time.Second, p.Backoff(1))
	assert.Equal(t, 4*time.Second, p.Backoff(2))
	assert.Equal(t, 8*time.Second, p.Backoff(3))
	assert.Equal(t, 16*time.Second, p.Backoff(4))
}

func TestIsRetryableStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
		{http.StatusMovedPermanently, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableStatus(tt.code), "status %d", tt.code)
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-5"))
	// HTTP-date form is ignored.
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2026 07:28:00 GMT"))
}
