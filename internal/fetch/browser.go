package fetch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// browserSettleDelay gives client-side rendering a moment to finish after
// the wait selector appears.
const browserSettleDelay = 2 * time.Second

var errEmptyShell = errors.New("rendered page is an empty shell")

// BrowserStrategy fetches documents through a headless browser. It exists
// for listing pages that arrive as an empty shell and render their
// calendar entries client-side.
type BrowserStrategy struct {
	timeout time.Duration

	mu           sync.Mutex
	allocatorCtx context.Context
	cancel       context.CancelFunc
}

// NewBrowserStrategy creates a browser strategy. The underlying browser
// process is started lazily on first use.
func NewBrowserStrategy(timeout time.Duration) *BrowserStrategy {
	return &BrowserStrategy{timeout: timeout}
}

// Name implements Strategy.
func (s *BrowserStrategy) Name() string { return "browser" }

// Fetch navigates to the page, waits for the requested selector to become
// visible, and captures the rendered HTML.
func (s *BrowserStrategy) Fetch(ctx context.Context, req Request) (*Document, error) {
	allocCtx := s.allocator()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, s.timeout)
	defer cancelRun()

	// Honor the caller's cancellation as well as our own timeout.
	go func() {
		select {
		case <-ctx.Done():
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	waitSelector := req.WaitSelector
	if waitSelector == "" {
		waitSelector = "body"
	}

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(req.URL),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		chromedp.Sleep(browserSettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &Error{URL: req.URL, Transient: true, Err: err}
	}
	if looksLikeEmptyShell(html) {
		return nil, &Error{URL: req.URL, Transient: true, Err: errEmptyShell}
	}

	return &Document{
		URL:         req.URL,
		Body:        []byte(html),
		ContentType: "text/html",
		FetchedAt:   time.Now().UTC(),
		Strategy:    s.Name(),
	}, nil
}

// Close shuts down the browser process if one was started.
func (s *BrowserStrategy) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.allocatorCtx = nil
		s.cancel = nil
	}
}

func (s *BrowserStrategy) allocator() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.allocatorCtx == nil {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
		)
		s.allocatorCtx, s.cancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	return s.allocatorCtx
}

// looksLikeEmptyShell reports whether rendered HTML still lacks meaningful
// content, which usually means the wait selector fired on a skeleton node.
func looksLikeEmptyShell(html string) bool {
	trimmed := strings.TrimSpace(html)
	return len(trimmed) < 512
}
