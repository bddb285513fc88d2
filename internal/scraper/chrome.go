package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	UserAgent   string
	Headers     map[string]string
	PageTimeout time.Duration
	WaitFor     string // CSS selector that signals a rendered page
}

// ChromeFetcher renders pages in a shared headless Chrome.
type ChromeFetcher struct {
	browserCtx context.Context
	cancel     func()
	opts       ChromeOptions
}

// NewChromeFetcher starts a browser. Close must be called to stop it.
func NewChromeFetcher(ctx context.Context, opts ChromeOptions) (*ChromeFetcher, error) {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}
	if opts.WaitFor == "" {
		opts.WaitFor = "body"
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser now so configuration errors surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromeFetcher{
		browserCtx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		opts: opts,
	}, nil
}

// Fetch opens pageURL in a new tab and returns the document HTML.
func (f *ChromeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.opts.PageTimeout)
	defer cancelTimeout()

	// Propagate caller cancellation into the tab.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	headers := make(network.Headers, len(f.opts.Headers))
	for k, v := range f.opts.Headers {
		headers[k] = v
	}

	var body string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(f.opts.WaitFor, chromedp.ByQuery),
		chromedp.OuterHTML("html", &body, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return body, nil
}

// Close stops the browser.
func (f *ChromeFetcher) Close() {
	f.cancel()
}

var _ Fetcher = (*ChromeFetcher)(nil)
