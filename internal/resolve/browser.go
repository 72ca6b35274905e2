// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/pdiddy/pmc-harvest/pkg/types"
)

// BrowserPageFetcher renders figure pages in headless Chrome, for page
// variants that build the figure markup client-side. One browser process
// is shared; each fetch opens its own tab.
type BrowserPageFetcher struct {
	browserCtx context.Context
	cancel     context.CancelFunc
	referer    string
	timeout    time.Duration
	log        *zap.Logger

	startOnce sync.Once
	startErr  error
}

// NewBrowserPageFetcher prepares a headless Chrome that presents the
// configured browser identity. Chrome itself launches on the first fetch.
func NewBrowserPageFetcher(cfg types.HTTPConfig, log *zap.Logger) *BrowserPageFetcher {
	ua := cfg.UserAgent
	if ua == "" {
		ua = types.BrowserUserAgent
	}
	ref := cfg.Referer
	if ref == "" {
		ref = types.BrowserReferer
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(ua),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	return &BrowserPageFetcher{
		browserCtx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		referer: ref,
		timeout: timeout,
		log:     log,
	}
}

// start launches Chrome once. Tabs created from browserCtx afterwards share
// the process instead of each allocating a browser.
func (f *BrowserPageFetcher) start() error {
	f.startOnce.Do(func() {
		if err := chromedp.Run(f.browserCtx); err != nil {
			f.startErr = fmt.Errorf("starting browser: %w", err)
			return
		}
		f.log.Debug("browser started")
	})
	return f.startErr
}

func (f *BrowserPageFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := f.start(); err != nil {
		return "", err
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	// The tab derives from the browser, so tie it to the caller's context.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Referer": f.referer}),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("rendering %s: %w", pageURL, err)
	}
	f.log.Debug("rendered page", zap.String("url", pageURL), zap.Int("bytes", len(html)))
	return html, nil
}

// Close shuts down the browser.
func (f *BrowserPageFetcher) Close() error {
	f.cancel()
	return nil
}
