package web

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// browser owns one headless Chrome instance. The client recreates it after
// any fetch error, so a wedged renderer never poisons the next attempt.
type browser struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

func newBrowser(parent context.Context) (*browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so failures surface here
	// instead of mid-scrape.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start headless browser: %w", err)
	}
	return &browser{allocCancel: allocCancel, ctx: ctx, cancel: cancel}, nil
}

func (b *browser) close() {
	b.cancel()
	b.allocCancel()
}
