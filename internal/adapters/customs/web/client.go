// Package web retrieves barcode PDFs by driving the customs lookup sites in
// a headless browser when the SOAP service is unavailable.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"vnexim/mavach/internal/core/declaration"
	httputil "vnexim/mavach/internal/infrastructure/http"
	"vnexim/mavach/internal/infrastructure/resilience"
)

// Client drives one lookup site. It owns a single browser instance which is
// torn down after any failed fetch and recreated on the next use.
type Client struct {
	url     string
	dialect Dialect
	timeout time.Duration
	cache   *SelectorCache
	log     *slog.Logger
	http    *http.Client

	mu      sync.Mutex
	browser *browser
}

// NewClient creates a scraping client for one lookup URL. The dialect is
// detected from the URL shape.
func NewClient(url string, timeout time.Duration, cache *SelectorCache, log *slog.Logger) *Client {
	if cache == nil {
		cache = NewSelectorCache("")
	}
	return &Client{
		url:     url,
		dialect: DetectDialect(url),
		timeout: timeout,
		cache:   cache,
		log:     log.With("dialect", DetectDialect(url).String()),
		http:    httputil.NewClient(&httputil.ClientConfig{Timeout: timeout}),
	}
}

// URL returns the lookup URL the client drives.
func (c *Client) URL() string { return c.url }

// Fetch looks up one declaration and returns the barcode document bytes.
func (c *Client) Fetch(ctx context.Context, d declaration.Declaration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser == nil {
		b, err := newBrowser(context.Background())
		if err != nil {
			return nil, resilience.NewError(resilience.KindNetwork, err)
		}
		c.browser = b
	}

	// The ADF dialect needs headroom beyond the page timeout for its
	// warm-up and AJAX waits.
	budget := c.timeout
	if c.dialect == DialectADF {
		budget += 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(c.browser.ctx, budget)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	pdf, err := c.fetch(runCtx, d)
	if err != nil {
		c.browser.close()
		c.browser = nil
		return nil, err
	}
	return pdf, nil
}

// Close terminates the browser instance, if any.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser != nil {
		c.browser.close()
		c.browser = nil
	}
}

func (c *Client) fetch(ctx context.Context, d declaration.Declaration) ([]byte, error) {
	if err := chromedp.Run(ctx, chromedp.Navigate(c.url)); err != nil {
		return nil, resilience.NewError(resilience.KindNetwork, fmt.Errorf("open %s: %w", c.url, err))
	}

	if c.dialect == DialectADF {
		if err := c.warmUp(ctx); err != nil {
			return nil, err
		}
	}

	values := map[Field]string{
		FieldTaxCode:           d.TaxCode,
		FieldDeclarationNumber: d.Number,
		FieldDeclarationDate:   d.Date.Format("02/01/2006"),
		FieldCustomsOffice:     d.CustomsOfficeCode,
	}
	for _, field := range []Field{FieldTaxCode, FieldDeclarationNumber, FieldDeclarationDate, FieldCustomsOffice} {
		if err := c.fillField(ctx, field, values[field]); err != nil {
			return nil, err
		}
	}

	if c.dialect == DialectADF {
		return c.submitADF(ctx, d)
	}
	return c.submitASPNet(ctx, d)
}

// fillJS locates an element by id, falling back to the name attribute, sets
// its value and fires the change/blur events ADF listens for.
const fillJS = `(function(sel, val) {
	var el = document.getElementById(sel);
	if (!el) {
		var byName = document.getElementsByName(sel);
		if (byName.length > 0) { el = byName[0]; }
	}
	if (!el) { return false; }
	el.value = val;
	el.dispatchEvent(new Event('change', {bubbles: true}));
	el.dispatchEvent(new Event('blur', {bubbles: true}));
	return true;
})(%q, %q)`

// fillField resolves the selector for one form field and fills it. The last
// working selector is tried first while its cache entry is fresh; otherwise
// the full candidate list is walked in order. When nothing matches, the page
// structure is dumped to the log and a data failure is returned.
func (c *Client) fillField(ctx context.Context, field Field, value string) error {
	candidates := fieldSelectors[field]
	if cached, ok := c.cache.Get(field); ok {
		ordered := make([]string, 0, len(candidates)+1)
		ordered = append(ordered, cached)
		for _, s := range candidates {
			if s != cached {
				ordered = append(ordered, s)
			}
		}
		candidates = ordered
	}

	for _, sel := range candidates {
		var filled bool
		err := chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(fillJS, sel, value), &filled))
		if err != nil {
			return resilience.NewError(resilience.KindNetwork, fmt.Errorf("fill %s: %w", field, err))
		}
		if filled {
			c.cache.Put(field, sel)
			return nil
		}
	}

	c.cache.Invalidate(field)
	c.dumpPage(ctx, field)
	return resilience.NewError(resilience.KindData,
		fmt.Errorf("no selector matched field %s on %s", field, c.url))
}

func (c *Client) dumpPage(ctx context.Context, field Field) {
	var html, pageURL string
	if err := chromedp.Run(ctx,
		chromedp.Location(&pageURL),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		c.log.Error("selector exhaustion, page capture also failed", "field", field, "error", err)
		return
	}
	c.log.Error("all selectors failed for field", "field", field,
		"page", pageStructure(html, pageURL))
}
