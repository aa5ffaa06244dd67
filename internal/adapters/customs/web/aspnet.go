package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/resilience"
)

// clickSubmitJS finds the WebForms submit control: the known button ids
// first, then any clickable whose visible text looks like a Vietnamese
// lookup/submit caption.
const clickSubmitJS = `(function() {
	var ids = ['Button1', 'pt1:cb1', 'pt1:commandButton1'];
	for (var i = 0; i < ids.length; i++) {
		var el = document.getElementById(ids[i]);
		if (el) { el.click(); return ids[i]; }
	}
	var pattern = /tra\s*cứu|lấy|in\s*mã|xem|tìm/i;
	var controls = document.querySelectorAll('input[type=submit], input[type=button], button, a');
	for (var j = 0; j < controls.length; j++) {
		var text = controls[j].value || controls[j].textContent || '';
		if (pattern.test(text)) { controls[j].click(); return 'text:' + text.trim(); }
	}
	return null;
})()`

// submitASPNet clicks the form's submit control and then polls the page for
// a PDF: a direct link, an embedded iframe, or the page itself having
// navigated to a PDF response.
func (c *Client) submitASPNet(ctx context.Context, d declaration.Declaration) ([]byte, error) {
	var clicked string
	if err := chromedp.Run(ctx, chromedp.Evaluate(clickSubmitJS, &clicked)); err != nil {
		return nil, resilience.NewError(resilience.KindNetwork, fmt.Errorf("submit form: %w", err))
	}
	if clicked == "" {
		return nil, resilience.NewError(resilience.KindData,
			fmt.Errorf("no submit control found on %s", c.url))
	}
	c.log.Debug("form submitted", "declaration", d.Number, "control", clicked)

	deadline := time.Now().Add(c.timeout)
	for {
		if pdf, ok := c.tryExtractPDF(ctx); ok {
			return pdf, nil
		}
		if time.Now().After(deadline) {
			return nil, resilience.NewError(resilience.KindNetwork,
				fmt.Errorf("no pdf appeared within %s after submit", c.timeout))
		}
		select {
		case <-ctx.Done():
			return nil, resilience.NewError(resilience.KindNetwork, ctx.Err())
		case <-time.After(time.Second):
		}
	}
}

func (c *Client) tryExtractPDF(ctx context.Context) ([]byte, bool) {
	var html, pageURL string
	if err := chromedp.Run(ctx,
		chromedp.Location(&pageURL),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return nil, false
	}

	if link, ok := findPDFLink(html, pageURL); ok {
		if pdf, err := c.download(ctx, link); err == nil {
			return pdf, true
		} else {
			c.log.Debug("pdf link not downloadable yet", "link", link, "error", err)
		}
	}

	// Some deployments navigate straight to the document.
	if pdf, err := c.download(ctx, pageURL); err == nil {
		return pdf, true
	}
	return nil, false
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d fetching %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/pdf") && !bytes.HasPrefix(body, []byte("%PDF")) {
		return nil, fmt.Errorf("%s returned %q, not a pdf", url, contentType)
	}
	return body, nil
}
