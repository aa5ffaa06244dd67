package web

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/resilience"
)

// adfReadyJS reports whether the ADF client runtime has initialized.
const adfReadyJS = `(function() {
	return document.readyState === 'complete' &&
		(typeof AdfPage !== 'undefined' || document.querySelector('[id^="pt1:"]') !== null);
})()`

// clickADFJS walks the submit fallbacks in order: a link carrying the ADF
// button class, any role=button with a lookup caption, a caption span's
// enclosing link, and finally the first a[role=button] on the page.
const clickADFJS = `(function() {
	var pattern = /tra\s*cứu|lấy|in\s*mã|xem/i;
	var byClass = document.evaluate(
		"//a[contains(concat(' ', normalize-space(@class), ' '), ' af_button ')]",
		document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (byClass) { byClass.click(); return 'class'; }
	var buttons = document.querySelectorAll('[role="button"]');
	for (var i = 0; i < buttons.length; i++) {
		if (pattern.test(buttons[i].textContent || '')) { buttons[i].click(); return 'role-text'; }
	}
	var spans = document.querySelectorAll('span');
	for (var j = 0; j < spans.length; j++) {
		if (pattern.test(spans[j].textContent || '')) {
			var link = spans[j].closest('a');
			if (link) { link.click(); return 'span-ancestor'; }
		}
	}
	var anyButton = document.querySelector('a[role="button"]');
	if (anyButton) { anyButton.click(); return 'any-role-button'; }
	return null;
})()`

// adfResultJS reports whether the lookup result has rendered: a non-empty
// result region, the save link, or any table mentioning containers or the
// barcode.
const adfResultJS = `(function() {
	var result = document.querySelector('[id*="KetQua"], [id*="pgl_Result"]');
	if (result && result.textContent.trim().length > 0) { return true; }
	if (document.getElementById('lbl_BanLuu')) { return true; }
	var tables = document.querySelectorAll('table');
	var pattern = /container|mã\s*vạch/i;
	for (var i = 0; i < tables.length; i++) {
		if (pattern.test(tables[i].textContent || '')) { return true; }
	}
	return false;
})()`

// hideChromeJS strips navigation and the input form before printing so only
// the result region reaches the document.
const hideChromeJS = `(function() {
	var hide = ['header', 'nav', 'footer',
		'[id*="pgl_Header"]', '[id*="pgl_Menu"]', '[id*="pgl_Footer"]',
		'[id*="pgl_Form"]', '[id*="pgl_TraCuu"]'];
	hide.forEach(function(sel) {
		document.querySelectorAll(sel).forEach(function(el) { el.style.display = 'none'; });
	});
	document.body.style.marginTop = '0';
	document.body.style.paddingTop = '0';
	return true;
})()`

var warmUpWaits = []time.Duration{3 * time.Second, 5 * time.Second, 10 * time.Second}

// warmUp gives the ADF client-side JavaScript time to initialize before any
// element lookup is attempted.
func (c *Client) warmUp(ctx context.Context) error {
	for _, wait := range warmUpWaits {
		select {
		case <-ctx.Done():
			return resilience.NewError(resilience.KindNetwork, ctx.Err())
		case <-time.After(wait):
		}
		var ready bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(adfReadyJS, &ready)); err != nil {
			return resilience.NewError(resilience.KindNetwork, fmt.Errorf("adf warm-up probe: %w", err))
		}
		if ready {
			return nil
		}
	}
	return resilience.NewError(resilience.KindNetwork,
		fmt.Errorf("adf page never initialized on %s", c.url))
}

// submitADF clicks the lookup button, waits out the AJAX round trip, polls
// for the rendered result and prints the page to PDF.
func (c *Client) submitADF(ctx context.Context, d declaration.Declaration) ([]byte, error) {
	var clicked string
	if err := chromedp.Run(ctx, chromedp.Evaluate(clickADFJS, &clicked)); err != nil {
		return nil, resilience.NewError(resilience.KindNetwork, fmt.Errorf("adf submit: %w", err))
	}
	if clicked == "" {
		return nil, resilience.NewError(resilience.KindData,
			fmt.Errorf("no adf submit control found on %s", c.url))
	}
	c.log.Debug("adf lookup submitted", "declaration", d.Number, "via", clicked)

	select {
	case <-ctx.Done():
		return nil, resilience.NewError(resilience.KindNetwork, ctx.Err())
	case <-time.After(10 * time.Second):
	}

	if err := c.awaitResult(ctx); err != nil {
		return nil, err
	}
	return c.printPage(ctx)
}

func (c *Client) awaitResult(ctx context.Context) error {
	deadline := time.Now().Add(c.timeout)
	for {
		var loaded bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(adfResultJS, &loaded)); err != nil {
			return resilience.NewError(resilience.KindNetwork, fmt.Errorf("poll adf result: %w", err))
		}
		if loaded {
			return nil
		}
		if time.Now().After(deadline) {
			return resilience.NewError(resilience.KindNetwork,
				fmt.Errorf("adf result did not load within %s", c.timeout))
		}
		select {
		case <-ctx.Done():
			return resilience.NewError(resilience.KindNetwork, ctx.Err())
		case <-time.After(time.Second):
		}
	}
}

// printPage hides the page chrome and prints the remainder to A4 via the
// devtools protocol.
func (c *Client) printPage(ctx context.Context) ([]byte, error) {
	var hidden bool
	var pdf []byte
	err := chromedp.Run(ctx,
		chromedp.Evaluate(hideChromeJS, &hidden),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.1).
				WithMarginBottom(0.3).
				WithMarginLeft(0.3).
				WithMarginRight(0.3).
				WithScale(1.4).
				WithPrintBackground(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, resilience.NewError(resilience.KindNetwork, fmt.Errorf("print page: %w", err))
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		return nil, resilience.NewError(resilience.KindData,
			fmt.Errorf("printed document is not a pdf (%d bytes)", len(pdf)))
	}
	return pdf, nil
}
