package web

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// findPDFLink scans rendered page HTML for a downloadable PDF: first an
// anchor pointing at a .pdf resource, then an iframe embedding one. Relative
// references are resolved against the page URL.
func findPDFLink(html, pageURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	candidate := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(strings.ToLower(href), ".pdf") {
			candidate = href
			return false
		}
		return true
	})
	if candidate == "" {
		doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src, _ := s.Attr("src")
			if strings.Contains(strings.ToLower(src), ".pdf") {
				candidate = src
				return false
			}
			return true
		})
	}
	if candidate == "" {
		return "", false
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return candidate, true
	}
	ref, err := url.Parse(candidate)
	if err != nil {
		return candidate, true
	}
	return base.ResolveReference(ref).String(), true
}

// pageStructure summarizes a page for diagnostics after every selector for a
// field has failed: title, URL, each form's markup truncated to 500 runes,
// and the attribute sets of all input and select elements.
func pageStructure(html, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Sprintf("unparseable page at %s: %v", pageURL, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "title=%q url=%s\n", strings.TrimSpace(doc.Find("title").Text()), pageURL)

	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		markup, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		markup = strings.Join(strings.Fields(markup), " ")
		if runes := []rune(markup); len(runes) > 500 {
			markup = string(runes[:500]) + "..."
		}
		fmt.Fprintf(&b, "form[%d]: %s\n", i, markup)
	})

	doc.Find("input, select").Each(func(_ int, s *goquery.Selection) {
		var attrs []string
		for _, a := range s.Nodes[0].Attr {
			attrs = append(attrs, fmt.Sprintf("%s=%q", a.Key, a.Val))
		}
		fmt.Fprintf(&b, "%s{%s}\n", goquery.NodeName(s), strings.Join(attrs, " "))
	})
	return b.String()
}
