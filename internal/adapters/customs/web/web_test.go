package web

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		url  string
		want Dialect
	}{
		{"http://pus.customs.gov.vn/faces/ContainerBarcode", DialectADF},
		{"https://example.gov.vn/app/faces/lookup", DialectADF},
		{"http://barcode.customs.gov.vn/TraCuu.aspx", DialectASPNet},
		{"http://103.248.160.25/BarcodeMV", DialectASPNet},
	}
	for _, tt := range tests {
		if got := DetectDialect(tt.url); got != tt.want {
			t.Errorf("DetectDialect(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestSelectorCacheValidity(t *testing.T) {
	cache := NewSelectorCache("")
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return base }

	if _, ok := cache.Get(FieldTaxCode); ok {
		t.Fatal("empty cache returned a selector")
	}

	cache.Put(FieldTaxCode, "txtMaDN")
	if sel, ok := cache.Get(FieldTaxCode); !ok || sel != "txtMaDN" {
		t.Fatalf("Get() = %q, %v after Put", sel, ok)
	}

	cache.now = func() time.Time { return base.Add(23 * time.Hour) }
	if _, ok := cache.Get(FieldTaxCode); !ok {
		t.Error("selector expired before 24h")
	}

	cache.now = func() time.Time { return base.Add(24 * time.Hour) }
	if _, ok := cache.Get(FieldTaxCode); ok {
		t.Error("selector still valid at 24h")
	}
}

func TestSelectorCacheInvalidate(t *testing.T) {
	cache := NewSelectorCache("")
	cache.Put(FieldCustomsOffice, "txtMaHQ")
	cache.Invalidate(FieldCustomsOffice)
	if _, ok := cache.Get(FieldCustomsOffice); ok {
		t.Error("selector survived Invalidate")
	}
}

func TestSelectorCachePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "selectors.json")

	first := NewSelectorCache(path)
	first.Put(FieldDeclarationNumber, "txtSoTK")
	if err := first.Persist(); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cache file missing: %v", err)
	}

	second := NewSelectorCache(path)
	if sel, ok := second.Get(FieldDeclarationNumber); !ok || sel != "txtSoTK" {
		t.Errorf("reloaded Get() = %q, %v, want txtSoTK", sel, ok)
	}
}

func TestFindPDFLink(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
		ok   bool
	}{
		{
			name: "anchor with relative href",
			html: `<html><body><a href="files/MV_123.pdf">In mã vạch</a></body></html>`,
			want: "http://site.gov.vn/lookup/files/MV_123.pdf",
			ok:   true,
		},
		{
			name: "iframe source",
			html: `<html><body><iframe src="/render/doc.PDF?id=9"></iframe></body></html>`,
			want: "http://site.gov.vn/render/doc.PDF?id=9",
			ok:   true,
		},
		{
			name: "anchor preferred over iframe",
			html: `<html><body><iframe src="/b.pdf"></iframe><a href="/a.pdf">x</a></body></html>`,
			want: "http://site.gov.vn/a.pdf",
			ok:   true,
		},
		{
			name: "no pdf reference",
			html: `<html><body><a href="/home.aspx">Trang chủ</a></body></html>`,
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := findPDFLink(tt.html, "http://site.gov.vn/lookup/TraCuu.aspx")
			if ok != tt.ok {
				t.Fatalf("findPDFLink() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("findPDFLink() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPageStructure(t *testing.T) {
	html := `<html><head><title>Tra cứu mã vạch</title></head><body>
		<form id="form1" action="TraCuu.aspx">
			<input type="text" id="txtMaDN" name="txtMaDN"/>
			<select id="ddlMaHQ" name="ddlMaHQ"><option>01B1</option></select>
		</form></body></html>`

	dump := pageStructure(html, "http://site.gov.vn/TraCuu.aspx")
	for _, want := range []string{
		`title="Tra cứu mã vạch"`,
		"url=http://site.gov.vn/TraCuu.aspx",
		"form[0]:",
		`input{type="text" id="txtMaDN" name="txtMaDN"}`,
		`select{id="ddlMaHQ" name="ddlMaHQ"}`,
	} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
}

func TestPageStructureTruncatesForms(t *testing.T) {
	html := `<html><body><form id="big">` + strings.Repeat("<input name='x'/>", 200) + `</form></body></html>`
	dump := pageStructure(html, "http://site.gov.vn/")
	for _, line := range strings.Split(dump, "\n") {
		if strings.HasPrefix(line, "form[0]:") && !strings.HasSuffix(line, "...") {
			t.Errorf("long form was not truncated: %d chars", len(line))
		}
	}
}
