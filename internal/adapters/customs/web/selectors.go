package web

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Field identifies one of the four lookup-form inputs.
type Field string

const (
	FieldTaxCode           Field = "tax_code"
	FieldDeclarationNumber Field = "declaration_number"
	FieldDeclarationDate   Field = "declaration_date"
	FieldCustomsOffice     Field = "customs_office"
)

// fieldSelectors holds the ordered candidate selector identifiers per field.
// Each identifier is tried as an element id first, then as a name attribute.
// The lists cover the ASP.NET lookup pages and the Oracle ADF ones.
var fieldSelectors = map[Field][]string{
	FieldTaxCode: {
		"txtMaDN",
		"TextBox1",
		"pt1:it1::content",
		"ctl00_ContentPlaceHolder1_txtMaDN",
	},
	FieldDeclarationNumber: {
		"txtSoTK",
		"TextBox2",
		"pt1:it2::content",
		"ctl00_ContentPlaceHolder1_txtSoTK",
	},
	FieldDeclarationDate: {
		"txtNgayDK",
		"TextBox3",
		"pt1:id1::content",
		"ctl00_ContentPlaceHolder1_txtNgayDK",
	},
	FieldCustomsOffice: {
		"txtMaHQ",
		"DropDownList1",
		"pt1:soc1::content",
		"ctl00_ContentPlaceHolder1_ddlMaHQ",
	},
}

// selectorTTL is how long a remembered selector stays trusted.
const selectorTTL = 24 * time.Hour

type cacheEntry struct {
	Selector  string    `json:"selector"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SelectorCache remembers, per field, the selector that last worked so the
// next lookup tries it before walking the full candidate list. An optional
// on-disk JSON file carries the cache across restarts.
type SelectorCache struct {
	mu      sync.Mutex
	entries map[Field]cacheEntry
	path    string
	now     func() time.Time
}

// NewSelectorCache creates a cache. path may be empty for memory-only
// operation; when set, a previously persisted cache is loaded if present.
func NewSelectorCache(path string) *SelectorCache {
	c := &SelectorCache{
		entries: make(map[Field]cacheEntry),
		path:    path,
		now:     time.Now,
	}
	if path != "" {
		c.load()
	}
	return c
}

// Get returns the cached selector for a field if it is still within its
// validity window.
func (c *SelectorCache) Get(field Field) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[field]
	if !ok || c.now().Sub(entry.UpdatedAt) >= selectorTTL {
		return "", false
	}
	return entry.Selector, true
}

// Put records the selector that just worked for a field.
func (c *SelectorCache) Put(field Field, selector string) {
	c.mu.Lock()
	c.entries[field] = cacheEntry{Selector: selector, UpdatedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate drops the cached selector for a field.
func (c *SelectorCache) Invalidate(field Field) {
	c.mu.Lock()
	delete(c.entries, field)
	c.mu.Unlock()
}

func (c *SelectorCache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	var entries map[Field]cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Persist writes the cache to its configured path, if any.
func (c *SelectorCache) Persist() error {
	if c.path == "" {
		return nil
	}

	c.mu.Lock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal selector cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create selector cache dir: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write selector cache: %w", err)
	}
	return nil
}
