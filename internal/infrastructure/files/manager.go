package files

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/config"
	"vnexim/mavach/internal/infrastructure/resilience"
)

// ConflictPolicy decides what happens when the target file already exists and
// overwrite was not requested.
type ConflictPolicy string

const (
	ConflictSkip      ConflictPolicy = "skip"
	ConflictOverwrite ConflictPolicy = "overwrite"
	ConflictRename    ConflictPolicy = "rename"
)

// ConflictResolver is consulted for existing targets. The UI attaches an
// interactive implementation; without one the manager skips.
type ConflictResolver interface {
	Resolve(path string) ConflictPolicy
}

// Namer formats an output filename for a declaration.
type Namer func(d declaration.Declaration) string

// DefaultNamer builds "MV_<tax_code>_<declaration_number>.pdf".
func DefaultNamer(d declaration.Declaration) string {
	return fmt.Sprintf("MV_%s_%s.pdf", d.TaxCode, d.Number)
}

// InvoiceNamer names by invoice number, falling back to the default format
// when the declaration has none.
func InvoiceNamer(d declaration.Declaration) string {
	if d.InvoiceNumber == "" {
		return DefaultNamer(d)
	}
	return fmt.Sprintf("MV_%s.pdf", sanitize(d.InvoiceNumber))
}

// BillOfLadingNamer names by bill-of-lading number, falling back to the
// default format when the declaration has none.
func BillOfLadingNamer(d declaration.Declaration) string {
	if d.BillOfLading == "" {
		return DefaultNamer(d)
	}
	return fmt.Sprintf("MV_%s.pdf", sanitize(d.BillOfLading))
}

// NamerFor maps the configured naming format to a Namer.
func NamerFor(format config.NamingFormat) Namer {
	switch format {
	case config.NamingInvoice:
		return InvoiceNamer
	case config.NamingBillOfLading:
		return BillOfLadingNamer
	default:
		return DefaultNamer
	}
}

func sanitize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

// Manager writes barcode PDFs under the configured output directory.
type Manager struct {
	namer    Namer
	resolver ConflictResolver
	log      *slog.Logger

	// The control API can redirect output while the scheduler is saving.
	mu        sync.Mutex
	outputDir string
}

// NewManager creates a file manager. resolver may be nil.
func NewManager(outputDir string, namer Namer, resolver ConflictResolver, log *slog.Logger) *Manager {
	if namer == nil {
		namer = DefaultNamer
	}
	return &Manager{outputDir: outputDir, namer: namer, resolver: resolver, log: log}
}

// SetOutputDir swaps the output directory (runtime setter).
func (m *Manager) SetOutputDir(dir string) {
	m.mu.Lock()
	m.outputDir = dir
	m.mu.Unlock()
}

func (m *Manager) dir() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outputDir
}

// Filename returns the target filename (without directory) for a declaration.
func (m *Manager) Filename(d declaration.Declaration) string {
	return m.namer(d)
}

// Path returns the full target path for a declaration.
func (m *Manager) Path(d declaration.Declaration) string {
	return filepath.Join(m.dir(), m.namer(d))
}

// Save writes pdf to the declaration's target path with atomic-replace
// semantics. When the target exists and overwrite is false, the conflict
// resolver decides; with no resolver the write is skipped and Save returns
// ("", nil). Filesystem failures come back classified as file_system.
func (m *Manager) Save(d declaration.Declaration, pdf []byte, overwrite bool) (string, error) {
	dir := m.dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", resilience.NewError(resilience.KindFileSystem, fmt.Errorf("create output directory: %w", err))
	}

	target := filepath.Join(dir, m.namer(d))
	if !overwrite {
		if _, err := os.Stat(target); err == nil {
			switch policy := m.resolve(target); policy {
			case ConflictOverwrite:
				// fall through to the atomic write
			case ConflictRename:
				target = m.nextFreePath(target)
			default:
				m.log.Info("output exists, skipping", "path", target)
				return "", nil
			}
		}
	}

	if err := writeAtomic(target, pdf); err != nil {
		return "", resilience.NewError(resilience.KindFileSystem, err)
	}
	m.log.Info("saved barcode document", "path", target, "bytes", len(pdf))
	return target, nil
}

func (m *Manager) resolve(path string) ConflictPolicy {
	if m.resolver == nil {
		return ConflictSkip
	}
	return m.resolver.Resolve(path)
}

// nextFreePath suffixes the filename with an incrementing counter until the
// path does not exist.
func (m *Manager) nextFreePath(target string) string {
	ext := filepath.Ext(target)
	stem := target[:len(target)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// writeAtomic writes to a temp file in the target directory and renames it
// over the target.
func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".mavach-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("replace target: %w", err)
	}
	return nil
}
