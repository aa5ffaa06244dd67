package files

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"vnexim/mavach/internal/core/declaration"
	"vnexim/mavach/internal/infrastructure/config"
	"vnexim/mavach/internal/infrastructure/resilience"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDeclaration() declaration.Declaration {
	return declaration.Declaration{TaxCode: "2300944637", Number: "107785877140"}
}

func TestDefaultNamerDeterminism(t *testing.T) {
	d := testDeclaration()
	want := "MV_2300944637_107785877140.pdf"
	if got := DefaultNamer(d); got != want {
		t.Errorf("DefaultNamer = %q, want %q", got, want)
	}
	// Same identity, same name.
	if DefaultNamer(testDeclaration()) != want {
		t.Error("DefaultNamer must be deterministic")
	}
	// Either identity field changes the name.
	other := d
	other.Number = "107785877141"
	if DefaultNamer(other) == want {
		t.Error("changed declaration number must change the filename")
	}
	other = d
	other.TaxCode = "2300944638"
	if DefaultNamer(other) == want {
		t.Error("changed tax code must change the filename")
	}
}

func TestNamerFor(t *testing.T) {
	d := testDeclaration()
	d.InvoiceNumber = "INV/2025-001"
	d.BillOfLading = "BL 778899"

	tests := []struct {
		format config.NamingFormat
		want   string
	}{
		{config.NamingTaxCode, "MV_2300944637_107785877140.pdf"},
		{config.NamingInvoice, "MV_INV_2025-001.pdf"},
		{config.NamingBillOfLading, "MV_BL_778899.pdf"},
	}
	for _, tt := range tests {
		if got := NamerFor(tt.format)(d); got != tt.want {
			t.Errorf("NamerFor(%s) = %q, want %q", tt.format, got, tt.want)
		}
	}

	// Missing alternate identifiers fall back to the default format.
	bare := testDeclaration()
	if got := NamerFor(config.NamingInvoice)(bare); got != "MV_2300944637_107785877140.pdf" {
		t.Errorf("invoice namer without invoice = %q, want default fallback", got)
	}
}

func TestSaveCreatesDirectoryAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	m := NewManager(dir, DefaultNamer, nil, discardLogger())

	path, err := m.Save(testDeclaration(), []byte("%PDF-1.4 test"), false)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if path != filepath.Join(dir, "MV_2300944637_107785877140.pdf") {
		t.Errorf("unexpected path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "%PDF-1.4 test" {
		t.Errorf("saved content = %q", data)
	}
}

func TestSaveSkipsExistingWithoutOverwrite(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, DefaultNamer, nil, discardLogger())

	if _, err := m.Save(testDeclaration(), []byte("first"), false); err != nil {
		t.Fatalf("first save: %v", err)
	}
	path, err := m.Save(testDeclaration(), []byte("second"), false)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if path != "" {
		t.Errorf("expected skip (empty path), got %q", path)
	}

	data, _ := os.ReadFile(m.Path(testDeclaration()))
	if string(data) != "first" {
		t.Errorf("existing file must be untouched, got %q", data)
	}
}

func TestSaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, DefaultNamer, nil, discardLogger())

	if _, err := m.Save(testDeclaration(), []byte("B1"), false); err != nil {
		t.Fatalf("first save: %v", err)
	}
	path, err := m.Save(testDeclaration(), []byte("B2"), true)
	if err != nil {
		t.Fatalf("overwrite save: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "B2" {
		t.Errorf("overwritten content = %q, want B2", data)
	}
}

type fixedResolver struct{ policy ConflictPolicy }

func (r fixedResolver) Resolve(string) ConflictPolicy { return r.policy }

func TestSaveConflictRename(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, DefaultNamer, fixedResolver{ConflictRename}, discardLogger())

	if _, err := m.Save(testDeclaration(), []byte("first"), false); err != nil {
		t.Fatalf("first save: %v", err)
	}
	path, err := m.Save(testDeclaration(), []byte("renamed"), false)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	want := filepath.Join(dir, "MV_2300944637_107785877140_1.pdf")
	if path != want {
		t.Errorf("renamed path = %q, want %q", path, want)
	}
}

func TestSaveConflictOverwritePolicy(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, DefaultNamer, fixedResolver{ConflictOverwrite}, discardLogger())

	if _, err := m.Save(testDeclaration(), []byte("first"), false); err != nil {
		t.Fatalf("first save: %v", err)
	}
	path, err := m.Save(testDeclaration(), []byte("second"), false)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("content = %q, want second", data)
	}
}

func TestSaveClassifiesFilesystemErrors(t *testing.T) {
	// A file where the directory should be forces MkdirAll to fail.
	base := t.TempDir()
	blocked := filepath.Join(base, "blocked")
	if err := os.WriteFile(blocked, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(filepath.Join(blocked, "out"), DefaultNamer, nil, discardLogger())
	_, err := m.Save(testDeclaration(), []byte("data"), false)
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *resilience.ClassifiedError
	if !errors.As(err, &ce) || ce.Kind != resilience.KindFileSystem {
		t.Errorf("error = %v, want file_system classification", err)
	}
}

func TestSetOutputDirConcurrentWithSave(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	m := NewManager(dirA, nil, nil, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := m.Save(testDeclaration(), []byte("%PDF"), true); err != nil {
				t.Errorf("Save: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			m.SetOutputDir(dirB)
			m.Path(testDeclaration())
			m.SetOutputDir(dirA)
		}()
	}
	wg.Wait()

	m.SetOutputDir(dirB)
	want := filepath.Join(dirB, "MV_2300944637_107785877140.pdf")
	if got := m.Path(testDeclaration()); got != want {
		t.Errorf("Path after SetOutputDir = %q, want %q", got, want)
	}
}
