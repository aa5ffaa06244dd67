package tracking

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"vnexim/mavach/internal/core/declaration"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := Open(filepath.Join(t.TempDir(), "tracking.db"), log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testDeclaration() declaration.Declaration {
	return declaration.Declaration{TaxCode: "2300944637", Number: "107785877140"}
}

func TestAddProcessedIdempotent(t *testing.T) {
	store := openTestStore(t)
	d := testDeclaration()

	if processed, _ := store.IsProcessed(d); processed {
		t.Fatal("fresh store must not contain the declaration")
	}

	if err := store.AddProcessed(d, "/out/MV_2300944637_107785877140.pdf"); err != nil {
		t.Fatalf("AddProcessed: %v", err)
	}
	processed, err := store.IsProcessed(d)
	if err != nil || !processed {
		t.Fatalf("IsProcessed = (%v, %v), want (true, nil)", processed, err)
	}

	// Second add must not duplicate (declaration id is the primary key).
	if err := store.AddProcessed(d, "/out/MV_2300944637_107785877140.pdf"); err != nil {
		t.Fatalf("second AddProcessed: %v", err)
	}
	details, err := store.GetAllProcessedDetails()
	if err != nil {
		t.Fatalf("GetAllProcessedDetails: %v", err)
	}
	if len(details) != 1 {
		t.Errorf("rows = %d, want 1", len(details))
	}
}

func TestGetAllProcessed(t *testing.T) {
	store := openTestStore(t)

	first := testDeclaration()
	second := declaration.Declaration{TaxCode: "2300944637", Number: "305511223344"}
	store.AddProcessed(first, "a.pdf")
	store.AddProcessed(second, "b.pdf")

	set, err := store.GetAllProcessed()
	if err != nil {
		t.Fatalf("GetAllProcessed: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("set size = %d, want 2", len(set))
	}
	if _, ok := set[first.ID()]; !ok {
		t.Errorf("missing %s", first.ID())
	}
}

func TestUpdateProcessedTimestamp(t *testing.T) {
	store := openTestStore(t)
	d := testDeclaration()
	store.AddProcessed(d, "a.pdf")

	before, _ := store.GetAllProcessedDetails()
	time.Sleep(10 * time.Millisecond)
	if err := store.UpdateProcessedTimestamp(d); err != nil {
		t.Fatalf("UpdateProcessedTimestamp: %v", err)
	}
	after, _ := store.GetAllProcessedDetails()

	if !after[0].ProcessedAt.After(before[0].ProcessedAt) {
		t.Error("processed_at must advance")
	}
}

func TestErrorRoundTrip(t *testing.T) {
	store := openTestStore(t)
	at := time.Now().Truncate(time.Second)

	if err := store.RecordError("107785877140", "network", "connection refused", at); err != nil {
		t.Fatalf("RecordError: %v", err)
	}

	entries, err := store.GetErrorsForDeclaration("107785877140")
	if err != nil {
		t.Fatalf("GetErrorsForDeclaration: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.ErrorType != "network" || e.ErrorMessage != "connection refused" {
		t.Errorf("entry = %+v", e)
	}
	if diff := e.Timestamp.Sub(at); diff < -time.Second || diff > time.Second {
		t.Errorf("timestamp drift %v exceeds 1s tolerance", diff)
	}
	if e.Resolved != 0 {
		t.Error("new error must start unresolved")
	}
}

func TestErrorHistoryOrderingAndWindow(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	store.RecordError("D1", "network", "old", now.AddDate(0, 0, -40))
	store.RecordError("D2", "database", "recent", now.Add(-time.Hour))
	store.RecordError("D3", "data", "newest", now)

	history, err := store.GetErrorHistory(30)
	if err != nil {
		t.Fatalf("GetErrorHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2 (40-day-old pruned by window)", len(history))
	}
	if history[0].DeclarationNumber != "D3" || history[1].DeclarationNumber != "D2" {
		t.Errorf("history must be newest first, got %s then %s",
			history[0].DeclarationNumber, history[1].DeclarationNumber)
	}

	count, err := store.GetErrorCount(30)
	if err != nil || count != 2 {
		t.Errorf("GetErrorCount = (%d, %v), want (2, nil)", count, err)
	}
}

func TestClearOldErrors(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	store.RecordError("D1", "network", "old", now.AddDate(0, 0, -45))
	store.RecordError("D2", "network", "older", now.AddDate(0, 0, -31))
	store.RecordError("D3", "network", "fresh", now)

	deleted, err := store.ClearOldErrors(30)
	if err != nil {
		t.Fatalf("ClearOldErrors: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	count, _ := store.GetErrorCount(365)
	if count != 1 {
		t.Errorf("remaining = %d, want 1", count)
	}
}

func TestMarkResolved(t *testing.T) {
	store := openTestStore(t)
	store.RecordError("D1", "network", "msg", time.Now())

	entries, _ := store.GetErrorsForDeclaration("D1")
	ok, err := store.MarkResolved(entries[0].ID)
	if err != nil || !ok {
		t.Fatalf("MarkResolved = (%v, %v), want (true, nil)", ok, err)
	}

	entries, _ = store.GetErrorsForDeclaration("D1")
	if entries[0].Resolved != 1 {
		t.Error("entry must be flagged resolved")
	}

	ok, err = store.MarkResolved(99999)
	if err != nil || ok {
		t.Errorf("MarkResolved(unknown) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "nested", "dir", "tracking.db")
	store, err := Open(path, log)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()
}
