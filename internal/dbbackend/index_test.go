package dbbackend

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T) *IndexStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index.db")
	store, err := OpenIndexStore(context.Background(), IndexConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("OpenIndexStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIndexInsertThenLookup(t *testing.T) {
	store := newTestIndex(t)
	ctx := context.Background()

	entry := IndexEntry{ID: "secret", Backend: "db_1", Bearer: "tok-A"}
	if err := store.Insert(ctx, entry); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, found, err := store.Lookup(ctx, "secret")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found {
		t.Fatal("expected entry to be found")
	}
	if got != entry {
		t.Errorf("got %+v, want %+v", got, entry)
	}
}

func TestIndexLookupMissingReturnsFalse(t *testing.T) {
	store := newTestIndex(t)
	_, found, err := store.Lookup(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if found {
		t.Fatal("expected not found")
	}
}

func TestIndexInsertRejectsDuplicateID(t *testing.T) {
	store := newTestIndex(t)
	ctx := context.Background()

	store.Insert(ctx, IndexEntry{ID: "x", Backend: "db_1"})
	if err := store.Insert(ctx, IndexEntry{ID: "x", Backend: "fs_1"}); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
}

func TestIndexDeleteRemovesEntry(t *testing.T) {
	store := newTestIndex(t)
	ctx := context.Background()

	store.Insert(ctx, IndexEntry{ID: "y", Backend: "db_1"})
	if err := store.Delete(ctx, "y"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, found, _ := store.Lookup(ctx, "y")
	if found {
		t.Fatal("entry should be gone after Delete")
	}
}
