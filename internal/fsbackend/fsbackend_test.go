package fsbackend

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestBackend(t *testing.T) *FS {
	t.Helper()
	root := filepath.Join(t.TempDir(), "blobs")
	f := New(Config{Root: root})
	if _, err := f.Init(context.Background()).Wait(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return f
}

func TestSetObjectThenGetObject(t *testing.T) {
	f := newTestBackend(t)
	ctx := context.Background()

	meta, err := f.SetObject(ctx, "hello.txt", []byte("Hello World!")).Wait(ctx)
	if err != nil {
		t.Fatalf("SetObject: %v", err)
	}
	if meta.Size != 12 {
		t.Errorf("Size = %d, want 12", meta.Size)
	}

	data, err := f.GetObject(ctx, "hello.txt").Wait(ctx)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	if string(data) != "Hello World!" {
		t.Errorf("data = %q, want %q", data, "Hello World!")
	}
}

func TestSetObjectRejectsDuplicateID(t *testing.T) {
	f := newTestBackend(t)
	ctx := context.Background()

	f.SetObject(ctx, "dup", []byte("a")).Wait(ctx)
	if _, err := f.SetObject(ctx, "dup", []byte("b")).Wait(ctx); err == nil {
		t.Fatal("expected rejection for duplicate id")
	}
}

func TestBackupWritesSidecarAndInitReloadsIt(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blobs")
	f := New(Config{Root: root})
	ctx := context.Background()
	f.Init(ctx).Wait(ctx)

	f.SetObject(ctx, "a", []byte("1")).Wait(ctx)
	f.SetObject(ctx, "b", []byte("22")).Wait(ctx)
	if _, err := f.Backup(ctx).Wait(ctx); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	reloaded := New(Config{Root: root})
	if _, err := reloaded.Init(ctx).Wait(ctx); err != nil {
		t.Fatalf("Init (reload): %v", err)
	}

	meta, err := reloaded.GetObjectMetadata(ctx, "b").Wait(ctx)
	if err != nil {
		t.Fatalf("GetObjectMetadata after reload: %v", err)
	}
	if meta.Size != 2 {
		t.Errorf("Size = %d, want 2", meta.Size)
	}

	// The file-name counter must resume above the highest existing name,
	// so a fresh write after reload does not collide with "a" or "b".
	if _, err := reloaded.SetObject(ctx, "c", []byte("333")).Wait(ctx); err != nil {
		t.Fatalf("SetObject after reload: %v", err)
	}
	if data, err := reloaded.GetObject(ctx, "b").Wait(ctx); err != nil || string(data) != "22" {
		t.Errorf("GetObject(b) after writing c = (%q, %v), want 22", data, err)
	}
}

func TestInitTreatsMalformedSidecarAsEmpty(t *testing.T) {
	root := filepath.Join(t.TempDir(), "blobs")
	f := New(Config{Root: root})
	ctx := context.Background()
	f.Init(ctx).Wait(ctx)

	if err := f.writeAtomic(f.cfg.metaPath(), []byte("not json")); err != nil {
		t.Fatalf("writeAtomic: %v", err)
	}

	reloaded := New(Config{Root: root})
	if _, err := reloaded.Init(ctx).Wait(ctx); err != nil {
		t.Fatalf("Init should tolerate a malformed sidecar: %v", err)
	}
	if _, err := reloaded.GetObjectMetadata(ctx, "anything").Wait(ctx); err == nil {
		t.Fatal("expected empty entry map after malformed sidecar reload")
	}
}

func TestIsOnlineReflectsRootAccessibility(t *testing.T) {
	f := newTestBackend(t)
	ctx := context.Background()

	latency, err := f.IsOnline(ctx).Wait(ctx)
	if err != nil {
		t.Fatalf("IsOnline: %v", err)
	}
	if latency == nil {
		t.Fatal("expected a latency value for an accessible root")
	}
}

func TestCloseRejectsIsReady(t *testing.T) {
	f := newTestBackend(t)
	ctx := context.Background()

	f.Close(ctx)
	if _, err := f.IsReady().Wait(ctx); err == nil {
		t.Fatal("IsReady should reject after Close")
	}
}
