// Package fsbackend implements the filesystem-backed storage backend: a
// root directory of numerically named blob files plus a JSON metadata
// sidecar. Grounded on the teacher's internal/storage/local.go atomic
// write pattern (temp file, fsync, rename), with the teacher's hand
// rolled internal/uid.New() swapped for github.com/google/uuid as the
// temp-file suffix generator.
package fsbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scatterstore/scatterstore/internal/backend"
	"github.com/scatterstore/scatterstore/internal/errors"
	"github.com/scatterstore/scatterstore/internal/promise"
)

// Config recognizes the FS backend option table from spec §6: root,
// meta_table (the sidecar path), timeout.
type Config struct {
	Root      string
	MetaTable string // sidecar file path; defaults to "<root>/.metadata.json"
	Timeout   time.Duration
}

func (c Config) metaPath() string {
	if c.MetaTable != "" {
		return c.MetaTable
	}
	return filepath.Join(c.Root, ".metadata.json")
}

// entry mirrors the sidecar's per-id record.
type entry struct {
	ID        string `json:"id"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"created_at"`
	File      string `json:"file"`
}

// FS is a backend.Backend storing blobs as numerically named files under
// a root directory, with an in-memory id -> entry map persisted to a
// pretty-printed JSON sidecar on Backup.
type FS struct {
	cfg Config

	mu      sync.RWMutex
	ready   *promise.Promise[bool]
	entries map[string]entry
	counter int64
}

var _ backend.Backend = (*FS)(nil)

// New constructs an FS backend that has not yet been initialized;
// callers must call Init before using it.
func New(cfg Config) *FS {
	return &FS{cfg: cfg, ready: promise.New[bool](), entries: map[string]entry{}}
}

func (f *FS) IsReady() *promise.Promise[bool] {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ready
}

// Init creates the root and temp directories, reads the sidecar
// (treating malformed contents as empty), and seeds the file-name
// counter at max(existing names), so the next file written is named
// max(existing names) + 1.
func (f *FS) Init(ctx context.Context) *promise.Promise[bool] {
	fresh := promise.New[bool]()
	f.mu.Lock()
	f.ready = fresh
	f.mu.Unlock()

	if err := os.MkdirAll(f.cfg.Root, 0o755); err != nil {
		fresh.Reject(errors.Backend("creating storage root", err))
		return fresh
	}
	tmpDir := filepath.Join(f.cfg.Root, ".tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		fresh.Reject(errors.Backend("creating temp directory", err))
		return fresh
	}

	entries := map[string]entry{}
	if data, err := os.ReadFile(f.cfg.metaPath()); err == nil {
		// A malformed sidecar is treated as empty rather than a fatal error.
		_ = json.Unmarshal(data, &entries)
	}

	var counter int64
	for _, e := range entries {
		if n, err := strconv.ParseInt(e.File, 10, 64); err == nil && n > counter {
			counter = n
		}
	}

	f.mu.Lock()
	f.entries = entries
	f.counter = counter
	f.mu.Unlock()

	fresh.Resolve(true)
	return fresh
}

// Backup serializes the in-memory entry map to the sidecar as
// pretty-printed JSON.
func (f *FS) Backup(ctx context.Context) *promise.Promise[bool] {
	f.mu.RLock()
	snapshot := make(map[string]entry, len(f.entries))
	for k, v := range f.entries {
		snapshot[k] = v
	}
	f.mu.RUnlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return promise.Reject[bool](errors.Backend("marshaling metadata sidecar", err))
	}
	if err := f.writeAtomic(f.cfg.metaPath(), data); err != nil {
		return promise.Reject[bool](errors.Backend("writing metadata sidecar", err))
	}
	return promise.Resolve(true)
}

func (f *FS) Close(ctx context.Context) *promise.Promise[bool] {
	f.mu.Lock()
	closed := errors.Frontend("backend closed", nil)
	if !f.ready.Reject(closed) {
		f.ready = promise.Reject[bool](closed)
	}
	f.mu.Unlock()
	return promise.Resolve(true)
}

func (f *FS) IsOnline(ctx context.Context) *promise.Promise[*int64] {
	start := time.Now()
	if _, err := os.Stat(f.cfg.Root); err != nil {
		return promise.Resolve[*int64](nil)
	}
	latency := time.Since(start).Milliseconds()
	return promise.Resolve(&latency)
}

func (f *FS) GetObjectMetadata(ctx context.Context, id string) *promise.Promise[backend.ObjectMetadata] {
	f.mu.RLock()
	e, ok := f.entries[id]
	f.mu.RUnlock()
	if !ok {
		return promise.Reject[backend.ObjectMetadata](errors.Backend(fmt.Sprintf("object %q not found", id), nil))
	}
	return promise.Resolve(backend.ObjectMetadata{ID: e.ID, Size: e.Size, CreatedAt: e.CreatedAt})
}

func (f *FS) ApproveObjectMetadata(ctx context.Context, id string, size int64) *promise.Promise[bool] {
	f.mu.RLock()
	_, exists := f.entries[id]
	f.mu.RUnlock()
	if exists {
		return promise.Reject[bool](errors.Backend(fmt.Sprintf("object %q already exists", id), nil))
	}
	return promise.Resolve(true)
}

func (f *FS) GetObject(ctx context.Context, id string) *promise.Promise[[]byte] {
	f.mu.RLock()
	e, ok := f.entries[id]
	f.mu.RUnlock()
	if !ok {
		return promise.Reject[[]byte](errors.Backend(fmt.Sprintf("object %q not found", id), nil))
	}
	data, err := os.ReadFile(filepath.Join(f.cfg.Root, e.File))
	if err != nil {
		return promise.Reject[[]byte](errors.Backend(fmt.Sprintf("reading object %q", id), err))
	}
	return promise.Resolve(data)
}

// SetObject refuses an existing id, writes the file atomically, then
// updates the in-memory map. The sidecar itself is not rewritten here;
// callers durably persist it via Backup.
func (f *FS) SetObject(ctx context.Context, id string, data []byte) *promise.Promise[backend.ObjectMetadata] {
	f.mu.Lock()
	if _, exists := f.entries[id]; exists {
		f.mu.Unlock()
		return promise.Reject[backend.ObjectMetadata](errors.Backend(fmt.Sprintf("object %q already exists", id), nil))
	}
	f.counter++
	fileName := strconv.FormatInt(f.counter, 10)
	f.mu.Unlock()

	if err := f.writeAtomic(filepath.Join(f.cfg.Root, fileName), data); err != nil {
		return promise.Reject[backend.ObjectMetadata](errors.Backend(fmt.Sprintf("writing object %q", id), err))
	}

	e := entry{ID: id, Size: int64(len(data)), CreatedAt: time.Now().UnixMilli(), File: fileName}
	f.mu.Lock()
	f.entries[id] = e
	f.mu.Unlock()

	return promise.Resolve(backend.ObjectMetadata{ID: e.ID, Size: e.Size, CreatedAt: e.CreatedAt})
}

func (f *FS) DelObject(ctx context.Context, id string) *promise.Promise[bool] {
	f.mu.Lock()
	e, ok := f.entries[id]
	if !ok {
		f.mu.Unlock()
		return promise.Resolve(false)
	}
	delete(f.entries, id)
	f.mu.Unlock()

	if err := os.Remove(filepath.Join(f.cfg.Root, e.File)); err != nil && !os.IsNotExist(err) {
		return promise.Reject[bool](errors.Backend(fmt.Sprintf("deleting object %q", id), err))
	}
	return promise.Resolve(true)
}

// writeAtomic writes data to a temp file under root/.tmp then renames it
// into place, syncing before the rename to guarantee durability.
func (f *FS) writeAtomic(finalPath string, data []byte) error {
	tmpPath := filepath.Join(f.cfg.Root, ".tmp", "tmp-"+uuid.NewString())

	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
