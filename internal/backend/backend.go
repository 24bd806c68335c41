// Package backend defines the uniform contract every concrete storage
// backend (database, filesystem, S3) satisfies. It generalizes the
// teacher's StorageBackend interface, which carries S3-specific bucket
// and multipart operations, down to the leaner get/put/delete/metadata
// surface scatterstore's frontends dispatch against.
package backend

import (
	"context"

	"github.com/scatterstore/scatterstore/internal/promise"
)

// ObjectMetadata describes a stored blob without its payload.
type ObjectMetadata struct {
	ID        string
	Size      int64
	CreatedAt int64 // milliseconds since Unix epoch
}

// Backend is the capability set every concrete storage backend exposes.
// Every operation returns a promise rather than blocking the caller
// directly; callers that need a synchronous result call Wait on it.
type Backend interface {
	// IsReady fulfills true once Init has settled successfully; it
	// rejects with a closed reason after Close.
	IsReady() *promise.Promise[bool]

	// Init is idempotent bring-up: it replaces IsReady with a fresh
	// pending cell, performs whatever bring-up the concrete backend
	// needs, then settles it.
	Init(ctx context.Context) *promise.Promise[bool]

	// Backup durably persists any in-memory state that is not already
	// durable. It is a no-op for inherently durable stores.
	Backup(ctx context.Context) *promise.Promise[bool]

	// Close releases resources and transitions IsReady to rejected;
	// operations issued after Close fail.
	Close(ctx context.Context) *promise.Promise[bool]

	// IsOnline is a lightweight liveness probe. It fulfills with a
	// latency in milliseconds on success, or with nil on any failure —
	// it never rejects.
	IsOnline(ctx context.Context) *promise.Promise[*int64]

	// GetObjectMetadata rejects if id is not present in this backend.
	GetObjectMetadata(ctx context.Context, id string) *promise.Promise[ObjectMetadata]

	// ApproveObjectMetadata rejects if id already exists in this
	// backend; otherwise it fulfills true. It may later become
	// size-aware (e.g. quota checks).
	ApproveObjectMetadata(ctx context.Context, id string, size int64) *promise.Promise[bool]

	// GetObject rejects if id is absent.
	GetObject(ctx context.Context, id string) *promise.Promise[[]byte]

	// SetObject rejects if id already exists; on success it fulfills
	// with the committed metadata, including the assigned CreatedAt.
	SetObject(ctx context.Context, id string, data []byte) *promise.Promise[ObjectMetadata]

	// DelObject is a test-only affordance; the public write path never
	// calls it, since object IDs are write-once.
	DelObject(ctx context.Context, id string) *promise.Promise[bool]
}
