package frontend

import (
	"context"
	"sync"

	"github.com/scatterstore/scatterstore/internal/backend"
	"github.com/scatterstore/scatterstore/internal/errors"
	"github.com/scatterstore/scatterstore/internal/promise"
)

// fakeBackend is an in-memory backend.Backend used to exercise the
// frontend dispatchers without a real DB/FS/S3 store underneath.
type fakeBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]backend.ObjectMetadata
	online  bool
	initErr error
	ready   *promise.Promise[bool]
}

var _ backend.Backend = (*fakeBackend)(nil)

func newFakeBackend(online bool) *fakeBackend {
	return &fakeBackend{
		objects: make(map[string][]byte),
		meta:    make(map[string]backend.ObjectMetadata),
		online:  online,
		ready:   promise.New[bool](),
	}
}

func (f *fakeBackend) IsReady() *promise.Promise[bool] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeBackend) Init(ctx context.Context) *promise.Promise[bool] {
	fresh := promise.New[bool]()
	f.mu.Lock()
	f.ready = fresh
	err := f.initErr
	f.mu.Unlock()
	if err != nil {
		fresh.Reject(err)
		return fresh
	}
	fresh.Resolve(true)
	return fresh
}

func (f *fakeBackend) Backup(ctx context.Context) *promise.Promise[bool] {
	return promise.Resolve(true)
}

func (f *fakeBackend) Close(ctx context.Context) *promise.Promise[bool] {
	f.mu.Lock()
	closed := errors.Frontend("closed", nil)
	if !f.ready.Reject(closed) {
		f.ready = promise.Reject[bool](closed)
	}
	f.mu.Unlock()
	return promise.Resolve(true)
}

func (f *fakeBackend) IsOnline(ctx context.Context) *promise.Promise[*int64] {
	if !f.online {
		return promise.Resolve[*int64](nil)
	}
	latency := int64(1)
	return promise.Resolve(&latency)
}

func (f *fakeBackend) GetObjectMetadata(ctx context.Context, id string) *promise.Promise[backend.ObjectMetadata] {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[id]
	if !ok {
		return promise.Reject[backend.ObjectMetadata](errors.Backend("not found", nil))
	}
	return promise.Resolve(m)
}

func (f *fakeBackend) ApproveObjectMetadata(ctx context.Context, id string, size int64) *promise.Promise[bool] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[id]; ok {
		return promise.Reject[bool](errors.Backend("already exists", nil))
	}
	return promise.Resolve(true)
}

func (f *fakeBackend) GetObject(ctx context.Context, id string) *promise.Promise[[]byte] {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[id]
	if !ok {
		return promise.Reject[[]byte](errors.Backend("not found", nil))
	}
	return promise.Resolve(data)
}

func (f *fakeBackend) SetObject(ctx context.Context, id string, data []byte) *promise.Promise[backend.ObjectMetadata] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[id]; ok {
		return promise.Reject[backend.ObjectMetadata](errors.Backend("already exists", nil))
	}
	f.objects[id] = data
	m := backend.ObjectMetadata{ID: id, Size: int64(len(data)), CreatedAt: 1}
	f.meta[id] = m
	return promise.Resolve(m)
}

func (f *fakeBackend) DelObject(ctx context.Context, id string) *promise.Promise[bool] {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, id)
	delete(f.meta, id)
	return promise.Resolve(true)
}
