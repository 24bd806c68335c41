// Package frontend implements the dispatcher that routes blob reads and
// writes across a configured set of backend sockets. Stateless fans writes
// out to a randomly ordered backend and reads by parallel fan-out; Stateful
// layers a persistent id index and bearer enforcement on top.
package frontend

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/scatterstore/scatterstore/internal/backend"
	"github.com/scatterstore/scatterstore/internal/errors"
	"github.com/scatterstore/scatterstore/internal/metrics"
	"github.com/scatterstore/scatterstore/internal/promise"
)

// Object is a fully materialized blob: its metadata plus the decoded bytes.
type Object struct {
	ID        string
	Size      int64
	CreatedAt int64
	Data      []byte
}

// Payload is a write request as it arrives at the frontend: an id and its
// data still base64-encoded, decoded lazily only once a backend has agreed
// to accept the write.
type Payload struct {
	ID   string
	Data string
}

// Stateless is the C8 frontend dispatcher: a sequence of backend sockets,
// no identity of its own beyond that list.
type Stateless struct {
	mu      sync.RWMutex
	sockets []backend.Backend
	ready   *promise.Promise[bool]
}

// NewStateless constructs a dispatcher over the given backend sockets. The
// dispatcher is not ready for use until Init is called.
func NewStateless(sockets []backend.Backend) *Stateless {
	return &Stateless{sockets: sockets, ready: promise.New[bool]()}
}

func (s *Stateless) IsReady() *promise.Promise[bool] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Init calls every backend's Init and tolerates individual failures: a
// failing backend is logged and simply stays excluded from later selection
// (IsOnline will keep reporting it offline); IsReady resolves once every
// init attempt has settled, success or not.
func (s *Stateless) Init(ctx context.Context) *promise.Promise[bool] {
	fresh := promise.New[bool]()
	s.mu.Lock()
	s.ready = fresh
	sockets := append([]backend.Backend(nil), s.sockets...)
	s.mu.Unlock()

	tolerant := make([]*promise.Promise[bool], len(sockets))
	for i, sock := range sockets {
		tolerant[i] = promise.Catch(sock.Init(ctx), func(err error) (bool, error) {
			slog.Warn("backend failed to initialize", "index", i, "error", err)
			return false, nil
		})
	}

	promise.Then(promise.All(tolerant), func([]bool) (bool, error) {
		fresh.Resolve(true)
		return true, nil
	})
	return fresh
}

// Backup fans out to every backend and resolves once all complete.
func (s *Stateless) Backup(ctx context.Context) *promise.Promise[bool] {
	s.mu.RLock()
	sockets := append([]backend.Backend(nil), s.sockets...)
	s.mu.RUnlock()

	backups := make([]*promise.Promise[bool], len(sockets))
	for i, sock := range sockets {
		backups[i] = sock.Backup(ctx)
	}
	return promise.Then(promise.All(backups), func([]bool) (bool, error) { return true, nil })
}

// Close rejects IsReady, backs up, then closes every backend in parallel.
func (s *Stateless) Close(ctx context.Context) *promise.Promise[bool] {
	s.mu.Lock()
	closed := errors.Frontend("frontend closed", nil)
	if !s.ready.Reject(closed) {
		s.ready = promise.Reject[bool](closed)
	}
	s.mu.Unlock()

	return promise.ThenCompose(s.Backup(ctx), func(bool) (*promise.Promise[bool], error) {
		s.mu.RLock()
		sockets := append([]backend.Backend(nil), s.sockets...)
		s.mu.RUnlock()

		closes := make([]*promise.Promise[bool], len(sockets))
		for i, sock := range sockets {
			closes[i] = sock.Close(ctx)
		}
		return promise.Then(promise.All(closes), func([]bool) (bool, error) { return true, nil }), nil
	})
}

// Read resolves the first non-absent object across the given backend
// indices, in input order. A nil sockets slice means all backends. A
// per-backend failure (network error, absent id) is absorbed into "absent"
// rather than failing the whole read; if every attempt is absent, Read
// fulfills nil without an error.
func (s *Stateless) Read(ctx context.Context, id string, sockets []int) *promise.Promise[*Object] {
	s.mu.RLock()
	n := len(s.sockets)
	s.mu.RUnlock()
	if sockets == nil {
		sockets = allIndices(n)
	}

	attempts := make([]*promise.Promise[*Object], len(sockets))
	for i, idx := range sockets {
		sock := s.socketAt(idx)
		meta := sock.GetObjectMetadata(ctx, id)
		fetched := promise.ThenCompose(meta, func(m backend.ObjectMetadata) (*promise.Promise[*Object], error) {
			return promise.Then(sock.GetObject(ctx, id), func(data []byte) (*Object, error) {
				return &Object{ID: id, Size: m.Size, CreatedAt: m.CreatedAt, Data: data}, nil
			}), nil
		})
		attempts[i] = promise.Catch(fetched, func(error) (*Object, error) {
			return nil, nil
		})
	}

	return promise.Then(promise.All(attempts), func(results []*Object) (*Object, error) {
		for _, r := range results {
			if r != nil {
				return r, nil
			}
		}
		return nil, nil
	})
}

// Write walks sockets (default: a random shuffle of all backend indices)
// looking for the first online backend, and commits the blob there. A
// malformed base64 payload or a same-id collision at the chosen backend
// fails the whole write rather than trying another backend, since an id
// collision means the id is already globally claimed. Failure is realized
// as a rejected promise carrying the kind the HTTP adapter maps to a status
// code, rather than a bare sentinel value, since Go's Promise[T] cannot
// carry both a value and a side-channel reason.
func (s *Stateless) Write(ctx context.Context, payload Payload, sockets []int) *promise.Promise[int] {
	s.mu.RLock()
	n := len(s.sockets)
	s.mu.RUnlock()
	if sockets == nil {
		sockets = shuffledIndices(n)
	}

	result := promise.New[int]()
	go func() {
		for _, idx := range sockets {
			sock := s.socketAt(idx)
			online, err := sock.IsOnline(ctx).Wait(ctx)
			if err != nil || online == nil {
				continue
			}
			label := fmt.Sprintf("backend-%d", idx)
			metrics.BackendLivenessMS.WithLabelValues(label).Observe(float64(*online))

			data, err := base64.StdEncoding.DecodeString(payload.Data)
			if err != nil {
				result.Reject(errors.Client("malformed base64 payload", err))
				return
			}

			approved, err := sock.ApproveObjectMetadata(ctx, payload.ID, int64(len(data))).Wait(ctx)
			if err != nil || !approved {
				slog.Warn("write rejected by backend", "id", payload.ID, "index", idx, "error", err)
				result.Reject(errors.Client(fmt.Sprintf("id %q already exists", payload.ID), err))
				return
			}

			if _, err := sock.SetObject(ctx, payload.ID, data).Wait(ctx); err != nil {
				result.Reject(errors.Backend(fmt.Sprintf("storing object %q", payload.ID), err))
				return
			}

			metrics.BackendSelectedTotal.WithLabelValues(label).Inc()
			result.Resolve(idx)
			return
		}

		slog.Warn("write found no online backend", "id", payload.ID)
		result.Reject(errors.Frontend("no backend online", nil))
	}()
	return result
}

func (s *Stateless) socketAt(idx int) backend.Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sockets[idx]
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func shuffledIndices(n int) []int {
	idx := allIndices(n)
	rand.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx
}
