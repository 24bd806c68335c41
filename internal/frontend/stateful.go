package frontend

import (
	"context"
	"fmt"
	"sync"

	"github.com/scatterstore/scatterstore/internal/backend"
	"github.com/scatterstore/scatterstore/internal/dbbackend"
	"github.com/scatterstore/scatterstore/internal/errors"
	"github.com/scatterstore/scatterstore/internal/promise"
)

// Stateful is the C9 frontend dispatcher: Stateless plus a persistent
// id -> (backend alias, bearer) index and bearer-based read authorization.
type Stateful struct {
	*Stateless

	indexCfg dbbackend.IndexConfig
	aliases  []string

	mu    sync.RWMutex
	index *dbbackend.IndexStore
}

// NewStateful constructs a stateful dispatcher. aliases must have exactly
// one entry per backend socket, in the same order; the i-th alias names the
// i-th socket, and that mapping is the stable identity recorded in the
// index.
func NewStateful(sockets []backend.Backend, aliases []string, indexCfg dbbackend.IndexConfig) (*Stateful, error) {
	if len(aliases) != len(sockets) {
		return nil, errors.Frontend(fmt.Sprintf("alias list length %d does not match backend socket count %d", len(aliases), len(sockets)), nil)
	}
	return &Stateful{Stateless: NewStateless(sockets), indexCfg: indexCfg, aliases: aliases}, nil
}

// Init opens (creating if absent) the index store and table, then
// delegates to the embedded Stateless dispatcher.
func (f *Stateful) Init(ctx context.Context) *promise.Promise[bool] {
	store, err := dbbackend.OpenIndexStore(ctx, f.indexCfg)
	if err != nil {
		fresh := promise.New[bool]()
		fresh.Reject(errors.Frontend("opening index store", err))
		return fresh
	}
	f.mu.Lock()
	f.index = store
	f.mu.Unlock()

	return f.Stateless.Init(ctx)
}

// Close releases the index store handle in addition to the Stateless
// close sequence (reject IsReady, backup, close all backends).
func (f *Stateful) Close(ctx context.Context) *promise.Promise[bool] {
	f.mu.Lock()
	if f.index != nil {
		f.index.Close()
	}
	f.mu.Unlock()
	return f.Stateless.Close(ctx)
}

// Write normalizes bearer (the absent value means public), checks the
// index for an existing id, and otherwise delegates to the embedded
// Stateless dispatcher to pick a backend. On success it inserts the index
// entry naming the alias of the socket that actually accepted the blob. A
// failure to insert the index entry after the blob was already stored is
// surfaced as a FrontendError rather than silently dropped.
func (f *Stateful) Write(ctx context.Context, payload Payload, bearer string) *promise.Promise[int] {
	result := promise.New[int]()
	go func() {
		index, ok := f.indexStore()
		if !ok {
			result.Reject(errors.Frontend("stateful frontend not initialized", nil))
			return
		}

		if _, exists, err := index.Lookup(ctx, payload.ID); err != nil {
			result.Reject(errors.Backend(fmt.Sprintf("looking up index entry %q", payload.ID), err))
			return
		} else if exists {
			result.Reject(errors.Client(fmt.Sprintf("id %q already exists", payload.ID), nil))
			return
		}

		idx, err := f.Stateless.Write(ctx, payload, nil).Wait(ctx)
		if err != nil {
			result.Reject(err)
			return
		}

		entry := dbbackend.IndexEntry{ID: payload.ID, Backend: f.aliases[idx], Bearer: bearer}
		if err := index.Insert(ctx, entry); err != nil {
			result.Reject(errors.Frontend(fmt.Sprintf("blob %q stored at backend %q but index insert failed", payload.ID, entry.Backend), err))
			return
		}

		result.Resolve(idx)
	}()
	return result
}

// Read normalizes bearer, looks up id in the index, and on a bearer match
// reads from the single backend the index names. An absent id fulfills nil
// without an error; a bearer mismatch against a non-public object rejects
// with an UnauthorizedError.
func (f *Stateful) Read(ctx context.Context, id string, bearer string) *promise.Promise[*Object] {
	result := promise.New[*Object]()
	go func() {
		index, ok := f.indexStore()
		if !ok {
			result.Reject(errors.Frontend("stateful frontend not initialized", nil))
			return
		}

		entry, exists, err := index.Lookup(ctx, id)
		if err != nil {
			result.Reject(errors.Backend(fmt.Sprintf("looking up index entry %q", id), err))
			return
		}
		if !exists {
			result.Resolve(nil)
			return
		}
		if entry.Bearer != "" && entry.Bearer != bearer {
			result.Reject(errors.Unauthorized("bearer does not match stored owner"))
			return
		}

		idx, ok := f.socketIndexForAlias(entry.Backend)
		if !ok {
			result.Reject(errors.Frontend(fmt.Sprintf("index names unknown backend alias %q", entry.Backend), nil))
			return
		}

		obj, err := f.Stateless.Read(ctx, id, []int{idx}).Wait(ctx)
		if err != nil {
			result.Reject(err)
			return
		}
		result.Resolve(obj)
	}()
	return result
}

func (f *Stateful) indexStore() (*dbbackend.IndexStore, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.index, f.index != nil
}

func (f *Stateful) socketIndexForAlias(alias string) (int, bool) {
	for i, a := range f.aliases {
		if a == alias {
			return i, true
		}
	}
	return -1, false
}
