// Package promise implements the single-assignment, chainable value cell
// used as the concurrency primitive throughout scatterstore. Every backend
// and frontend operation returns a *Promise[T] rather than blocking the
// caller directly; callers that need a synchronous result call Wait.
//
// Go has no native promise type and no generic methods, so the runtime is
// realized as an explicit state machine per cell guarded by a mutex, with
// a child-notification slice rather than a task-per-chain model. State
// transitions and child-list mutation happen under the same lock, which
// gives atomicity of the transition and FIFO notification order for free.
package promise

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type state int

const (
	statePending state = iota
	stateFulfilled
	stateRejected
)

// Promise is a single-assignment cell that eventually holds either a value
// of type T or a rejection reason. It transitions out of pending at most
// once; later calls to Resolve or Reject are no-ops.
type Promise[T any] struct {
	mu        sync.Mutex
	state     state
	value     T
	reason    error
	reactions []func(T, error)
	done      chan struct{}
}

// New creates a pending promise with no attached reactions.
func New[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Resolve returns a promise already fulfilled with v.
func Resolve[T any](v T) *Promise[T] {
	p := New[T]()
	p.Resolve(v)
	return p
}

// Reject returns a promise already rejected with reason.
func Reject[T any](reason error) *Promise[T] {
	p := New[T]()
	p.Reject(reason)
	return p
}

// Resolve transitions a pending cell to fulfilled and notifies every
// attached reaction, in attachment order. Calling Resolve on an already
// settled cell has no effect and reports false.
func (p *Promise[T]) Resolve(v T) bool {
	p.mu.Lock()
	if p.state != statePending {
		p.mu.Unlock()
		return false
	}
	p.state = stateFulfilled
	p.value = v
	reactions := p.reactions
	p.reactions = nil
	close(p.done)
	p.mu.Unlock()

	for _, r := range reactions {
		r(v, nil)
	}
	return true
}

// Reject transitions a pending cell to rejected and notifies every
// attached reaction, in attachment order. A rejected cell with no
// reactions attached holds its reason silently; nothing observes it until
// some descendant is awaited or a reaction is attached later.
func (p *Promise[T]) Reject(reason error) bool {
	p.mu.Lock()
	if p.state != statePending {
		p.mu.Unlock()
		return false
	}
	p.state = stateRejected
	p.reason = reason
	reactions := p.reactions
	p.reactions = nil
	close(p.done)
	p.mu.Unlock()

	var zero T
	for _, r := range reactions {
		r(zero, reason)
	}
	return true
}

// attach registers reaction to run once p settles. If p is already
// settled, reaction runs synchronously (not holding p's lock) before
// attach returns.
func (p *Promise[T]) attach(reaction func(T, error)) {
	p.mu.Lock()
	switch p.state {
	case statePending:
		p.reactions = append(p.reactions, reaction)
		p.mu.Unlock()
	case stateFulfilled:
		v := p.value
		p.mu.Unlock()
		reaction(v, nil)
	case stateRejected:
		reason := p.reason
		p.mu.Unlock()
		reaction(*new(T), reason)
	}
}

// Wait blocks until p settles or ctx is done, whichever comes first.
// It returns the fulfillment value, or the zero value and the rejection
// reason (or ctx.Err()) if p rejected or ctx expired first.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		v, reason, st := p.value, p.reason, p.state
		p.mu.Unlock()
		if st == stateRejected {
			var zero T
			return zero, reason
		}
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func runGuarded[U any](child *Promise[U], f func() (U, error)) {
	defer func() {
		if r := recover(); r != nil {
			child.Reject(fmt.Errorf("promise: recovered panic: %v", r))
		}
	}()
	u, err := f()
	if err != nil {
		child.Reject(err)
		return
	}
	child.Resolve(u)
}

// Then attaches onResolve as the fulfillment handler and returns a new
// promise settled with its outcome. A rejection of p propagates to the
// child untouched (there is no onReject handler in this form); an error
// raised by onResolve is captured and rejects the child rather than
// unwinding the caller's stack.
func Then[T, U any](p *Promise[T], onResolve func(T) (U, error)) *Promise[U] {
	child := New[U]()
	p.attach(func(v T, err error) {
		if err != nil {
			child.Reject(err)
			return
		}
		runGuarded(child, func() (U, error) { return onResolve(v) })
	})
	return child
}

// ThenCatch attaches both a fulfillment and a rejection handler. If p
// rejects and onReject returns a value without error, the child
// transitions to fulfilled with that value (recover semantics); if
// onReject itself errors, the child rejects with that error instead.
func ThenCatch[T, U any](p *Promise[T], onResolve func(T) (U, error), onReject func(error) (U, error)) *Promise[U] {
	child := New[U]()
	p.attach(func(v T, err error) {
		if err != nil {
			if onReject == nil {
				child.Reject(err)
				return
			}
			runGuarded(child, func() (U, error) { return onReject(err) })
			return
		}
		runGuarded(child, func() (U, error) { return onResolve(v) })
	})
	return child
}

// Catch attaches onReject as the rejection handler, leaving fulfillment
// values of p untouched. Equivalent to then(nil, onReject) in spec terms.
func Catch[T any](p *Promise[T], onReject func(error) (T, error)) *Promise[T] {
	child := New[T]()
	p.attach(func(v T, err error) {
		if err == nil {
			child.Resolve(v)
			return
		}
		if onReject == nil {
			child.Reject(err)
			return
		}
		runGuarded(child, func() (T, error) { return onReject(err) })
	})
	return child
}

// ThenCompose is like Then, except onResolve produces another promise
// rather than a plain value; the child adopts that inner promise's
// eventual outcome (flatten-once adoption). Because the inner promise's
// own chain has already collapsed to a plain U by the time it settles,
// this single flatten is sufficient even for inner promises that were
// themselves built by composing further chains.
func ThenCompose[T, U any](p *Promise[T], onResolve func(T) (*Promise[U], error)) *Promise[U] {
	child := New[U]()
	p.attach(func(v T, err error) {
		if err != nil {
			child.Reject(err)
			return
		}
		defer func() {
			if r := recover(); r != nil {
				child.Reject(fmt.Errorf("promise: recovered panic: %v", r))
			}
		}()
		inner, err2 := onResolve(v)
		if err2 != nil {
			child.Reject(err2)
			return
		}
		if inner == nil {
			child.Reject(errors.New("promise: onResolve returned a nil promise"))
			return
		}
		inner.attach(func(iv U, ierr error) {
			if ierr != nil {
				child.Reject(ierr)
			} else {
				child.Resolve(iv)
			}
		})
	})
	return child
}

// All waits for every promise in ps to settle and resolves to their
// values in input order, regardless of completion order. It rejects with
// the reason of the first dependent to reject; ties are broken by
// whichever rejection's reaction runs first. All([]) resolves
// synchronously to an empty slice.
func All[T any](ps []*Promise[T]) *Promise[[]T] {
	if len(ps) == 0 {
		return Resolve([]T{})
	}

	result := New[[]T]()
	values := make([]T, len(ps))
	var mu sync.Mutex
	remaining := len(ps)

	for i, p := range ps {
		idx := i
		p.attach(func(v T, err error) {
			if err != nil {
				result.Reject(err)
				return
			}
			mu.Lock()
			values[idx] = v
			remaining--
			settled := remaining == 0
			mu.Unlock()
			if settled {
				result.Resolve(values)
			}
		})
	}
	return result
}

// Race settles with the outcome of whichever promise in ps settles
// first, fulfillment or rejection alike. Race([]) never settles.
func Race[T any](ps []*Promise[T]) *Promise[T] {
	result := New[T]()
	for _, p := range ps {
		p.attach(func(v T, err error) {
			if err != nil {
				result.Reject(err)
			} else {
				result.Resolve(v)
			}
		})
	}
	return result
}

// Timeout returns a promise that fulfills with resolveValue after
// resolveIn, or rejects with rejectReason after rejectIn, whichever timer
// is shorter. A nil duration disables that timer; if both are nil the
// returned promise never self-settles.
func Timeout[T any](resolveIn, rejectIn *time.Duration, resolveValue T, rejectReason error) *Promise[T] {
	result := New[T]()
	if resolveIn == nil && rejectIn == nil {
		return result
	}

	var resolveTimer, rejectTimer *time.Timer
	if resolveIn != nil {
		resolveTimer = time.AfterFunc(*resolveIn, func() { result.Resolve(resolveValue) })
	}
	if rejectIn != nil {
		rejectTimer = time.AfterFunc(*rejectIn, func() { result.Reject(rejectReason) })
	}

	go func() {
		<-result.done
		if resolveTimer != nil {
			resolveTimer.Stop()
		}
		if rejectTimer != nil {
			rejectTimer.Stop()
		}
	}()

	return result
}
