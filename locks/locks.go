/*
   Copyright 2025 The DIRPX Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package locks provides the per-name lock tokens that serialize concurrent
// resolution of one name inside one loader.
//
// A Token is a mutex whose ownership travels in a context.Context instead of
// a goroutine identity. Acquire returns a derived context recording the
// token as held; passing that context down a call chain lets the chain
// re-acquire the same token without deadlocking. This is what keeps a
// non-parallel loader usable when resolution re-enters it through
// delegation side effects.
package locks

import (
	"context"
	"sync"
	"sync/atomic"
)

// Token is an opaque per-name monitor.
type Token struct {
	mu      sync.Mutex
	waiting atomic.Int64
}

type heldKey struct{}

// held is an immutable linked list of tokens held by one call chain.
type held struct {
	tok  *Token
	next *held
}

// Acquire blocks until the token is free and returns a context that records
// it as held together with the release function. If ctx already holds the
// token, Acquire returns ctx and a no-op release.
//
// Acquire is not cancellable: a caller that gives up must still let the
// holder finish.
func (t *Token) Acquire(ctx context.Context) (context.Context, func()) {
	if Holds(ctx, t) {
		return ctx, func() {}
	}
	t.waiting.Add(1)
	t.mu.Lock()
	t.waiting.Add(-1)

	prev, _ := ctx.Value(heldKey{}).(*held)
	ctx = context.WithValue(ctx, heldKey{}, &held{tok: t, next: prev})

	var once sync.Once
	return ctx, func() { once.Do(t.mu.Unlock) }
}

// TryAcquire acquires the token only if it is free (or already held by ctx).
func (t *Token) TryAcquire(ctx context.Context) (context.Context, func(), bool) {
	if Holds(ctx, t) {
		return ctx, func() {}, true
	}
	if !t.mu.TryLock() {
		return ctx, nil, false
	}
	prev, _ := ctx.Value(heldKey{}).(*held)
	ctx = context.WithValue(ctx, heldKey{}, &held{tok: t, next: prev})
	var once sync.Once
	return ctx, func() { once.Do(t.mu.Unlock) }, true
}

// Waiting returns the number of callers currently blocked in Acquire.
func (t *Token) Waiting() int64 {
	return t.waiting.Load()
}

// Holds reports whether the call chain of ctx holds t.
func Holds(ctx context.Context, t *Token) bool {
	for h, _ := ctx.Value(heldKey{}).(*held); h != nil; h = h.next {
		if h.tok == t {
			return true
		}
	}
	return false
}

// Detach returns a context that holds no tokens. Work handed to another
// goroutine must run under a detached context, or it would skip tokens the
// handing chain holds.
func Detach(ctx context.Context) context.Context {
	if ctx.Value(heldKey{}) == nil {
		return ctx
	}
	return context.WithValue(ctx, heldKey{}, (*held)(nil))
}

// Registry hands out lock tokens for one loader.
//
// A parallel-capable registry creates one token per name with an atomic
// insert-if-absent, so all racing callers observe the same token and
// distinct names never contend. Otherwise every name maps to one
// loader-wide token.
type Registry struct {
	parallel bool
	coarse   *Token
	tokens   sync.Map // map[string]*Token
	count    atomic.Int64
}

// NewRegistry returns a Registry; parallel selects per-name tokens.
func NewRegistry(parallel bool) *Registry {
	r := &Registry{parallel: parallel}
	if !parallel {
		r.coarse = &Token{}
	}
	return r
}

// Parallel reports whether the registry hands out per-name tokens.
func (r *Registry) Parallel() bool { return r.parallel }

// LockFor returns the token guarding name.
func (r *Registry) LockFor(name string) *Token {
	if !r.parallel {
		return r.coarse
	}
	if t, ok := r.tokens.Load(name); ok {
		return t.(*Token)
	}
	t, loaded := r.tokens.LoadOrStore(name, &Token{})
	if !loaded {
		r.count.Add(1)
	}
	return t.(*Token)
}

// Len returns the number of per-name tokens created so far (0 for a coarse
// registry).
func (r *Registry) Len() int {
	return int(r.count.Load())
}
