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

package registry

import (
	"reflect"
	"sync"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/config"
	uref "dirpx.dev/ldx/utils/reflect"
)

// New constructs a Registry that normalizes types according to cfg.
// Only MaxUnwrap is used here.
func New(cfg apis.Config) apis.Registry {
	if cfg.MaxUnwrap <= 0 {
		cfg.MaxUnwrap = config.DefaultMaxUnwrap
	}
	return &registry{cfg: cfg}
}

// registry is a simple Registry implementation backed by sync.Map.
type registry struct {
	// cfg is the configuration used for type normalization.
	cfg apis.Config
	// mu serializes registrations so the supertype check and the insert
	// happen atomically, and keeps the counter consistent.
	mu sync.Mutex
	// m maps a normalized loader type to its declared supertype (nil entry
	// value for the base type).
	m sync.Map // map[reflect.Type]apis.Entry
	// count tracks the number of registered entries.
	count int
}

// Register marks t as parallel-capable once super is registered.
// It is idempotent for the same type.
func (r *registry) Register(t, super reflect.Type) bool {
	// Validate inputs early.
	b, err := uref.Normalize(t, r.cfg)
	if err != nil {
		return false
	}
	var s reflect.Type
	if super != nil {
		if s, err = uref.Normalize(super, r.cfg); err != nil {
			return false
		}
	}

	// Fast read path: idempotency check without locking.
	if _, ok := r.m.Load(b); ok {
		return true
	}

	// Write path: guard with a mutex so the supertype check cannot race an
	// in-flight registration of the same type.
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.m.Load(b); ok {
		return true
	}
	if s != nil {
		if _, ok := r.m.Load(s); !ok {
			return false
		}
	}

	r.m.Store(b, apis.Entry{Type: b, Super: s})
	r.count++
	return true
}

// IsRegistered reports whether t is parallel-capable.
func (r *registry) IsRegistered(t reflect.Type) bool {
	if t == nil {
		return false
	}
	nt, err := uref.Normalize(t, r.cfg)
	if err != nil {
		return false
	}
	_, ok := r.m.Load(nt)
	return ok
}

// Entries returns a snapshot for diagnostics/docs (order is unspecified).
func (r *registry) Entries() []apis.Entry {
	entries := make([]apis.Entry, 0, r.Count())
	r.m.Range(func(_, value any) bool {
		entries = append(entries, value.(apis.Entry))
		return true
	})
	return entries
}

// Count returns the number of registered entries.
func (r *registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Reset clears all registered entries.
func (r *registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m.Clear()
	r.count = 0
}
