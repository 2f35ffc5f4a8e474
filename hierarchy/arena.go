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

// Package hierarchy stores loader records in an arena indexed by stable IDs.
//
// Each record holds the ID of its parent, never a pointer, so the arena has
// no ownership cycles: a parent never references its children and a child's
// parent is fixed when the record is added. Payloads are held through weak
// pointers; the arena never keeps a loader alive on its own.
package hierarchy

import (
	"errors"
	"sync"
	"weak"
)

// ID identifies a loader record. Zero is reserved for the bootstrap
// provider, which has no record of its own.
type ID uint64

// Bootstrap is the ID of the parentless root every chain ends in.
const Bootstrap ID = 0

// ErrUnknownParent is returned when adding a record under an unknown parent.
var ErrUnknownParent = errors.New("hierarchy: unknown parent")

type record[T any] struct {
	parent ID
	name   string
	ref    weak.Pointer[T]
}

// Arena is a concurrency-safe table of loader records.
type Arena[T any] struct {
	mu      sync.RWMutex
	next    ID
	records map[ID]record[T]
}

// NewArena returns an empty Arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{next: 1, records: make(map[ID]record[T])}
}

// Add records v under parent and returns its new ID. parent may be
// Bootstrap.
func (a *Arena[T]) Add(parent ID, name string, v *T) (ID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if parent != Bootstrap {
		if _, ok := a.records[parent]; !ok {
			return 0, ErrUnknownParent
		}
	}
	id := a.next
	a.next++
	a.records[id] = record[T]{parent: parent, name: name, ref: weak.Make(v)}
	return id, nil
}

// Get returns the payload of id, or nil if the record is unknown or its
// payload has been collected.
func (a *Arena[T]) Get(id ID) *T {
	a.mu.RLock()
	rec, ok := a.records[id]
	a.mu.RUnlock()
	if !ok {
		return nil
	}
	return rec.ref.Value()
}

// Parent returns the parent of id. ok is false for unknown ids.
func (a *Arena[T]) Parent(id ID) (ID, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.records[id]
	return rec.parent, ok
}

// Name returns the name recorded for id; Bootstrap is named "bootstrap".
func (a *Arena[T]) Name(id ID) string {
	if id == Bootstrap {
		return "bootstrap"
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.records[id].name
}

// Ancestors returns the chain of parents of id, nearest first, ending with
// Bootstrap.
func (a *Arena[T]) Ancestors(id ID) []ID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []ID
	for id != Bootstrap {
		rec, ok := a.records[id]
		if !ok {
			break
		}
		out = append(out, rec.parent)
		id = rec.parent
	}
	return out
}

// IsAncestor reports whether anc is a proper ancestor of id. Bootstrap is
// an ancestor of every known record.
func (a *Arena[T]) IsAncestor(anc, id ID) bool {
	for _, p := range a.Ancestors(id) {
		if p == anc {
			return true
		}
	}
	return false
}

// Remove drops the record of id. Children keep their parent ID.
func (a *Arena[T]) Remove(id ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.records, id)
}

// Len returns the number of records.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// IDs returns every live record ID in creation order.
func (a *Arena[T]) IDs() []ID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]ID, 0, len(a.records))
	for id := ID(1); id < a.next; id++ {
		if _, ok := a.records[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
