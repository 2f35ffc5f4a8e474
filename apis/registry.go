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

package apis

import "reflect"

// Registry records which loader implementation types are parallel-capable.
//
// Registration is per type, not per instance, and requires the declared
// supertype to be registered already. The base loader type (nil supertype)
// is always considered registered.
type Registry interface {
	// Register marks t as parallel-capable. super is t's declared supertype;
	// nil means the base loader type. It returns false, and registers
	// nothing, when super is not registered. Re-registering is a no-op
	// returning true.
	Register(t, super reflect.Type) bool
	// IsRegistered reports whether t is parallel-capable.
	IsRegistered(t reflect.Type) bool
	// Entries returns a snapshot for diagnostics/docs (order is unspecified).
	Entries() []Entry
	// Count returns the number of registered entries.
	Count() int
	// Reset clears all registered entries.
	Reset()
}

// Entry is a single registration in a Registry snapshot.
type Entry struct {
	// Type is the registered (normalized) loader implementation type.
	Type reflect.Type
	// Super is the declared supertype; nil for the base loader type.
	Super reflect.Type
}
