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

// Package assertions answers the desired assertion status of types.
//
// A Store starts unconfigured and forwards every query to the process-wide
// apis.SystemAssertions. The first Set or Clear call configures it: the
// directive maps are populated once from the loader's apis.DirectiveSource
// and from then on only change through explicit Set and Clear calls.
package assertions

import (
	"maps"
	"sync"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/utils/names"
)

// Store is the assertion directive store of one loader.
type Store struct {
	system apis.SystemAssertions
	source apis.DirectiveSource

	mu         sync.RWMutex
	configured bool
	def        bool
	packages   map[string]bool
	classes    map[string]bool
}

// New returns an unconfigured store. Either argument may be nil: a nil
// system answers false, a nil source populates nothing.
func New(system apis.SystemAssertions, source apis.DirectiveSource) *Store {
	return &Store{system: system, source: source}
}

// Configured reports whether the store answers from its own maps.
func (s *Store) Configured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configured
}

// DesiredStatus returns the assertion status for the binary name: an exact
// class entry, else the most specific enclosing package entry, else the
// store default.
func (s *Store) DesiredStatus(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.configured {
		if s.system == nil {
			return false
		}
		return s.system.DesiredAssertionStatus(name)
	}
	return status(s.classes, s.packages, s.def, name)
}

func status(classes, packages map[string]bool, def bool, name string) bool {
	if v, ok := classes[name]; ok {
		return v
	}
	for _, pkg := range names.Enclosing(name) {
		if v, ok := packages[pkg]; ok {
			return v
		}
	}
	return def
}

// SetDefault sets the status used when no entry matches.
func (s *Store) SetDefault(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configure()
	s.def = enabled
}

// SetPackage sets the status of a package and its subpackages; "" is the
// unnamed package.
func (s *Store) SetPackage(pkg string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configure()
	s.packages[pkg] = enabled
}

// SetClass sets the status of one type by binary name.
func (s *Store) SetClass(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configure()
	s.classes[name] = enabled
}

// Clear drops every entry and resets the default to false.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configure()
	s.def = false
	clear(s.packages)
	clear(s.classes)
}

// Directives returns a copy of the current directives.
func (s *Store) Directives() apis.Directives {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return apis.Directives{
		Default:  s.def,
		Packages: maps.Clone(s.packages),
		Classes:  maps.Clone(s.classes),
	}
}

// configure populates the maps from the source on first use. s.mu must be
// held for writing.
func (s *Store) configure() {
	if s.configured {
		return
	}
	s.configured = true
	s.packages = make(map[string]bool)
	s.classes = make(map[string]bool)
	if s.source == nil {
		return
	}
	d := s.source.Directives()
	s.def = d.Default
	maps.Copy(s.packages, d.Packages)
	maps.Copy(s.classes, d.Classes)
}

// System is an apis.SystemAssertions answering one fixed status.
type System bool

// DesiredAssertionStatus returns bool(s).
func (s System) DesiredAssertionStatus(string) bool { return bool(s) }
