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

package certs

import (
	"fmt"
	"sort"
	"sync"

	"dirpx.dev/ldx/errs"
)

// Info describes a package at definition time.
type Info struct {
	SpecTitle   string `json:"specTitle,omitempty"`
	SpecVersion string `json:"specVersion,omitempty"`
	SpecVendor  string `json:"specVendor,omitempty"`
	ImplTitle   string `json:"implTitle,omitempty"`
	ImplVersion string `json:"implVersion,omitempty"`
	ImplVendor  string `json:"implVendor,omitempty"`
	// SealBase, when set, seals the package to this code source.
	SealBase string `json:"sealBase,omitempty"`
}

// Package is a defined package.
type Package struct {
	Name string
	Info
}

// IsSealed reports whether the package is sealed.
func (p *Package) IsSealed() bool { return p.SealBase != "" }

// SealedFor reports whether the package is sealed with respect to codeSource.
func (p *Package) SealedFor(codeSource string) bool {
	return p.IsSealed() && p.SealBase == codeSource
}

// Packages holds the packages defined by one loader.
type Packages struct {
	mu sync.RWMutex
	m  map[string]*Package
}

// NewPackages returns an empty package table.
func NewPackages() *Packages {
	return &Packages{m: make(map[string]*Package)}
}

// Define records a package. Defining the same name twice fails with
// errs.ErrPackageExists.
func (p *Packages) Define(name string, info Info) (*Package, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.m[name]; ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrPackageExists, name)
	}
	pkg := &Package{Name: name, Info: info}
	p.m[name] = pkg
	return pkg, nil
}

// Get returns the package called name, if defined here.
func (p *Packages) Get(name string) (*Package, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pkg, ok := p.m[name]
	return pkg, ok
}

// All returns the defined packages sorted by name.
func (p *Packages) All() []*Package {
	p.mu.RLock()
	out := make([]*Package, 0, len(p.m))
	for _, pkg := range p.m {
		out = append(out, pkg)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CheckSealing fails with errs.SealingError when pkg is sealed and
// codeSource differs from its seal base. A nil pkg always passes.
func CheckSealing(pkg *Package, typeName, codeSource string) error {
	if pkg == nil || !pkg.IsSealed() {
		return nil
	}
	if !pkg.SealedFor(codeSource) {
		return &errs.SealingError{Package: pkg.Name, Type: typeName}
	}
	return nil
}
