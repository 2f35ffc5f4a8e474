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

// Package typedesc holds the resolved type descriptor and its linkage state.
//
// A Descriptor is created by exactly one loader's Define call. Pointer
// identity is type identity: two loaders defining the same name produce two
// distinct, non-interchangeable descriptors.
package typedesc

import (
	"context"
	"fmt"
	"sync"

	"github.com/opencontainers/go-digest"

	"dirpx.dev/ldx/certs"
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/hierarchy"
	"dirpx.dev/ldx/locks"
	"dirpx.dev/ldx/utils/names"
)

// State is the linkage state of a Descriptor.
type State int

const (
	// Unlinked descriptors have been defined but not linked.
	Unlinked State = iota
	// Linking descriptors are being linked by some call chain.
	Linking
	// Linked descriptors are ready for use.
	Linked
	// Failed descriptors failed linkage; the failure is permanent.
	Failed
)

// String returns a short label for s.
func (s State) String() string {
	switch s {
	case Unlinked:
		return "unlinked"
	case Linking:
		return "linking"
	case Linked:
		return "linked"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Initializer is a one-time initializer run while linking.
type Initializer func(ctx context.Context) error

// Descriptor is a resolved type.
type Descriptor struct {
	name       string
	pkg        string
	loader     hierarchy.ID
	loaderName string
	size       int
	dgst       digest.Digest
	signers    certs.Set
	codeSource string
	init       Initializer
	assertions func(string) bool
	// owner is the defining loader. Holding it keeps the loader, and the
	// native libraries it attached, alive while the type is reachable.
	owner any

	tok      locks.Token
	mu       sync.Mutex
	state    State
	err      error
	asserted bool
}

// Option configures a Descriptor at definition time.
type Option func(*Descriptor)

// WithSigners sets the signer certificates of the type.
func WithSigners(s certs.Set) Option {
	return func(d *Descriptor) { d.signers = s }
}

// WithCodeSource sets the location the type data came from.
func WithCodeSource(src string) Option {
	return func(d *Descriptor) { d.codeSource = src }
}

// WithInitializer sets the one-time initializer run during linkage.
func WithInitializer(fn Initializer) Option {
	return func(d *Descriptor) { d.init = fn }
}

// WithOwner records the defining loader object.
func WithOwner(owner any) Option {
	return func(d *Descriptor) { d.owner = owner }
}

// WithAssertionSource sets the query used for the desired assertion status
// until the type links.
func WithAssertionSource(fn func(name string) bool) Option {
	return func(d *Descriptor) { d.assertions = fn }
}

// New returns an unlinked Descriptor for name defined by loader.
func New(name string, loader hierarchy.ID, loaderName string, data []byte, opts ...Option) *Descriptor {
	d := &Descriptor{
		name:       name,
		pkg:        names.PackageOf(name),
		loader:     loader,
		loaderName: loaderName,
		size:       len(data),
		dgst:       digest.FromBytes(data),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the binary name.
func (d *Descriptor) Name() string { return d.name }

// Package returns the package name; "" is the unnamed package.
func (d *Descriptor) Package() string { return d.pkg }

// Loader returns the ID of the defining loader.
func (d *Descriptor) Loader() hierarchy.ID { return d.loader }

// Owner returns the defining loader object, or nil.
func (d *Descriptor) Owner() any { return d.owner }

// LoaderName returns the name of the defining loader.
func (d *Descriptor) LoaderName() string { return d.loaderName }

// Digest returns the digest of the type data.
func (d *Descriptor) Digest() digest.Digest { return d.dgst }

// Size returns the length of the type data.
func (d *Descriptor) Size() int { return d.size }

// Signers returns the signer certificates; nil means unsigned.
func (d *Descriptor) Signers() certs.Set { return d.signers }

// CodeSource returns the location the type data came from.
func (d *Descriptor) CodeSource() string { return d.codeSource }

// State returns the current linkage state.
func (d *Descriptor) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Linked reports whether the type completed linkage.
func (d *Descriptor) Linked() bool { return d.State() == Linked }

// AssertionsEnabled returns the desired assertion status. Once the type has
// linked, the value is fixed.
func (d *Descriptor) AssertionsEnabled() bool {
	d.mu.Lock()
	if d.state == Linked {
		v := d.asserted
		d.mu.Unlock()
		return v
	}
	d.mu.Unlock()
	if d.assertions == nil {
		return false
	}
	return d.assertions(d.name)
}

// Link links the type exactly once. Later calls return nil, or the original
// InitializationError if linkage failed. A call chain that re-enters Link on
// a type it is already linking returns nil immediately.
func (d *Descriptor) Link(ctx context.Context) error {
	ctx, release := d.tok.Acquire(ctx)
	defer release()

	d.mu.Lock()
	switch d.state {
	case Linked, Linking:
		d.mu.Unlock()
		return nil
	case Failed:
		err := d.err
		d.mu.Unlock()
		return err
	}
	d.state = Linking
	d.mu.Unlock()

	asserted := false
	if d.assertions != nil {
		asserted = d.assertions(d.name)
	}

	var err error
	if d.init != nil {
		if ierr := runInit(ctx, d.init); ierr != nil {
			err = &errs.InitializationError{Name: d.name, Err: ierr}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state, d.err = Failed, err
		return err
	}
	d.state, d.asserted = Linked, asserted
	return nil
}

// runInit converts a panicking initializer into an error.
func runInit(ctx context.Context, fn Initializer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// String returns "name@loader".
func (d *Descriptor) String() string {
	return d.name + "@" + d.loaderName
}
