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

package loader

import (
	"context"
	"io"
	"io/fs"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/certs"
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/hierarchy"
	"dirpx.dev/ldx/locks"
	"dirpx.dev/ldx/typedesc"
)

// BootstrapName is the loader name reported for bootstrap types.
const BootstrapName = "bootstrap"

// EmptyBootstrap is a bootstrap provider that knows no types.
var EmptyBootstrap apis.Bootstrap = emptyBootstrap{}

type emptyBootstrap struct{}

func (emptyBootstrap) ResolveBootstrap(_ context.Context, name string) (*typedesc.Descriptor, error) {
	return nil, errs.NotFound(name, BootstrapName)
}

// Bootstrap is a bootstrap provider backed by a find hook. It is the root
// every parentless loader delegates to and defines its types as
// hierarchy.Bootstrap. It always locks per name.
type Bootstrap struct {
	sp     *space
	finder apis.Finder
	locks  *locks.Registry
}

var (
	_ apis.Bootstrap        = (*Bootstrap)(nil)
	_ apis.Definer          = (*Bootstrap)(nil)
	_ apis.ResourceProvider = (*Bootstrap)(nil)
)

// NewBootstrap returns a bootstrap provider over f. system, if not nil,
// answers the desired assertion status of bootstrap types.
func NewBootstrap(f apis.Finder, system apis.SystemAssertions) *Bootstrap {
	var asserts func(string) bool
	if system != nil {
		asserts = system.DesiredAssertionStatus
	}
	b := &Bootstrap{
		finder: f,
		locks:  locks.NewRegistry(true),
	}
	b.sp = newSpace(hierarchy.Bootstrap, BootstrapName, b, asserts)
	return b
}

// ResolveBootstrap returns the bootstrap type for name, finding it on first
// request.
func (b *Bootstrap) ResolveBootstrap(ctx context.Context, name string) (*typedesc.Descriptor, error) {
	ctx, release := b.locks.LockFor(name).Acquire(ctx)
	defer release()

	if d, ok := b.sp.findLoaded(name); ok {
		return d, nil
	}
	if b.finder == nil {
		return nil, errs.NotFound(name, BootstrapName)
	}
	d, err := b.finder.Find(ctx, b, name)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errs.NotFound(name, BootstrapName)
	}
	return b.sp.record(name, d), nil
}

// Define records a bootstrap type.
func (b *Bootstrap) Define(ctx context.Context, name string, data []byte, opts ...typedesc.Option) (*typedesc.Descriptor, error) {
	return b.sp.define(ctx, name, data, opts)
}

// FindLoaded returns the bootstrap type already resolved for name.
func (b *Bootstrap) FindLoaded(name string) (*typedesc.Descriptor, bool) {
	return b.sp.findLoaded(name)
}

// Types returns the bootstrap types defined so far.
func (b *Bootstrap) Types() []*typedesc.Descriptor {
	return b.sp.types()
}

// DefinePackage defines a bootstrap package.
func (b *Bootstrap) DefinePackage(name string, info certs.Info) (*certs.Package, error) {
	return b.sp.packages.Define(name, info)
}

// Package returns a bootstrap package.
func (b *Bootstrap) Package(name string) (*certs.Package, bool) {
	return b.sp.packages.Get(name)
}

// Packages returns the bootstrap packages.
func (b *Bootstrap) Packages() []*certs.Package {
	return b.sp.packages.All()
}

// Open returns a bootstrap resource when the find hook provides resources.
func (b *Bootstrap) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if rp, ok := b.finder.(apis.ResourceProvider); ok {
		return rp.Open(ctx, name)
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
