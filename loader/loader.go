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
	"log/slog"
	"reflect"
	"runtime"
	"sync/atomic"

	slogcontext "github.com/veqryn/slog-context"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/assertions"
	"dirpx.dev/ldx/certs"
	"dirpx.dev/ldx/hierarchy"
	"dirpx.dev/ldx/locks"
	"dirpx.dev/ldx/natives"
	"dirpx.dev/ldx/typedesc"
)

// Loader is one node of a loader hierarchy.
type Loader struct {
	proc     *Process
	parent   *Loader
	finder   apis.Finder
	parallel bool
	locks    *locks.Registry
	sp       *space
	libs     *natives.Table
	asserts  *assertions.Store
	res      apis.Resolver

	closed atomic.Bool
}

var (
	_ apis.Node             = (*Loader)(nil)
	_ apis.Delegate         = (*Loader)(nil)
	_ apis.ResourceProvider = (*Loader)(nil)
)

// LoaderOption configures a Loader.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	directives apis.DirectiveSource
}

// WithDirectives overrides the process directive source for one loader.
func WithDirectives(s apis.DirectiveSource) LoaderOption {
	return func(o *loaderOptions) { o.directives = s }
}

// NewLoader creates a loader called name under parent (nil for a
// parentless loader delegating to the bootstrap provider). f is its find
// hook. The loader is parallel-capable when the implementation type of f
// is registered as such.
func (p *Process) NewLoader(name string, parent *Loader, f apis.Finder, opts ...LoaderOption) (*Loader, error) {
	if name == "" {
		return nil, ErrEmptyLoaderName
	}
	if parent != nil && parent.proc != p {
		return nil, ErrForeignParent
	}
	o := loaderOptions{directives: p.directives}
	for _, opt := range opts {
		opt(&o)
	}

	parallel := f != nil && p.reg.IsRegistered(reflect.TypeOf(f))
	l := &Loader{
		proc:     p,
		parent:   parent,
		finder:   f,
		parallel: parallel,
		locks:    locks.NewRegistry(parallel),
		asserts:  assertions.New(p.system, o.directives),
	}

	pid := hierarchy.Bootstrap
	if parent != nil {
		pid = parent.ID()
	}
	id, err := p.arena.Add(pid, name, l)
	if err != nil {
		return nil, err
	}
	l.sp = newSpace(id, name, l, l.asserts.DesiredStatus)
	l.libs = p.natives.NewTable(id, name)
	l.res = p.bld.BuildResolver(p.cfg, l, p.ext)

	// A loader becomes unreachable only once none of its types is, since
	// each type holds its defining loader. It then releases its libraries
	// and leaves the arena.
	arena := p.arena
	runtime.AddCleanup(l, func(t *natives.Table) {
		ctx := context.Background()
		if err := t.Release(ctx); err != nil {
			slogcontext.FromCtx(ctx).WarnContext(ctx, "releasing native libraries failed",
				slog.String("realm", "loader"),
				slog.String("loader", name),
				slog.Any("error", err),
			)
		}
		arena.Remove(t.Owner())
	}, l.libs)
	return l, nil
}

// ID returns the loader's arena id.
func (l *Loader) ID() hierarchy.ID { return l.sp.id }

// Name returns the loader name.
func (l *Loader) Name() string { return l.sp.name }

// String returns the loader name.
func (l *Loader) String() string { return l.sp.name }

// Process returns the owning process.
func (l *Loader) Process() *Process { return l.proc }

// Parent returns the parent loader, or nil.
func (l *Loader) Parent() *Loader { return l.parent }

// IsParallelCapable reports whether the loader locks per name.
func (l *Loader) IsParallelCapable() bool { return l.parallel }

// IsAncestorOf reports whether l is a proper ancestor of other.
func (l *Loader) IsAncestorOf(other *Loader) bool {
	if other == nil {
		return false
	}
	return l.proc.arena.IsAncestor(l.ID(), other.ID())
}

// Delegate returns the parent as an apis.Delegate, or nil.
func (l *Loader) Delegate() apis.Delegate {
	if l.parent == nil {
		return nil
	}
	return l.parent
}

// Bootstrap returns the bootstrap provider of the process.
func (l *Loader) Bootstrap() apis.Bootstrap { return l.proc.boot }

// Finder returns the find hook.
func (l *Loader) Finder() apis.Finder { return l.finder }

// Resolve returns the type for name: from this loader's cache, else from
// the parent (or the bootstrap provider), else from the find hook. The
// result is cached in this loader, so later requests observe the same
// type. With link set the type is linked before it is returned.
//
// Requests for one name are serialized; ctx carries the lock so the find
// hook may resolve further names with it.
func (l *Loader) Resolve(ctx context.Context, name string, link bool) (*typedesc.Descriptor, error) {
	ctx, release := l.locks.LockFor(name).Acquire(ctx)
	defer release()

	d, err := l.res.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	d = l.sp.record(name, d)

	slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "resolved type",
		slog.String("realm", "loader"),
		slog.String("loader", l.Name()),
		slog.String("name", name),
		slog.String("definer", d.LoaderName()),
	)

	if link {
		if err := l.Link(ctx, d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Link links d through the process linker. Linking fixes the desired
// assertion status of d.
func (l *Loader) Link(ctx context.Context, d *typedesc.Descriptor) error {
	return l.proc.linker.Link(ctx, d)
}

// Define records a new type defined by this loader. Find hooks call it
// with the data they located.
func (l *Loader) Define(ctx context.Context, name string, data []byte, opts ...typedesc.Option) (*typedesc.Descriptor, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	return l.sp.define(ctx, name, data, opts)
}

// FindLoaded returns the type this loader resolved or defined for name.
func (l *Loader) FindLoaded(name string) (*typedesc.Descriptor, bool) {
	return l.sp.findLoaded(name)
}

// Types returns the types this loader defined, in definition order.
func (l *Loader) Types() []*typedesc.Descriptor {
	return l.sp.types()
}

// Signers returns the signers recorded for a package of this loader.
func (l *Loader) Signers(pkg string) (certs.Set, bool) {
	return l.sp.ledger.Signers(pkg)
}

// DefinePackage defines a package in this loader.
func (l *Loader) DefinePackage(name string, info certs.Info) (*certs.Package, error) {
	return l.sp.packages.Define(name, info)
}

// Package returns the package called name as seen from this loader: its
// own definition, else an ancestor's, else the bootstrap provider's.
func (l *Loader) Package(name string) (*certs.Package, bool) {
	for c := l; c != nil; c = c.parent {
		if pkg, ok := c.sp.packages.Get(name); ok {
			return pkg, true
		}
	}
	if b, ok := l.proc.boot.(interface {
		Package(string) (*certs.Package, bool)
	}); ok {
		return b.Package(name)
	}
	return nil, false
}

// Packages returns the packages defined by this loader.
func (l *Loader) Packages() []*certs.Package {
	return l.sp.packages.All()
}

// Resource returns a resource: from the parent first, else the bootstrap
// provider, else the find hook. Missing resources fail with an error
// wrapping fs.ErrNotExist.
func (l *Loader) Resource(ctx context.Context, name string) (io.ReadCloser, error) {
	if l.parent != nil {
		if rc, err := l.parent.Resource(ctx, name); err == nil {
			return rc, nil
		}
	} else if rp, ok := l.proc.boot.(apis.ResourceProvider); ok {
		if rc, err := rp.Open(ctx, name); err == nil {
			return rc, nil
		}
	}
	if rp, ok := l.finder.(apis.ResourceProvider); ok {
		return rp.Open(ctx, name)
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Open implements apis.ResourceProvider with Resource.
func (l *Loader) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return l.Resource(ctx, name)
}

// LoadLibrary attaches a native library for this loader. name is a builtin
// library, an absolute path, or a short name looked up through the find
// hook (when it implements apis.LibraryFinder) and then the process
// library paths.
func (l *Loader) LoadLibrary(ctx context.Context, name string) (bool, error) {
	if l.closed.Load() {
		return false, ErrClosed
	}
	path, err := l.proc.locateLibrary(l.finder, name, l.Name())
	if err != nil {
		return false, err
	}
	return l.libs.Load(ctx, path)
}

// Libraries returns the libraries attached by this loader.
func (l *Loader) Libraries() []*natives.Handle {
	return l.libs.Libraries()
}

// Close stops the loader from defining types and attaching libraries. It
// still resolves through its cache and delegation. Its libraries stay
// attached until the loader and every type it defined are unreachable.
func (l *Loader) Close() error {
	l.closed.Store(true)
	return nil
}

// DesiredAssertionStatus returns the assertion status for a type name.
func (l *Loader) DesiredAssertionStatus(name string) bool {
	return l.asserts.DesiredStatus(name)
}

// SetDefaultAssertionStatus sets the loader's default assertion status.
func (l *Loader) SetDefaultAssertionStatus(enabled bool) {
	l.asserts.SetDefault(enabled)
}

// SetPackageAssertionStatus sets the status of a package and its
// subpackages.
func (l *Loader) SetPackageAssertionStatus(pkg string, enabled bool) {
	l.asserts.SetPackage(pkg, enabled)
}

// SetClassAssertionStatus sets the status of one type.
func (l *Loader) SetClassAssertionStatus(name string, enabled bool) {
	l.asserts.SetClass(name, enabled)
}

// ClearAssertionStatus drops all assertion entries and sets the default to
// false.
func (l *Loader) ClearAssertionStatus() {
	l.asserts.Clear()
}
