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

// Package loader implements the type resolution engine: loaders that
// delegate to their parent (or the bootstrap provider) before asking
// their own find hook, and the process-wide context they share.
//
// Resolution of one name in one loader is serialized by a lock token taken
// from the loader's lock registry. Tokens travel in the context.Context, so
// a find hook that resolves further names must pass on the context it was
// given; a call chain that already holds a token re-enters it freely.
package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/assertions"
	"dirpx.dev/ldx/builder"
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/hierarchy"
	"dirpx.dev/ldx/locks"
	"dirpx.dev/ldx/natives"
	"dirpx.dev/ldx/typedesc"
)

// ProcessOwner is the owner name of libraries loaded outside any loader.
const ProcessOwner = "process"

var (
	// ErrEmptyLoaderName is returned when creating a loader without a name.
	ErrEmptyLoaderName = errors.New("ldx(loader): empty loader name")
	// ErrForeignParent is returned when a parent belongs to another process.
	ErrForeignParent = errors.New("ldx(loader): parent belongs to another process")
	// ErrClosed is returned by operations on a closed loader.
	ErrClosed = errors.New("ldx(loader): loader closed")
)

// Process is the context shared by a hierarchy of loaders: the loader
// arena, the parallel-capability registry, the native library state and
// the external collaborators.
type Process struct {
	cfg        apis.Config
	ext        any
	arena      *hierarchy.Arena[Loader]
	reg        apis.Registry
	bld        apis.Builder
	boot       apis.Bootstrap
	linker     apis.Linker
	natives    *natives.Global
	libs       *natives.Table
	libPaths   []string
	system     apis.SystemAssertions
	directives apis.DirectiveSource

	sys atomic.Pointer[Loader]
}

// Option configures a Process.
type Option func(*processOptions)

type processOptions struct {
	ext        any
	reg        apis.Registry
	bld        apis.Builder
	boot       apis.Bootstrap
	linker     apis.Linker
	attacher   apis.Attacher
	system     apis.SystemAssertions
	directives apis.DirectiveSource
	libPaths   []string
	builtins   map[string]natives.OnLoad
}

// WithExt passes an extension value to the builder.
func WithExt(ext any) Option { return func(o *processOptions) { o.ext = ext } }

// WithRegistry uses reg as the parallel-capability registry.
func WithRegistry(reg apis.Registry) Option { return func(o *processOptions) { o.reg = reg } }

// WithBuilder uses b to build the registry and resolution chains.
func WithBuilder(b apis.Builder) Option { return func(o *processOptions) { o.bld = b } }

// WithBootstrap sets the bootstrap provider of parentless loaders.
func WithBootstrap(b apis.Bootstrap) Option { return func(o *processOptions) { o.boot = b } }

// WithLinker sets the linker.
func WithLinker(l apis.Linker) Option { return func(o *processOptions) { o.linker = l } }

// WithAttacher sets the OS library attach primitive.
func WithAttacher(a apis.Attacher) Option { return func(o *processOptions) { o.attacher = a } }

// WithSystemAssertions answers assertion queries of unconfigured loaders.
func WithSystemAssertions(s apis.SystemAssertions) Option {
	return func(o *processOptions) { o.system = s }
}

// WithDirectiveSource populates loader assertion stores when they are
// first configured.
func WithDirectiveSource(s apis.DirectiveSource) Option {
	return func(o *processOptions) { o.directives = s }
}

// WithLibraryPaths sets the directories searched for short library names.
func WithLibraryPaths(dirs ...string) Option {
	return func(o *processOptions) { o.libPaths = append(o.libPaths, dirs...) }
}

// WithBuiltinLibrary declares a statically linked library.
func WithBuiltinLibrary(name string, fn natives.OnLoad) Option {
	return func(o *processOptions) {
		if o.builtins == nil {
			o.builtins = make(map[string]natives.OnLoad)
		}
		o.builtins[name] = fn
	}
}

// New returns a Process for cfg.
func New(cfg apis.Config, opts ...Option) *Process {
	o := processOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bld == nil {
		o.bld = builder.New()
	}
	if o.reg == nil {
		o.reg = o.bld.BuildRegistry(cfg, nil, o.ext)
	}
	if o.boot == nil {
		o.boot = EmptyBootstrap
	}
	if o.linker == nil {
		o.linker = typedesc.NewLinker()
	}
	if o.system == nil {
		o.system = assertions.System(cfg.SystemAssertions)
	}

	p := &Process{
		cfg:        cfg,
		ext:        o.ext,
		arena:      hierarchy.NewArena[Loader](),
		reg:        o.reg,
		bld:        o.bld,
		boot:       o.boot,
		linker:     o.linker,
		natives:    natives.NewGlobal(cfg, o.attacher),
		libPaths:   o.libPaths,
		system:     o.system,
		directives: o.directives,
	}
	for name, fn := range o.builtins {
		p.natives.RegisterBuiltin(name, fn)
	}
	p.libs = p.natives.NewTable(hierarchy.Bootstrap, ProcessOwner)
	return p
}

// Config returns the process configuration.
func (p *Process) Config() apis.Config { return p.cfg }

// Ext returns the extension value passed to the builder.
func (p *Process) Ext() any { return p.ext }

// Builder returns the builder.
func (p *Process) Builder() apis.Builder { return p.bld }

// Registry returns the parallel-capability registry.
func (p *Process) Registry() apis.Registry { return p.reg }

// Bootstrap returns the bootstrap provider.
func (p *Process) Bootstrap() apis.Bootstrap { return p.boot }

// Natives returns the process-wide native library state.
func (p *Process) Natives() *natives.Global { return p.natives }

// RegisterParallelCapable marks the find hook implementation type t as
// parallel-capable. super is the type t declares as its supertype, nil for
// none; it must have registered first. Loaders created afterwards with a
// find hook of type t lock per name.
func (p *Process) RegisterParallelCapable(t, super reflect.Type) bool {
	return p.reg.Register(t, super)
}

// SetSystem sets the loader Process.Resolve starts from.
func (p *Process) SetSystem(l *Loader) { p.sys.Store(l) }

// System returns the system loader, or nil.
func (p *Process) System() *Loader { return p.sys.Load() }

// Loader returns the live loader with the given id.
func (p *Process) Loader(id hierarchy.ID) *Loader { return p.arena.Get(id) }

// Loaders returns the live loaders in creation order.
func (p *Process) Loaders() []*Loader {
	ids := p.arena.IDs()
	out := make([]*Loader, 0, len(ids))
	for _, id := range ids {
		if l := p.arena.Get(id); l != nil {
			out = append(out, l)
		}
	}
	return out
}

// Resolve resolves name from the system loader, or from the bootstrap
// provider when no system loader is set.
func (p *Process) Resolve(ctx context.Context, name string, link bool) (*typedesc.Descriptor, error) {
	if l := p.System(); l != nil {
		return l.Resolve(ctx, name, link)
	}
	d, err := p.boot.ResolveBootstrap(ctx, name)
	if err != nil {
		return nil, err
	}
	if link {
		if err := p.linker.Link(ctx, d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Preload resolves names in l concurrently. It returns the types in the
// order of names and the first error encountered; names not attempted
// after a failure are left nil.
func (p *Process) Preload(ctx context.Context, l *Loader, link bool, names ...string) ([]*typedesc.Descriptor, error) {
	out := make([]*typedesc.Descriptor, len(names))
	g, gctx := errgroup.WithContext(locks.Detach(ctx))
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := l.Resolve(gctx, name, link)
			if err != nil {
				return err
			}
			out[i] = d
			return nil
		})
	}
	return out, g.Wait()
}

// LoadLibrary loads a library on behalf of the process itself.
func (p *Process) LoadLibrary(ctx context.Context, name string) (bool, error) {
	path, err := p.locateLibrary(nil, name, ProcessOwner)
	if err != nil {
		return false, err
	}
	return p.libs.Load(ctx, path)
}

// Libraries returns every library attached in the process.
func (p *Process) Libraries() []*natives.Handle {
	return p.natives.Loaded()
}

// locateLibrary maps a library request to a builtin name or a path.
func (p *Process) locateLibrary(f apis.Finder, name, owner string) (string, error) {
	if p.natives.IsBuiltin(name) || filepath.IsAbs(name) {
		return name, nil
	}
	if lf, ok := f.(apis.LibraryFinder); ok {
		if path, ok := lf.FindLibrary(name); ok {
			return path, nil
		}
	}
	if path, ok := natives.Locate(name, p.libPaths); ok {
		return path, nil
	}
	return "", errs.Linkage(errs.UnsatisfiedLink, name, owner,
		fmt.Errorf("no %s in library path", natives.MapLibraryName(name)))
}
