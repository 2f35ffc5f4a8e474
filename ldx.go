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

package ldx

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/builder"
	"dirpx.dev/ldx/config"
	"dirpx.dev/ldx/loader"
	"dirpx.dev/ldx/natives"
	"dirpx.dev/ldx/typedesc"
)

// init initializes the global state.
func init() {
	// Initialize state with default cfg, reg, and proc.
	s := &state{cfg: config.DefaultConfig()}
	b := builder.New()
	s.reg = b.BuildRegistry(s.cfg, nil, nil)
	s.proc = newProcess(s.cfg, nil, s.reg, b, nil)
	s.bld = b
	// Store the initial state atomically.
	st.Store(s)
}

var (
	// ErrNilRegistry is returned when a builder returns a nil registry.
	ErrNilRegistry = errors.New("ldx: builder returned nil registry")
)

// newProcess builds a process over reg. The bootstrap provider of prev, if
// any, carries over.
func newProcess(cfg apis.Config, ext any, reg apis.Registry, bld apis.Builder, prev *loader.Process) *loader.Process {
	opts := []loader.Option{
		loader.WithBuilder(bld),
		loader.WithRegistry(reg),
		loader.WithExt(ext),
	}
	if prev != nil {
		opts = append(opts, loader.WithBootstrap(prev.Bootstrap()))
	}
	return loader.New(cfg, opts...)
}

// rebuild derives the next snapshot from old, rebuilding unpinned layers.
// buildMu must be held.
func rebuild(old *state, cfg apis.Config, ext any, bld apis.Builder) *state {
	nreg := old.reg
	if !old.preg {
		nreg = bld.BuildRegistry(cfg, old.reg, ext)
	}
	if nreg == nil {
		panic(ErrNilRegistry)
	}
	nproc := old.proc
	if !old.pproc {
		nproc = newProcess(cfg, ext, nreg, bld, old.proc)
	}
	return &state{
		cfg:   cfg,
		ext:   ext,
		reg:   nreg,
		proc:  nproc,
		bld:   bld,
		preg:  old.preg,
		pproc: old.pproc,
	}
}

// Resolve resolves name in the global process, from its system loader or
// its bootstrap provider.
// This is a convenience wrapper around the global process.
func Resolve(ctx context.Context, name string, link bool) (*typedesc.Descriptor, error) {
	return st.Load().proc.Resolve(ctx, name, link)
}

// NewLoader creates a loader in the global process.
// This is a convenience wrapper around the global process.
func NewLoader(name string, parent *loader.Loader, f apis.Finder, opts ...loader.LoaderOption) (*loader.Loader, error) {
	return st.Load().proc.NewLoader(name, parent, f, opts...)
}

// RegisterParallelCapable marks a find hook type as parallel-capable in the
// global registry.
// This is a convenience wrapper around the global reg.
func RegisterParallelCapable(t, super reflect.Type) bool {
	return st.Load().reg.Register(t, super)
}

// LoadLibrary loads a native library on behalf of the global process.
func LoadLibrary(ctx context.Context, name string) (bool, error) {
	return st.Load().proc.LoadLibrary(ctx, name)
}

// Libraries returns the native libraries attached in the global process.
func Libraries() []*natives.Handle {
	return st.Load().proc.Libraries()
}

// SetAll explicitly sets all global state components.
//
// Nil arguments leave the corresponding component unchanged,
// except for ext which is always replaced. A non-nil reg or proc is
// pinned; a nil one is rebuilt and unpinned.
//
// This is a convenience wrapper around the global state.
func SetAll(cfg *apis.Config, ext any, reg apis.Registry, proc *loader.Process, bld apis.Builder) {
	buildMu.Lock()
	defer buildMu.Unlock()

	// Load the old state.
	old := st.Load()

	// Configuration
	ncfg := old.cfg
	if cfg != nil {
		ncfg = *cfg
	}

	// Builder
	nbld := old.bld
	if bld != nil {
		nbld = bld
	}

	// Registry
	nreg := reg
	npreg := false
	if nreg == nil {
		nreg = nbld.BuildRegistry(ncfg, old.reg, ext)
	} else {
		npreg = true
	}
	if nreg == nil {
		panic(ErrNilRegistry)
	}

	// Process
	nproc := proc
	npproc := false
	if nproc == nil {
		nproc = newProcess(ncfg, ext, nreg, nbld, old.proc)
	} else {
		npproc = true
	}

	// Store the new state atomically.
	st.Store(
		&state{
			cfg:   ncfg,
			ext:   ext,
			reg:   nreg,
			proc:  nproc,
			bld:   nbld,
			preg:  npreg,
			pproc: npproc,
		},
	)
}

// Config returns the global configuration.
func Config() apis.Config {
	return st.Load().cfg
}

// SetConfig sets the global configuration to cfg.
// It rebuilds the global reg and proc using the new configuration.
// Loaders created on the previous process stay bound to it.
func SetConfig(cfg apis.Config) {
	buildMu.Lock()
	defer buildMu.Unlock()
	old := st.Load()
	st.Store(rebuild(old, cfg, old.ext, old.bld))
}

// Registry returns the global reg.
func Registry() apis.Registry {
	return st.Load().reg
}

// SetRegistry sets and pins the global reg. The process is rebuilt over it
// unless pinned.
func SetRegistry(reg apis.Registry) {
	if reg == nil {
		return
	}

	buildMu.Lock()
	defer buildMu.Unlock()

	// Load the old state.
	old := st.Load()

	nproc := old.proc
	if !old.pproc {
		nproc = newProcess(old.cfg, old.ext, reg, old.bld, old.proc)
	}

	// Store the new state atomically.
	st.Store(
		&state{
			cfg:   old.cfg,
			ext:   old.ext,
			reg:   reg,
			proc:  nproc,
			bld:   old.bld,
			preg:  true,
			pproc: old.pproc,
		},
	)
}

// Process returns the global process.
func Process() *loader.Process {
	return st.Load().proc
}

// SetProcess sets and pins the global process.
func SetProcess(p *loader.Process) {
	if p == nil {
		return
	}

	buildMu.Lock()
	defer buildMu.Unlock()

	// Load the old state.
	old := st.Load()

	// Store the new state atomically.
	st.Store(
		&state{
			cfg:   old.cfg,
			ext:   old.ext,
			reg:   old.reg,
			proc:  p,
			bld:   old.bld,
			preg:  old.preg,
			pproc: true,
		},
	)
}

// Builder returns the global bld.
func Builder() apis.Builder {
	return st.Load().bld
}

// SetBuilder sets the global bld to b and rebuilds unpinned layers with it.
func SetBuilder(b apis.Builder) {
	if b == nil {
		return
	}
	buildMu.Lock()
	defer buildMu.Unlock()
	old := st.Load()
	st.Store(rebuild(old, old.cfg, old.ext, b))
}

// SetExt replaces extension config and rebuilds non-pinned layers via the builder.
func SetExt[T any](ext T) {
	buildMu.Lock()
	defer buildMu.Unlock()
	old := st.Load()
	st.Store(rebuild(old, old.cfg, ext, old.bld))
}

// ExtAs returns the global extension config as type T.
func ExtAs[T any]() (T, bool) {
	ext, ok := st.Load().ext.(T)
	return ext, ok
}

// IsRegistryPinned returns whether the global reg is pinned (immutable).
func IsRegistryPinned() bool {
	return st.Load().preg
}

// PinRegistry makes the global reg immutable.
func PinRegistry() { setPins(true, false, false, false) }

// UnpinRegistry makes the global reg mutable again.
func UnpinRegistry() { setPins(false, true, false, false) }

// IsProcessPinned returns whether the global proc is pinned (immutable).
func IsProcessPinned() bool {
	return st.Load().pproc
}

// PinProcess makes the global proc immutable.
func PinProcess() { setPins(false, false, true, false) }

// UnpinProcess makes the global proc mutable again.
func UnpinProcess() { setPins(false, false, false, true) }

func setPins(pinReg, unpinReg, pinProc, unpinProc bool) {
	buildMu.Lock()
	defer buildMu.Unlock()

	// Load the old state.
	old := st.Load()

	next := *old
	switch {
	case pinReg:
		next.preg = true
	case unpinReg:
		next.preg = false
	case pinProc:
		next.pproc = true
	case unpinProc:
		next.pproc = false
	}

	// Store the new state atomically.
	st.Store(&next)
}

// buildMu serializes writers (reconfigurations/swaps) so we never publish
// partially-built snapshots.
var buildMu sync.Mutex

// st is the global state.
var st atomic.Pointer[state]

// state is the global state snapshot.
// Immutable snapshot published atomically via st.Store; never mutate fields
// of a published state. Writers create a new state and swap it atomically.
type state struct {
	// cfg is the global configuration.
	cfg apis.Config
	// ext is the global extension configuration.
	ext any
	// reg is the global parallel-capability registry.
	reg apis.Registry
	// proc is the global process.
	proc *loader.Process
	// bld is the global bld.
	bld apis.Builder
	// preg indicates whether the reg is pinned (immutable).
	preg bool
	// pproc indicates whether the proc is pinned (immutable).
	pproc bool
}
