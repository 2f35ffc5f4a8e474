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

// Package natives tracks native libraries attached on behalf of loaders.
//
// A Global is shared by every loader of one process. It owns the
// process-wide registry of attached libraries and the stack of libraries
// whose attachment is in progress. Each loader (and the process itself,
// as owner hierarchy.Bootstrap) owns a Table listing the libraries it
// attached.
//
// A library may be attached once per process. A second owner asking for
// the same canonical name fails with a DuplicateLibrary LinkageError, even
// while the first attachment is still running. The owner whose attachment
// is in progress may ask again (typically from the library's own
// initialization) and is told the library is loaded.
package natives

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	slogcontext "github.com/veqryn/slog-context"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/hierarchy"
	"dirpx.dev/ldx/locks"
)

// OnLoad is the initialization hook of a builtin library. ctx holds the
// process attach token, so the hook may load further libraries.
type OnLoad func(ctx context.Context) error

// Handle is an attached, or attaching, native library.
type Handle struct {
	// Name is the canonical path, or the builtin name.
	Name string
	// Owner is the owning loader; hierarchy.Bootstrap for the process.
	Owner hierarchy.ID
	// OwnerName names the owner in errors and listings.
	OwnerName string
	// Builtin reports a statically linked library.
	Builtin bool

	loaded atomic.Bool
	ref    any
}

// Loaded reports whether attachment completed.
func (h *Handle) Loaded() bool { return h.loaded.Load() }

// Global is the process-wide native library state.
type Global struct {
	onlyIfPresent bool
	attacher      apis.Attacher

	// tok serializes attachment process wide. It is context-reentrant so an
	// initializing library can request further attachments on its chain.
	tok locks.Token

	mu       sync.RWMutex
	loaded   map[string]*Handle
	stack    []*Handle
	builtins map[string]OnLoad
}

// NewGlobal returns the process-wide state. A nil attacher uses
// PluginAttacher.
func NewGlobal(cfg apis.Config, a apis.Attacher) *Global {
	if a == nil {
		a = PluginAttacher{}
	}
	return &Global{
		onlyIfPresent: cfg.OnlyIfPresent,
		attacher:      a,
		loaded:        make(map[string]*Handle),
		builtins:      make(map[string]OnLoad),
	}
}

// RegisterBuiltin declares a statically linked library. fn may be nil.
func (g *Global) RegisterBuiltin(name string, fn OnLoad) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if fn == nil {
		fn = func(context.Context) error { return nil }
	}
	g.builtins[name] = fn
}

// IsBuiltin reports whether name is a registered builtin library.
func (g *Global) IsBuiltin(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.builtins[name]
	return ok
}

// OnlyIfPresent reports whether missing library files are tolerated.
func (g *Global) OnlyIfPresent() bool { return g.onlyIfPresent }

// NewTable returns an empty table for owner.
func (g *Global) NewTable(owner hierarchy.ID, ownerName string) *Table {
	return &Table{g: g, owner: owner, ownerName: ownerName, libs: make(map[string]*Handle)}
}

// Load attaches name on behalf of t's owner. name is a builtin library name
// or a file path. It returns false, nil when the file does not exist and
// missing files are tolerated.
func (g *Global) Load(ctx context.Context, t *Table, name string) (bool, error) {
	builtin := g.IsBuiltin(name)
	canonical := name
	if !builtin {
		var err error
		canonical, err = Canonicalize(name)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && g.onlyIfPresent {
				return false, nil
			}
			return false, errs.Linkage(errs.UnsatisfiedLink, name, t.ownerName, err)
		}
	}

	ctx, release := g.tok.Acquire(ctx)
	defer release()

	if t.Contains(canonical) {
		return true, nil
	}

	g.mu.Lock()
	if h, ok := g.loaded[canonical]; ok {
		g.mu.Unlock()
		return false, errs.Linkage(errs.DuplicateLibrary, canonical, t.ownerName,
			fmt.Errorf("already loaded by loader %s", h.OwnerName))
	}
	for _, h := range g.stack {
		if h.Name != canonical {
			continue
		}
		g.mu.Unlock()
		if h.Owner == t.owner {
			return true, nil
		}
		return false, errs.Linkage(errs.DuplicateLibrary, canonical, t.ownerName,
			fmt.Errorf("being loaded by loader %s", h.OwnerName))
	}
	h := &Handle{Name: canonical, Owner: t.owner, OwnerName: t.ownerName, Builtin: builtin}
	g.stack = append(g.stack, h)
	onLoad := g.builtins[canonical]
	g.mu.Unlock()

	logger := slogcontext.FromCtx(ctx).With(slog.String("realm", "natives"))
	logger.DebugContext(ctx, "attaching native library",
		slog.String("library", canonical), slog.String("loader", t.ownerName), slog.Bool("builtin", builtin))

	err := g.attach(ctx, h, onLoad)

	g.mu.Lock()
	if i := slices.Index(g.stack, h); i >= 0 {
		g.stack = slices.Delete(g.stack, i, i+1)
	}
	if err == nil {
		h.loaded.Store(true)
		g.loaded[canonical] = h
	}
	g.mu.Unlock()

	if err != nil {
		logger.DebugContext(ctx, "native library attach failed", slog.String("library", canonical), slog.Any("error", err))
		return false, errs.Linkage(errs.UnsatisfiedLink, canonical, t.ownerName, err)
	}
	t.add(h)
	return true, nil
}

func (g *Global) attach(ctx context.Context, h *Handle, onLoad OnLoad) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during attach: %v", r)
		}
	}()
	if h.Builtin {
		if onLoad == nil {
			return nil
		}
		return onLoad(ctx)
	}
	h.ref, err = g.attacher.Attach(ctx, h.Name)
	return err
}

// Owner returns the owner name of the process-wide entry for a canonical
// name.
func (g *Global) Owner(canonical string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.loaded[canonical]
	if !ok {
		return "", false
	}
	return h.OwnerName, true
}

// Loaded returns every attached library sorted by name.
func (g *Global) Loaded() []*Handle {
	g.mu.RLock()
	out := make([]*Handle, 0, len(g.loaded))
	for _, h := range g.loaded {
		out = append(out, h)
	}
	g.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Handle) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

// InFlight returns the canonical names currently being attached, oldest
// first.
func (g *Global) InFlight() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.stack))
	for i, h := range g.stack {
		out[i] = h.Name
	}
	return out
}

// Table lists the libraries attached by one owner.
type Table struct {
	g         *Global
	owner     hierarchy.ID
	ownerName string

	mu    sync.RWMutex
	libs  map[string]*Handle
	order []*Handle
}

// Owner returns the owner of the table.
func (t *Table) Owner() hierarchy.ID { return t.owner }

// Load is shorthand for the global Load on t.
func (t *Table) Load(ctx context.Context, name string) (bool, error) {
	return t.g.Load(ctx, t, name)
}

// Contains reports whether the canonical name is attached by this owner.
func (t *Table) Contains(canonical string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.libs[canonical]
	return ok
}

// Libraries returns the attached libraries in attach order.
func (t *Table) Libraries() []*Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.order)
}

func (t *Table) add(h *Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.libs[h.Name] = h
	t.order = append(t.order, h)
}

// Release detaches every library of the table, newest first, and removes
// them from the process-wide registry. It is used when the owner goes
// away. Detach failures are joined; the entries are removed regardless.
func (t *Table) Release(ctx context.Context) error {
	ctx, release := t.g.tok.Acquire(ctx)
	defer release()

	t.mu.Lock()
	libs := t.order
	t.order = nil
	t.libs = make(map[string]*Handle)
	t.mu.Unlock()

	var errList []error
	for i := len(libs) - 1; i >= 0; i-- {
		h := libs[i]
		if !h.Builtin {
			if err := t.g.attacher.Detach(h.ref); err != nil {
				errList = append(errList, fmt.Errorf("detaching %s: %w", h.Name, err))
			}
		}
		h.loaded.Store(false)
		t.g.mu.Lock()
		if t.g.loaded[h.Name] == h {
			delete(t.g.loaded, h.Name)
		}
		t.g.mu.Unlock()
		slogcontext.FromCtx(ctx).DebugContext(ctx, "released native library",
			slog.String("realm", "natives"), slog.String("library", h.Name), slog.String("loader", t.ownerName))
	}
	return errors.Join(errList...)
}

// Canonicalize returns the absolute, symlink-free form of path. A missing
// file yields an error wrapping fs.ErrNotExist.
func Canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// MapLibraryName maps a short library name to the platform file name.
func MapLibraryName(name string) string {
	switch runtime.GOOS {
	case "windows":
		return name + ".dll"
	case "darwin", "ios":
		return "lib" + name + ".dylib"
	default:
		return "lib" + name + ".so"
	}
}

// Locate searches dirs for the platform file of the short name.
func Locate(name string, dirs []string) (string, bool) {
	file := MapLibraryName(name)
	for _, dir := range dirs {
		p := filepath.Join(dir, file)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, true
		}
	}
	return "", false
}
