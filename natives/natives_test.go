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

package natives_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"dirpx.dev/ldx/config"
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/natives"
)

// attacher counts attach calls and runs an optional per-path hook.
type attacher struct {
	mu       sync.Mutex
	attached map[string]int
	detached []string
	hooks    map[string]func(ctx context.Context) error
}

func newAttacher() *attacher {
	return &attacher{attached: map[string]int{}, hooks: map[string]func(context.Context) error{}}
}

func (a *attacher) Attach(ctx context.Context, path string) (any, error) {
	a.mu.Lock()
	a.attached[path]++
	hook := a.hooks[path]
	a.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	return path, nil
}

func (a *attacher) Detach(h any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detached = append(a.detached, h.(string))
	return nil
}

func (a *attacher) calls(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attached[path]
}

// library creates an empty library file and returns its canonical path.
func library(t *testing.T, name string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, natives.MapLibraryName(name))
	require.NoError(t, os.WriteFile(p, nil, 0o600))
	c, err := natives.Canonicalize(p)
	require.NoError(t, err)
	return c
}

func TestLoad_Idempotent(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	a := newAttacher()
	g := natives.NewGlobal(config.DefaultConfig(), a)
	tab := g.NewTable(1, "app")
	lib := library(t, "z")

	for range 2 {
		ok, err := tab.Load(ctx, lib)
		r.NoError(err)
		r.True(ok)
	}
	r.Equal(1, a.calls(lib))
	r.Len(tab.Libraries(), 1)
	r.True(tab.Libraries()[0].Loaded())

	owner, ok := g.Owner(lib)
	r.True(ok)
	r.Equal("app", owner)
}

func TestLoad_Symlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks")
	}
	r := require.New(t)
	ctx := context.Background()
	a := newAttacher()
	g := natives.NewGlobal(config.DefaultConfig(), a)
	tab := g.NewTable(1, "app")
	lib := library(t, "z")
	link := filepath.Join(t.TempDir(), "alias.so")
	r.NoError(os.Symlink(lib, link))

	ok, err := tab.Load(ctx, link)
	r.NoError(err)
	r.True(ok)
	ok, err = tab.Load(ctx, lib)
	r.NoError(err)
	r.True(ok)
	r.Equal(1, a.calls(lib))
}

func TestLoad_ExclusiveOwner(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	a := newAttacher()
	g := natives.NewGlobal(config.DefaultConfig(), a)
	lib := library(t, "z")

	ok, err := g.NewTable(1, "a").Load(ctx, lib)
	r.NoError(err)
	r.True(ok)

	ok, err = g.NewTable(2, "b").Load(ctx, lib)
	r.False(ok)
	r.ErrorIs(err, errs.ErrDuplicateLibrary)
	r.Equal(1, a.calls(lib))
}

func TestLoad_ReentrantSameOwner(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	a := newAttacher()
	g := natives.NewGlobal(config.DefaultConfig(), a)
	tab := g.NewTable(1, "app")
	lib := library(t, "self")
	dep := library(t, "dep")

	var inner, nested error
	var innerOK bool
	a.hooks[lib] = func(ctx context.Context) error {
		r.Equal([]string{lib}, g.InFlight())
		innerOK, inner = tab.Load(ctx, lib)
		_, nested = tab.Load(ctx, dep)
		return nil
	}

	ok, err := tab.Load(ctx, lib)
	r.NoError(err)
	r.True(ok)
	r.NoError(inner)
	r.True(innerOK)
	r.NoError(nested)
	r.Equal(1, a.calls(lib))
	r.Equal(1, a.calls(dep))
	r.Empty(g.InFlight())
	r.Len(g.Loaded(), 2)
}

func TestLoad_InFlightOtherOwner(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	a := newAttacher()
	g := natives.NewGlobal(config.DefaultConfig(), a)
	owner := g.NewTable(1, "a")
	other := g.NewTable(2, "b")
	lib := library(t, "z")

	var inner error
	a.hooks[lib] = func(ctx context.Context) error {
		_, inner = other.Load(ctx, lib)
		return nil
	}

	ok, err := owner.Load(ctx, lib)
	r.NoError(err)
	r.True(ok)
	r.ErrorIs(inner, errs.ErrDuplicateLibrary)
	r.Empty(other.Libraries())
}

func TestLoad_Missing(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "libnone.so")

	g := natives.NewGlobal(config.NewConfig(config.WithOnlyIfPresent(true)), newAttacher())
	ok, err := g.NewTable(1, "app").Load(ctx, missing)
	r.NoError(err)
	r.False(ok)

	g = natives.NewGlobal(config.DefaultConfig(), newAttacher())
	ok, err = g.NewTable(1, "app").Load(ctx, missing)
	r.False(ok)
	r.ErrorIs(err, errs.ErrUnsatisfiedLink)
}

func TestLoad_AttachFailure(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	a := newAttacher()
	g := natives.NewGlobal(config.DefaultConfig(), a)
	tab := g.NewTable(1, "app")
	lib := library(t, "bad")
	a.hooks[lib] = func(context.Context) error { return os.ErrPermission }

	ok, err := tab.Load(ctx, lib)
	r.False(ok)
	r.ErrorIs(err, errs.ErrUnsatisfiedLink)
	r.ErrorIs(err, os.ErrPermission)
	r.Empty(tab.Libraries())
	r.Empty(g.Loaded())
	r.Empty(g.InFlight())

	// No automatic retry; a new request attempts again.
	_, err = tab.Load(ctx, lib)
	r.Error(err)
	r.Equal(2, a.calls(lib))
}

func TestLoad_Builtin(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	a := newAttacher()
	g := natives.NewGlobal(config.DefaultConfig(), a)

	runs := 0
	g.RegisterBuiltin("zip", func(context.Context) error {
		runs++
		return nil
	})
	r.True(g.IsBuiltin("zip"))

	tab := g.NewTable(1, "app")
	for range 2 {
		ok, err := tab.Load(ctx, "zip")
		r.NoError(err)
		r.True(ok)
	}
	r.Equal(1, runs)
	r.Empty(a.attached)
	r.True(tab.Libraries()[0].Builtin)

	_, err := g.NewTable(2, "other").Load(ctx, "zip")
	r.ErrorIs(err, errs.ErrDuplicateLibrary)
}

func TestRelease(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	a := newAttacher()
	g := natives.NewGlobal(config.DefaultConfig(), a)
	first := g.NewTable(1, "a")
	lib := library(t, "z")
	g.RegisterBuiltin("net", nil)

	_, err := first.Load(ctx, lib)
	r.NoError(err)
	_, err = first.Load(ctx, "net")
	r.NoError(err)
	h := first.Libraries()[0]

	r.NoError(first.Release(ctx))
	r.False(h.Loaded())
	r.Empty(first.Libraries())
	r.Empty(g.Loaded())
	r.Equal([]string{lib}, a.detached)

	ok, err := g.NewTable(2, "b").Load(ctx, lib)
	r.NoError(err)
	r.True(ok)
}

func TestLoad_Concurrent(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	a := newAttacher()
	g := natives.NewGlobal(config.DefaultConfig(), a)
	tab := g.NewTable(1, "app")
	lib := library(t, "z")

	workers := runtime.GOMAXPROCS(0) * 4
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			if ok, err := tab.Load(ctx, lib); err != nil || !ok {
				t.Errorf("Load = (%v, %v)", ok, err)
			}
		}()
	}
	wg.Wait()
	r.Equal(1, a.calls(lib))
}

func TestLocate(t *testing.T) {
	r := require.New(t)
	empty := t.TempDir()
	lib := library(t, "pq")
	dir := filepath.Dir(lib)

	p, ok := natives.Locate("pq", []string{empty, dir})
	r.True(ok)
	r.Equal(filepath.Join(dir, natives.MapLibraryName("pq")), p)

	_, ok = natives.Locate("other", []string{empty, dir})
	r.False(ok)
}

func TestPluginAttacher_RejectsNonELF(t *testing.T) {
	p := filepath.Join(t.TempDir(), "libtext.so")
	require.NoError(t, os.WriteFile(p, []byte("not a library"), 0o600))
	_, err := natives.PluginAttacher{}.Attach(context.Background(), p)
	require.Error(t, err)
	require.NoError(t, natives.PluginAttacher{}.Detach(nil))
}
