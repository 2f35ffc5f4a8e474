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

package builder_test

import (
	"context"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	apis "dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/builder"
	"dirpx.dev/ldx/config"
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/hierarchy"
	"dirpx.dev/ldx/registry"
	"dirpx.dev/ldx/typedesc"
)

// baseLoader and childLoader stand in for loader implementation types.
type baseLoader struct{}
type childLoader struct{}
type grandchildLoader struct{}

// node is a minimal apis.Node whose find hook defines whatever it is asked.
type node struct {
	name   string
	parent apis.Delegate
	boot   apis.Bootstrap
	finds  atomic.Int64
	loaded sync.Map // map[string]*typedesc.Descriptor
}

func (n *node) Define(_ context.Context, name string, data []byte, opts ...typedesc.Option) (*typedesc.Descriptor, error) {
	d, _ := n.loaded.LoadOrStore(name, typedesc.New(name, 1, n.name, data, opts...))
	return d.(*typedesc.Descriptor), nil
}

func (n *node) Name() string { return n.name }

func (n *node) FindLoaded(name string) (*typedesc.Descriptor, bool) {
	d, ok := n.loaded.Load(name)
	if !ok {
		return nil, false
	}
	return d.(*typedesc.Descriptor), true
}

func (n *node) Delegate() apis.Delegate {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *node) Bootstrap() apis.Bootstrap { return n.boot }

func (n *node) Finder() apis.Finder {
	return apis.FinderFunc(func(ctx context.Context, def apis.Definer, name string) (*typedesc.Descriptor, error) {
		n.finds.Add(1)
		return def.Define(ctx, name, []byte(n.name))
	})
}

// boot knows exactly one name.
type boot struct{ d *typedesc.Descriptor }

func (b boot) ResolveBootstrap(_ context.Context, name string) (*typedesc.Descriptor, error) {
	if b.d != nil && b.d.Name() == name {
		return b.d, nil
	}
	return nil, errs.NotFound(name, "bootstrap")
}

// parent resolves through its own node and chain.
type parent struct {
	res apis.Resolver
}

func (p parent) Resolve(ctx context.Context, name string, _ bool) (*typedesc.Descriptor, error) {
	return p.res.Resolve(ctx, name)
}

// TestBuildRegistry_Basic asserts that BuildRegistry returns a non-nil,
// working Registry that supports Register/IsRegistered/Entries/Count.
func TestBuildRegistry_Basic(t *testing.T) {
	b := builder.New()

	// prev may be nil; this must still produce a valid registry.
	reg := b.BuildRegistry(config.DefaultConfig(), nil, nil)
	if reg == nil {
		t.Fatal("BuildRegistry returned nil")
	}

	tt := reflect.TypeOf(baseLoader{})
	if !reg.Register(tt, nil) {
		t.Fatalf("Register failed")
	}
	if !reg.IsRegistered(tt) {
		t.Fatalf("IsRegistered(baseLoader) = false")
	}
	if c := reg.Count(); c != 1 {
		t.Fatalf("Count = %d, want 1", c)
	}
}

// TestBuildRegistry_MigratesInDependencyOrder asserts that a chain of
// registrations survives a rebuild regardless of snapshot order.
func TestBuildRegistry_MigratesInDependencyOrder(t *testing.T) {
	b := builder.New()
	prev := registry.New(config.DefaultConfig())

	base := reflect.TypeOf(baseLoader{})
	child := reflect.TypeOf(childLoader{})
	grand := reflect.TypeOf(grandchildLoader{})
	if !prev.Register(base, nil) || !prev.Register(child, base) || !prev.Register(grand, child) {
		t.Fatalf("seeding previous registry failed")
	}

	next := b.BuildRegistry(config.NewConfig(config.WithMaxUnwrap(4)), prev, nil)
	for _, tt := range []reflect.Type{base, child, grand} {
		if !next.IsRegistered(tt) {
			t.Fatalf("%v not migrated", tt)
		}
	}
	if next.Count() != 3 {
		t.Fatalf("Count = %d, want 3", next.Count())
	}
}

// TestBuildResolver_Order_CacheThenBootstrapThenFind verifies the chain of a
// parentless loader.
func TestBuildResolver_Order_CacheThenBootstrapThenFind(t *testing.T) {
	ctx := context.Background()
	core := typedesc.New("Core", hierarchy.Bootstrap, "bootstrap", []byte("core"))
	sys := &node{name: "sys", boot: boot{d: core}}

	res := builder.New().BuildResolver(config.DefaultConfig(), sys, nil)
	if res == nil {
		t.Fatal("BuildResolver returned nil")
	}

	// (1) Bootstrap wins over the find hook.
	got, err := res.Resolve(ctx, "Core")
	if err != nil || got != core {
		t.Fatalf("Resolve(Core) = (%v,%v), want bootstrap type", got, err)
	}
	if sys.finds.Load() != 0 {
		t.Fatalf("find hook ran for a bootstrap type")
	}

	// (2) Find hook is the fallback.
	local, err := res.Resolve(ctx, "app.Main")
	if err != nil || local.LoaderName() != "sys" {
		t.Fatalf("Resolve(app.Main) = (%v,%v), want sys type", local, err)
	}

	// (3) Cache answers the second time.
	again, err := res.Resolve(ctx, "app.Main")
	if err != nil || again != local {
		t.Fatalf("cached Resolve returned (%v,%v), want %v", again, err, local)
	}
	if n := sys.finds.Load(); n != 1 {
		t.Fatalf("find hook calls = %d, want 1", n)
	}
}

// TestBuildResolver_ParentFirst asserts that a loader with a parent
// delegates before finding locally.
func TestBuildResolver_ParentFirst(t *testing.T) {
	ctx := context.Background()
	b := builder.New()
	cfg := config.DefaultConfig()

	sys := &node{name: "sys", boot: boot{}}
	app := &node{name: "app", parent: parent{res: b.BuildResolver(cfg, sys, nil)}}
	res := b.BuildResolver(cfg, app, nil)

	d, err := res.Resolve(ctx, "x.Shared")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.LoaderName() != "sys" {
		t.Fatalf("defined by %q, want sys", d.LoaderName())
	}
	if app.finds.Load() != 0 {
		t.Fatalf("child find hook ran although the parent resolved the name")
	}
}

// TestBuildResolver_Concurrency_Smoke hammers the resolver in parallel to ensure
// it is safe to call Resolve concurrently after being built.
func TestBuildResolver_Concurrency_Smoke(t *testing.T) {
	ctx := context.Background()
	sys := &node{name: "sys", boot: boot{}}
	res := builder.New().BuildResolver(config.DefaultConfig(), sys, nil)

	names := []string{"a.A", "a.B", "b.C", "D"}

	workers := runtime.GOMAXPROCS(0) * 4
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 2000; i++ {
				if _, err := res.Resolve(ctx, names[(i+id)%len(names)]); err != nil {
					t.Errorf("Resolve: %v", err)
					return
				}
			}
		}(w)
	}

	wg.Wait()
}

// Compile-time check: builder.New() must satisfy apis.Builder.
var _ apis.Builder = builder.New()
