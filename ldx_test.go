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
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/builder"
	"dirpx.dev/ldx/config"
	"dirpx.dev/ldx/loader"
	"dirpx.dev/ldx/registry"
	"dirpx.dev/ldx/typedesc"
)

// ---------------------- Helpers ----------------------

// Reset to a clean snapshot using our test builder.
// This fully replaces builder, config, ext and rebuilds registry/process.
// Pins are reset because we pass nil reg/proc.
func resetWithBuilder(tb testing.TB, b apis.Builder, cfg apis.Config, ext any) {
	tb.Helper()
	SetAll(&cfg, ext, nil, nil, b)
}

// ---------------------- Test doubles (mocks) ----------------------

type mockBuilder struct {
	mu         sync.Mutex
	lastCfg    apis.Config
	lastExt    any
	regCounter int
	resCounter int
	inner      apis.Builder
}

func newMockBuilder() *mockBuilder { return &mockBuilder{inner: builder.New()} }

func (b *mockBuilder) BuildRegistry(cfg apis.Config, prev apis.Registry, ext any) apis.Registry {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastCfg, b.lastExt = cfg, ext
	b.regCounter++
	return b.inner.BuildRegistry(cfg, prev, ext)
}

func (b *mockBuilder) BuildResolver(cfg apis.Config, node apis.Node, ext any) apis.Resolver {
	b.mu.Lock()
	b.resCounter++
	b.mu.Unlock()
	return b.inner.BuildResolver(cfg, node, ext)
}

func (b *mockBuilder) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regCounter, b.resCounter
}

type nilBuilder struct{ mockBuilder }

func (*nilBuilder) BuildRegistry(apis.Config, apis.Registry, any) apis.Registry { return nil }

type stubFinder struct{}

func (stubFinder) Find(context.Context, apis.Definer, string) (*typedesc.Descriptor, error) {
	return nil, nil
}

// ---------------------- Tests ----------------------

func TestDefaults(t *testing.T) {
	if Process() == nil || Registry() == nil || Builder() == nil {
		t.Fatalf("default snapshot incomplete")
	}
	if Process().Registry() != Registry() {
		t.Fatalf("default process does not use the global registry")
	}
}

func TestSetConfig_Rebuilds_Unpinned(t *testing.T) {
	b := newMockBuilder()
	resetWithBuilder(t, b, config.DefaultConfig(), nil)

	s1Reg := Registry()
	s1Proc := Process()

	SetConfig(config.NewConfig(config.WithOnlyIfPresent(true), config.WithMaxUnwrap(4)))

	if Registry() == s1Reg {
		t.Fatalf("registry was not rebuilt on SetConfig (unpinned)")
	}
	if Process() == s1Proc {
		t.Fatalf("process was not rebuilt on SetConfig (unpinned)")
	}
	if !Process().Config().OnlyIfPresent {
		t.Fatalf("rebuilt process has stale config")
	}

	b.mu.Lock()
	gotCfg := b.lastCfg
	b.mu.Unlock()
	if gotCfg.MaxUnwrap != 4 || !gotCfg.OnlyIfPresent {
		t.Fatalf("builder received wrong cfg: %+v", gotCfg)
	}
}

func TestSetConfig_CarriesBootstrap(t *testing.T) {
	resetWithBuilder(t, newMockBuilder(), config.DefaultConfig(), nil)

	boot := loader.NewBootstrap(stubFinder{}, nil)
	SetProcess(loader.New(config.DefaultConfig(), loader.WithBootstrap(boot)))
	UnpinProcess()

	SetConfig(config.NewConfig(config.WithMaxUnwrap(6)))
	if Process().Bootstrap() != apis.Bootstrap(boot) {
		t.Fatalf("bootstrap provider lost on rebuild")
	}
}

func TestSetRegistry_PinsRegistry_and_RebuildsProcessIfUnpinned(t *testing.T) {
	resetWithBuilder(t, newMockBuilder(), config.DefaultConfig(), nil)

	customReg := registry.New(config.DefaultConfig())
	SetRegistry(customReg)
	if !IsRegistryPinned() {
		t.Fatalf("SetRegistry did not pin")
	}
	if Process().Registry() != customReg {
		t.Fatalf("process was not rebuilt over the pinned registry")
	}

	beforeProc := Process()
	SetConfig(config.NewConfig(config.WithOnlyIfPresent(true)))

	if Registry() != customReg {
		t.Fatalf("pinned registry was rebuilt unexpectedly")
	}
	if Process() == beforeProc {
		t.Fatalf("process was not rebuilt when cfg changed and proc not pinned")
	}
}

func TestSetProcess_PinsProcess(t *testing.T) {
	resetWithBuilder(t, newMockBuilder(), config.DefaultConfig(), nil)

	custom := loader.New(config.DefaultConfig())
	SetProcess(custom)

	regBefore := Registry()
	SetConfig(config.NewConfig(config.WithOnlyIfPresent(true)))

	if Process() != custom {
		t.Fatalf("pinned process was rebuilt unexpectedly")
	}
	if Registry() == regBefore {
		t.Fatalf("registry was not rebuilt on SetConfig when process is pinned")
	}
}

func TestSetBuilder_Rebuilds_Only_Unpinned(t *testing.T) {
	a := newMockBuilder()
	resetWithBuilder(t, a, config.DefaultConfig(), nil)

	SetProcess(Process())
	regBefore := Registry()
	procBefore := Process()

	b := newMockBuilder()
	SetBuilder(b)

	if Builder() != apis.Builder(b) {
		t.Fatalf("builder not swapped")
	}
	if Registry() == regBefore {
		t.Fatalf("registry did not rebuild after SetBuilder (unpinned)")
	}
	if Process() != procBefore {
		t.Fatalf("pinned process was rebuilt after SetBuilder")
	}
	if n, _ := b.counts(); n != 1 {
		t.Fatalf("new builder BuildRegistry calls = %d, want 1", n)
	}
}

func TestSetExt_Rebuilds_Unpinned_and_PassesValue(t *testing.T) {
	b := newMockBuilder()
	resetWithBuilder(t, b, config.DefaultConfig(), nil)

	type extCfg struct{ X int }
	SetExt(extCfg{X: 42})

	b.mu.Lock()
	got := b.lastExt
	b.mu.Unlock()
	ec, ok := got.(extCfg)
	if !ok || ec.X != 42 {
		t.Fatalf("builder did not receive ext properly: %#v", got)
	}
	if v, ok := ExtAs[extCfg](); !ok || v.X != 42 {
		t.Fatalf("ExtAs = %#v, %v", v, ok)
	}
	if e, ok := Process().Ext().(extCfg); !ok || e.X != 42 {
		t.Fatalf("process did not receive ext: %#v", Process().Ext())
	}

	// Pin both and ensure no rebuild on SetExt.
	PinRegistry()
	PinProcess()
	rBefore, _ := b.counts()
	procBefore := Process()
	SetExt(extCfg{X: 7})
	rAfter, _ := b.counts()
	if rAfter != rBefore || Process() != procBefore {
		t.Fatalf("SetExt should not rebuild when both layers are pinned")
	}
}

func TestUnpin_Allows_Rebuild_After(t *testing.T) {
	resetWithBuilder(t, newMockBuilder(), config.DefaultConfig(), nil)

	PinRegistry()
	PinProcess()
	if !IsRegistryPinned() || !IsProcessPinned() {
		t.Fatalf("pins not recorded")
	}

	reg1 := Registry()
	proc1 := Process()
	SetConfig(config.NewConfig(config.WithMaxUnwrap(4)))
	if Registry() != reg1 || Process() != proc1 {
		t.Fatalf("pinned layers should not rebuild on SetConfig")
	}

	UnpinRegistry()
	UnpinProcess()
	SetConfig(config.NewConfig(config.WithMaxUnwrap(6)))
	if Registry() == reg1 {
		t.Fatalf("registry should rebuild after UnpinRegistry+SetConfig")
	}
	if Process() == proc1 {
		t.Fatalf("process should rebuild after UnpinProcess+SetConfig")
	}
}

func TestSetAll_NilRegistryPanics(t *testing.T) {
	good := newMockBuilder()
	resetWithBuilder(t, good, config.DefaultConfig(), nil)
	defer resetWithBuilder(t, good, config.DefaultConfig(), nil)

	defer func() {
		if r := recover(); r != ErrNilRegistry {
			t.Fatalf("recover() = %v, want ErrNilRegistry", r)
		}
	}()
	SetBuilder(&nilBuilder{})
}

func TestWrappers_UseGlobalProcess(t *testing.T) {
	resetWithBuilder(t, newMockBuilder(), config.DefaultConfig(), nil)

	l, err := NewLoader("app", nil, stubFinder{})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	if l.Process() != Process() {
		t.Fatalf("loader bound to a different process")
	}
	defer l.Close()

	if _, err := Resolve(context.Background(), "com.acme.Missing", false); err == nil {
		t.Fatalf("Resolve of unknown type succeeded")
	}
	if ok, err := LoadLibrary(context.Background(), "/nonexistent/libx.so"); ok || err == nil {
		t.Fatalf("LoadLibrary of missing file = %v, %v", ok, err)
	}
	if len(Libraries()) != 0 {
		t.Fatalf("Libraries() = %v, want none", Libraries())
	}
}

func TestResolve_Concurrent_With_SetConfig(t *testing.T) {
	resetWithBuilder(t, newMockBuilder(), config.DefaultConfig(), nil)

	done := make(chan struct{})
	var wg sync.WaitGroup

	readers := runtime.GOMAXPROCS(0) * 4
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = Resolve(context.Background(), "com.acme.T"+strconv.Itoa(id), false)
				_ = Registry().Count()
			}
		}(i)
	}

	go func() {
		for i := 0; i < 20; i++ {
			SetConfig(config.NewConfig(config.WithMaxUnwrap(4 + i%5)))
			time.Sleep(time.Millisecond)
		}
		close(done)
	}()

	wg.Wait()
	<-done
}
