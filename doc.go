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

// Package ldx provides a process-wide runtime type loading service.
//
// A loader turns a fully qualified type name into a type descriptor, either
// by delegating to its parent (or to the bootstrap provider) or by finding
// the type data itself through a find hook. Loaders form a tree rooted at
// the bootstrap provider; each descriptor belongs to exactly one defining
// loader and is cached by every loader that initiated a resolution for it.
//
// # Design
//
// The core of ldx is a read-mostly global snapshot (state). The snapshot
// holds five things:
//
//   - Config: process knobs (OnlyIfPresent for native libraries, the
//     system assertion status, and the unwrap depth used to normalize
//     loader types).
//
//   - Registry: the parallel-capability registry. A find hook type that is
//     registered here gets one lock per type name; every other loader uses
//     a single coarse lock. Registration requires the declared supertype
//     to be registered first.
//
//   - Process: the loader arena, the bootstrap provider, the native
//     library bookkeeping and the system loader. Loaders are created in a
//     process and stay bound to it.
//
//   - Builder: a pluggable factory that constructs the Registry and the
//     per-loader resolution chain (cache, then parent or bootstrap, then
//     find).
//
//   - Ext: an opaque extension payload handed to the Builder.
//
// Readers load the current snapshot atomically and never take locks.
// Writers take a short build mutex, assemble a new snapshot and publish it.
//
// # Global API
//
//  1. Read helpers:
//
//     Resolve(ctx, name, link)
//     NewLoader(name, parent, finder, opts...)
//     LoadLibrary(ctx, name)
//     Libraries()
//     RegisterParallelCapable(t, super)
//     Config() / Registry() / Process() / Builder() / ExtAs[T]()
//
//  2. Mutation helpers:
//
//     SetConfig(cfg)
//     SetBuilder(b)
//     SetExt(ext)
//     SetRegistry(reg)
//     SetProcess(p)
//     PinRegistry() / UnpinRegistry()
//     PinProcess() / UnpinProcess()
//     SetAll(...)
//
// # Pinning
//
// SetRegistry and SetProcess install and pin a layer. Pinned layers are
// not rebuilt by SetConfig, SetBuilder or SetExt until unpinned. A rebuilt
// process keeps the bootstrap provider of the one it replaces; loaders
// created on the previous process keep working against it.
//
// # Usage pattern in a binary
//
//  1. Let ldx init with the default builder and config.
//
//  2. Optionally install a process built from a configuration file
//     (see internal/setup and cmd/ldx):
//
//     ldx.SetProcess(proc)
//
//  3. Create loaders and resolve types:
//
//     src, _ := resources.Dir("app", nil, nil)
//     app, _ := ldx.NewLoader("app", nil, finder.New(src))
//     d, err := app.Resolve(ctx, "com.acme.Main", true)
//
//  4. In tests, call ldx.SetAll(...) to get deterministic snapshots
//     and to inject a mock Builder.
package ldx
