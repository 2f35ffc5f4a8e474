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
	"errors"
	"log/slog"
	"slices"
	"sync"

	slogcontext "github.com/veqryn/slog-context"

	"dirpx.dev/ldx/certs"
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/hierarchy"
	"dirpx.dev/ldx/typedesc"
	"dirpx.dev/ldx/utils/names"
)

var errEmptyData = errors.New("empty type data")

// space is the namespace of one defining loader: its loaded-type cache,
// the types it defined, its packages and its signer ledger.
type space struct {
	id    hierarchy.ID
	name  string
	owner any

	// classes maps a name to the type this loader resolved or defined for
	// it. Entries are only ever added with LoadOrStore.
	classes  sync.Map // map[string]*typedesc.Descriptor
	ledger   *certs.Ledger
	packages *certs.Packages

	// assertions answers the desired assertion status of defined types.
	assertions func(name string) bool

	mu       sync.Mutex
	retained []*typedesc.Descriptor
}

func newSpace(id hierarchy.ID, name string, owner any, assertions func(string) bool) *space {
	return &space{
		id:         id,
		name:       name,
		owner:      owner,
		ledger:     certs.NewLedger(),
		packages:   certs.NewPackages(),
		assertions: assertions,
	}
}

// define validates data and records a new type for name.
func (s *space) define(ctx context.Context, name string, data []byte, opts []typedesc.Option) (*typedesc.Descriptor, error) {
	if err := names.Check(name); err != nil {
		return nil, errs.Linkage(errs.Malformed, name, s.name, err)
	}
	if len(data) == 0 {
		return nil, errs.Linkage(errs.ClassFormat, name, s.name, errEmptyData)
	}
	// Rejected before the ledger sees the signers; the LoadOrStore below
	// still settles races with a define outside any resolution.
	if _, ok := s.classes.Load(name); ok {
		return nil, errs.Linkage(errs.DuplicateDefinition, name, s.name, nil)
	}
	opts = append(slices.Clip(opts), typedesc.WithOwner(s.owner))
	if s.assertions != nil {
		opts = append(opts, typedesc.WithAssertionSource(s.assertions))
	}
	d := typedesc.New(name, s.id, s.name, data, opts...)

	if pkg, ok := s.packages.Get(d.Package()); ok {
		if err := certs.CheckSealing(pkg, name, d.CodeSource()); err != nil {
			return nil, err
		}
	}
	if err := s.ledger.CheckAndRecord(d.Package(), name, d.Signers()); err != nil {
		return nil, err
	}
	if _, loaded := s.classes.LoadOrStore(name, d); loaded {
		return nil, errs.Linkage(errs.DuplicateDefinition, name, s.name, nil)
	}

	s.mu.Lock()
	s.retained = append(s.retained, d)
	s.mu.Unlock()

	slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "defined type",
		slog.String("realm", "loader"),
		slog.String("loader", s.name),
		slog.String("name", name),
		slog.String("digest", d.Digest().String()),
	)
	return d, nil
}

// record caches d as the result for name and returns the cached entry,
// which is d unless another result was recorded first.
func (s *space) record(name string, d *typedesc.Descriptor) *typedesc.Descriptor {
	prev, _ := s.classes.LoadOrStore(name, d)
	return prev.(*typedesc.Descriptor)
}

func (s *space) findLoaded(name string) (*typedesc.Descriptor, bool) {
	d, ok := s.classes.Load(name)
	if !ok {
		return nil, false
	}
	return d.(*typedesc.Descriptor), true
}

func (s *space) types() []*typedesc.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.retained)
}
