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

// Package finder provides a find hook that defines types from the bytes of
// a resource provider.
package finder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"reflect"

	slogcontext "github.com/veqryn/slog-context"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/natives"
	"dirpx.dev/ldx/typedesc"
	"dirpx.dev/ldx/utils/names"
)

// Type is the implementation type of Resources, for parallel-capability
// registration.
var Type = reflect.TypeFor[*Resources]()

// Resources finds "a.b.C" at resource path "a/b/C.class".
type Resources struct {
	provider   apis.ResourceProvider
	codeSource string
	libDirs    []string
	libs       map[string]string
	typeOpts   func(name string) []typedesc.Option
}

var (
	_ apis.Finder           = (*Resources)(nil)
	_ apis.ResourceProvider = (*Resources)(nil)
	_ apis.LibraryFinder    = (*Resources)(nil)
)

// Option configures Resources.
type Option func(*Resources)

// WithCodeSource records src as the code source of every defined type.
func WithCodeSource(src string) Option {
	return func(r *Resources) { r.codeSource = src }
}

// WithLibraryDirs adds directories searched by FindLibrary.
func WithLibraryDirs(dirs ...string) Option {
	return func(r *Resources) { r.libDirs = append(r.libDirs, dirs...) }
}

// WithLibraries maps short library names to paths.
func WithLibraries(libs map[string]string) Option {
	return func(r *Resources) { maps.Copy(r.libs, libs) }
}

// WithTypeOptions supplies extra definition options per type, such as
// signers or an initializer.
func WithTypeOptions(fn func(name string) []typedesc.Option) Option {
	return func(r *Resources) { r.typeOpts = fn }
}

// New returns a finder over p.
func New(p apis.ResourceProvider, opts ...Option) *Resources {
	r := &Resources{provider: p, libs: make(map[string]string)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Find reads the data of name and defines it through def.
func (r *Resources) Find(ctx context.Context, def apis.Definer, name string) (*typedesc.Descriptor, error) {
	if err := names.Check(name); err != nil {
		return nil, &errs.TypeNotFoundError{Name: name, Err: err}
	}
	path := names.ResourcePath(name)
	rc, err := r.provider.Open(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &errs.TypeNotFoundError{Name: name, Err: err}
		}
		return nil, fmt.Errorf("finder: opening %s: %w", path, err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return nil, fmt.Errorf("finder: reading %s: %w", path, err)
	}

	slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "found type data",
		slog.String("realm", "finder"),
		slog.String("name", name),
		slog.String("path", path),
		slog.Int("size", len(data)),
	)

	var opts []typedesc.Option
	if r.codeSource != "" {
		opts = append(opts, typedesc.WithCodeSource(r.codeSource))
	}
	if r.typeOpts != nil {
		opts = append(opts, r.typeOpts(name)...)
	}
	return def.Define(ctx, name, data, opts...)
}

// Open returns a resource of the underlying provider.
func (r *Resources) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return r.provider.Open(ctx, name)
}

// FindLibrary maps a short library name to a path: explicit mappings
// first, then the library directories.
func (r *Resources) FindLibrary(name string) (string, bool) {
	if p, ok := r.libs[name]; ok {
		return p, true
	}
	return natives.Locate(name, r.libDirs)
}
