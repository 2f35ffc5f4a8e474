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

// Package setup assembles a process and its loader tree from a
// configuration file.
package setup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"

	slogcontext "github.com/veqryn/slog-context"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/assertions"
	"dirpx.dev/ldx/config"
	"dirpx.dev/ldx/finder"
	"dirpx.dev/ldx/loader"
	"dirpx.dev/ldx/resources"
	uref "dirpx.dev/ldx/utils/reflect"
)

// Parallel is the find hook of loaders declared parallel. Its type is
// registered as parallel-capable in every process built here.
type Parallel struct {
	*finder.Resources
}

// ParallelType is the implementation type of Parallel.
var ParallelType = reflect.TypeFor[*Parallel]()

// ErrUnknownLoader is returned by Env.Loader for undeclared names.
var ErrUnknownLoader = errors.New("setup: unknown loader")

// Env is a process with the loaders of one configuration file.
type Env struct {
	Process *loader.Process
	loaders map[string]*loader.Loader
	order   []string
}

// Load reads path and builds its environment.
func Load(ctx context.Context, path string) (*Env, error) {
	f, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Build(ctx, f)
}

// Build creates the process described by f and its loaders in declaration
// order.
func Build(ctx context.Context, f *config.File) (*Env, error) {
	logger := slogcontext.FromCtx(ctx).With(slog.String("realm", "setup"))
	cfg := f.Config()

	directives, err := assertions.ParseDirectives(f.Assertions)
	if err != nil {
		return nil, err
	}

	var system apis.SystemAssertions = assertions.System(cfg.SystemAssertions)
	if len(f.Assertions) > 0 {
		system = directives
	}

	opts := []loader.Option{
		loader.WithSystemAssertions(system),
		loader.WithDirectiveSource(directives),
		loader.WithLibraryPaths(f.LibraryPaths...),
	}
	for _, name := range f.Builtins {
		opts = append(opts, loader.WithBuiltinLibrary(name, nil))
	}
	if f.Bootstrap != nil {
		src, err := newFinder(f.Bootstrap)
		if err != nil {
			return nil, fmt.Errorf("setup: bootstrap: %w", err)
		}
		opts = append(opts, loader.WithBootstrap(
			loader.NewBootstrap(src, system)))
	}

	p := loader.New(cfg, opts...)
	if !p.RegisterParallelCapable(ParallelType, nil) {
		return nil, fmt.Errorf("setup: registering %s as parallel-capable failed", uref.Label(ParallelType))
	}

	env := &Env{Process: p, loaders: make(map[string]*loader.Loader, len(f.Loaders))}
	for _, spec := range f.Loaders {
		l, err := env.newLoader(spec)
		if err != nil {
			env.Close()
			return nil, err
		}
		logger.DebugContext(ctx, "loader configured",
			slog.String("loader", spec.Name),
			slog.String("parent", spec.Parent),
			slog.String("finder", uref.Label(reflect.TypeOf(l.Finder()))),
			slog.Bool("parallel", l.IsParallelCapable()),
		)
	}
	if f.System != "" {
		p.SetSystem(env.loaders[f.System])
	}
	return env, nil
}

func (e *Env) newLoader(spec config.LoaderSpec) (*loader.Loader, error) {
	var f apis.Finder
	if spec.Source != nil {
		res, err := newFinder(spec.Source)
		if err != nil {
			return nil, fmt.Errorf("setup: loader %q: %w", spec.Name, err)
		}
		f = res
		if spec.Parallel {
			f = &Parallel{Resources: res}
		}
	}

	var parent *loader.Loader
	if spec.Parent != "" {
		parent = e.loaders[spec.Parent]
	}
	l, err := e.Process.NewLoader(spec.Name, parent, f)
	if err != nil {
		return nil, fmt.Errorf("setup: loader %q: %w", spec.Name, err)
	}
	e.loaders[spec.Name] = l
	e.order = append(e.order, spec.Name)

	for _, pkg := range spec.Packages {
		if _, err := l.DefinePackage(pkg.Name, pkg.Info); err != nil {
			return nil, fmt.Errorf("setup: loader %q: %w", spec.Name, err)
		}
	}
	return l, nil
}

func newFinder(src *config.Source) (*finder.Resources, error) {
	fsys, err := resources.Dir(src.Path, src.Include, src.Exclude)
	if err != nil {
		return nil, err
	}
	return finder.New(fsys,
		finder.WithCodeSource(src.Path),
		finder.WithLibraryDirs(src.Path),
	), nil
}

// Loader returns the loader declared as name. An empty name selects the
// system loader.
func (e *Env) Loader(name string) (*loader.Loader, error) {
	if name == "" {
		if l := e.Process.System(); l != nil {
			return l, nil
		}
		return nil, fmt.Errorf("%w: no system loader configured", ErrUnknownLoader)
	}
	l, ok := e.loaders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLoader, name)
	}
	return l, nil
}

// Loaders returns the loaders in declaration order.
func (e *Env) Loaders() []*loader.Loader {
	out := make([]*loader.Loader, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.loaders[name])
	}
	return out
}

// Close closes the loaders, children first.
func (e *Env) Close() error {
	var errs []error
	for _, name := range slices.Backward(e.order) {
		errs = append(errs, e.loaders[name].Close())
	}
	return errors.Join(errs...)
}
