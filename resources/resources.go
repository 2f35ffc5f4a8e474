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

// Package resources provides byte providers for type data and other
// loader resources, addressed by slash-separated resource paths.
package resources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	slogcontext "github.com/veqryn/slog-context"

	"dirpx.dev/ldx/apis"
)

func notExist(name string) error {
	return &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// ReadAll opens name from p and reads it completely.
func ReadAll(ctx context.Context, p apis.ResourceProvider, name string) ([]byte, error) {
	rc, err := p.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Map is an in-memory provider.
type Map struct {
	mu sync.RWMutex
	m  map[string][]byte
}

var _ apis.ResourceProvider = (*Map)(nil)

// NewMap returns a provider holding a copy of entries.
func NewMap(entries map[string][]byte) *Map {
	m := &Map{m: make(map[string][]byte, len(entries))}
	for k, v := range entries {
		m.m[k] = slices.Clone(v)
	}
	return m
}

// Put adds or replaces a resource.
func (m *Map) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[name] = slices.Clone(data)
}

// Open returns the resource called name.
func (m *Map) Open(_ context.Context, name string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.m[name]
	m.mu.RUnlock()
	if !ok {
		return nil, notExist(name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Names returns the resource names in sorted order.
func (m *Map) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.m))
	for k := range m.m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// FS is a provider over an fs.FS, filtered by include and exclude glob
// patterns. A resource is visible when it matches some include pattern (or
// there are none) and no exclude pattern. "*" stops at "/", "**" does not.
type FS struct {
	fsys    fs.FS
	include []glob.Glob
	exclude []glob.Glob
}

var _ apis.ResourceProvider = (*FS)(nil)

// NewFS returns a filtered provider over fsys.
func NewFS(fsys fs.FS, include, exclude []string) (*FS, error) {
	f := &FS{fsys: fsys}
	var err error
	if f.include, err = compile(include); err != nil {
		return nil, err
	}
	if f.exclude, err = compile(exclude); err != nil {
		return nil, err
	}
	return f, nil
}

// Dir returns a filtered provider over the directory tree rooted at dir.
func Dir(dir string, include, exclude []string) (*FS, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("resources: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("resources: %s is not a directory", dir)
	}
	return NewFS(os.DirFS(dir), include, exclude)
}

func compile(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for i, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("resources: failed to compile glob pattern %q at index %d: %w", p, i, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Visible reports whether name passes the filters.
func (f *FS) Visible(name string) bool {
	if len(f.include) > 0 && !slices.ContainsFunc(f.include, func(g glob.Glob) bool { return g.Match(name) }) {
		return false
	}
	return !slices.ContainsFunc(f.exclude, func(g glob.Glob) bool { return g.Match(name) })
}

// Open returns the resource called name if it is visible.
func (f *FS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name = strings.TrimPrefix(name, "/")
	if !fs.ValidPath(name) || !f.Visible(name) {
		slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "resource filtered",
			slog.String("realm", "resources"), slog.String("name", name))
		return nil, notExist(name)
	}
	rc, err := f.fsys.Open(name)
	if err != nil {
		return nil, err
	}
	if fi, err := rc.Stat(); err == nil && fi.IsDir() {
		_ = rc.Close()
		return nil, notExist(name)
	}
	return rc, nil
}

// List returns every visible regular file with the given suffix, sorted.
func (f *FS) List(suffix string) ([]string, error) {
	var out []string
	err := fs.WalkDir(f.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.HasSuffix(p, suffix) && f.Visible(p) {
			out = append(out, p)
		}
		return nil
	})
	return out, err
}
