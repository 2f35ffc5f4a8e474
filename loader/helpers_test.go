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

package loader_test

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"reflect"
	"sync"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/typedesc"
	"dirpx.dev/ldx/utils/names"
)

// mapFinder defines types from a map and counts its calls per name. A hook
// registered for a name runs before the type is defined.
type mapFinder struct {
	loader string
	data   map[string][]byte
	opts   map[string][]typedesc.Option
	hooks  map[string]func(ctx context.Context) error
	libs   map[string]string

	mu    sync.Mutex
	calls map[string]int
}

func newFinder(loader string, data map[string]string) *mapFinder {
	f := &mapFinder{
		loader: loader,
		data:   map[string][]byte{},
		opts:   map[string][]typedesc.Option{},
		hooks:  map[string]func(context.Context) error{},
		libs:   map[string]string{},
		calls:  map[string]int{},
	}
	for k, v := range data {
		f.data[k] = []byte(v)
	}
	return f
}

func (f *mapFinder) Find(ctx context.Context, def apis.Definer, name string) (*typedesc.Descriptor, error) {
	f.mu.Lock()
	f.calls[name]++
	hook := f.hooks[name]
	data, ok := f.data[name]
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, errs.NotFound(name, f.loader)
	}
	return def.Define(ctx, name, data, f.opts[name]...)
}

func (f *mapFinder) Open(_ context.Context, name string) (io.ReadCloser, error) {
	for k, v := range f.data {
		if names.ResourcePath(k) == name {
			return io.NopCloser(bytes.NewReader(v)), nil
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

func (f *mapFinder) FindLibrary(name string) (string, bool) {
	p, ok := f.libs[name]
	return p, ok
}

func (f *mapFinder) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// parallelFinder is a mapFinder whose type registers as parallel-capable.
type parallelFinder struct{ *mapFinder }

var (
	mapFinderType      = reflect.TypeFor[*mapFinder]()
	parallelFinderType = reflect.TypeFor[*parallelFinder]()
)

// attacher counts attach calls. Detach fails with detachErr when set.
type attacher struct {
	mu        sync.Mutex
	attached  map[string]int
	detachErr error
}

func (a *attacher) Attach(_ context.Context, path string) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attached == nil {
		a.attached = map[string]int{}
	}
	a.attached[path]++
	return path, nil
}

func (a *attacher) Detach(any) error { return a.detachErr }

// syncBuffer is a bytes.Buffer safe for a log handler and a test reading
// it concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (a *attacher) calls(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attached[path]
}
