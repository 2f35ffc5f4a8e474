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

package apis

import (
	"context"
	"io"

	"dirpx.dev/ldx/typedesc"
)

// Definer turns raw type data into a Descriptor owned by a loader.
type Definer interface {
	// Define validates and records a new type. It fails with a LinkageError
	// for malformed names, bad data or a second definition of name, and with
	// a SignerMismatchError or SealingError for package trust violations.
	Define(ctx context.Context, name string, data []byte, opts ...typedesc.Option) (*typedesc.Descriptor, error)
}

// Finder is the find hook of a concrete loader: the only extension point a
// loader implementation must supply.
type Finder interface {
	// Find locates the data for name and defines it through def. It fails
	// with a TypeNotFoundError when it has nothing for name.
	Find(ctx context.Context, def Definer, name string) (*typedesc.Descriptor, error)
}

// FinderFunc adapts a function to Finder.
type FinderFunc func(ctx context.Context, def Definer, name string) (*typedesc.Descriptor, error)

// Find calls f.
func (f FinderFunc) Find(ctx context.Context, def Definer, name string) (*typedesc.Descriptor, error) {
	return f(ctx, def, name)
}

// Delegate resolves names on behalf of a child loader.
type Delegate interface {
	// Resolve resolves name, linking it when link is true.
	Resolve(ctx context.Context, name string, link bool) (*typedesc.Descriptor, error)
}

// Bootstrap resolves names for parentless loaders.
type Bootstrap interface {
	// ResolveBootstrap returns the bootstrap type for name, or a
	// TypeNotFoundError.
	ResolveBootstrap(ctx context.Context, name string) (*typedesc.Descriptor, error)
}

// Linker prepares a resolved type for use. Linking twice is a no-op.
type Linker interface {
	Link(ctx context.Context, d *typedesc.Descriptor) error
}

// Node is the view of a loader that a Builder needs to assemble its
// resolution chain.
type Node interface {
	Definer
	// Name returns the loader name, used in errors and logs.
	Name() string
	// FindLoaded returns the type cached for name.
	FindLoaded(name string) (*typedesc.Descriptor, bool)
	// Delegate returns the parent, or nil for a parentless loader.
	Delegate() Delegate
	// Bootstrap returns the bootstrap provider of the loader's process.
	Bootstrap() Bootstrap
	// Finder returns the loader's find hook.
	Finder() Finder
}

// ResourceProvider supplies raw bytes by resource path ("a/b/C.class").
type ResourceProvider interface {
	// Open returns the named resource. Missing resources fail with an
	// error wrapping fs.ErrNotExist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// LibraryFinder maps a short native library name to an absolute path.
// A find hook may implement it to take part in library lookup.
type LibraryFinder interface {
	FindLibrary(name string) (path string, ok bool)
}

// Attacher is the OS-level library attach primitive.
type Attacher interface {
	// Attach loads the library at path and returns an opaque handle.
	// The context is passed on to library initialization, so a library may
	// request further attachments on the same call chain.
	Attach(ctx context.Context, path string) (any, error)
	// Detach releases a handle returned by Attach.
	Detach(handle any) error
}

// Directives is a set of assertion directives.
type Directives struct {
	// Default is the loader-wide default status.
	Default bool `json:"default"`
	// Packages maps package names to a status; "" is the unnamed package.
	// A package entry also covers its subpackages.
	Packages map[string]bool `json:"packages,omitempty"`
	// Classes maps binary names to a status.
	Classes map[string]bool `json:"classes,omitempty"`
}

// DirectiveSource supplies the directives a loader's assertion store is
// populated with when it first becomes configured.
type DirectiveSource interface {
	Directives() Directives
}

// SystemAssertions answers the desired assertion status for loaders whose
// directives were never configured.
type SystemAssertions interface {
	DesiredAssertionStatus(name string) bool
}
