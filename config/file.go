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

package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"sigs.k8s.io/yaml"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/certs"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://dirpx.dev/ldx/config.schema.json"

var (
	// ErrDuplicateLoader is returned when two loaders share a name.
	ErrDuplicateLoader = errors.New("ldx(config): duplicate loader name")
	// ErrUnknownParent is returned when a loader names a parent that is not
	// declared before it.
	ErrUnknownParent = errors.New("ldx(config): unknown parent loader")
	// ErrUnknownSystem is returned when the system loader is not declared.
	ErrUnknownSystem = errors.New("ldx(config): unknown system loader")
)

// File is the on-disk description of a process and its loader hierarchy.
type File struct {
	OnlyIfPresent    bool         `json:"onlyIfPresent,omitempty"`
	SystemAssertions bool         `json:"systemAssertions,omitempty"`
	MaxUnwrap        int          `json:"maxUnwrap,omitempty"`
	LibraryPaths     []string     `json:"libraryPaths,omitempty"`
	Builtins         []string     `json:"builtins,omitempty"`
	Assertions       []string     `json:"assertions,omitempty"`
	System           string       `json:"system,omitempty"`
	Bootstrap        *Source      `json:"bootstrap,omitempty"`
	Loaders          []LoaderSpec `json:"loaders,omitempty"`
}

// Source describes a directory of type data.
type Source struct {
	Path    string   `json:"path"`
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// LoaderSpec describes one loader. Parents must be declared first.
type LoaderSpec struct {
	Name     string        `json:"name"`
	Parent   string        `json:"parent,omitempty"`
	Parallel bool          `json:"parallel,omitempty"`
	Source   *Source       `json:"source,omitempty"`
	Packages []PackageSpec `json:"packages,omitempty"`
}

// PackageSpec is a package definition for a loader.
type PackageSpec struct {
	Name string `json:"name"`
	certs.Info
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// Parse decodes and validates a YAML (or JSON) configuration.
func Parse(data []byte) (*File, error) {
	raw, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("ldx(config): decoding yaml: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("ldx(config): compiling schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("ldx(config): decoding json: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("ldx(config): invalid configuration: %w", err)
	}

	f := &File{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("ldx(config): decoding configuration: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadFile reads and parses path. Relative source and library paths are
// resolved against the directory of path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ldx(config): %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.rebase(filepath.Dir(path))
	return f, nil
}

// Validate checks cross references the schema cannot express.
func (f *File) Validate() error {
	seen := make(map[string]bool, len(f.Loaders))
	for _, l := range f.Loaders {
		if seen[l.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateLoader, l.Name)
		}
		if l.Parent != "" && !seen[l.Parent] {
			return fmt.Errorf("%w: %q (loader %q)", ErrUnknownParent, l.Parent, l.Name)
		}
		seen[l.Name] = true
	}
	if f.System != "" && !seen[f.System] {
		return fmt.Errorf("%w: %q", ErrUnknownSystem, f.System)
	}
	return nil
}

// Config returns the process knobs of the file.
func (f *File) Config() apis.Config {
	opts := []Option{
		WithOnlyIfPresent(f.OnlyIfPresent),
		WithSystemAssertions(f.SystemAssertions),
	}
	if f.MaxUnwrap > 0 {
		opts = append(opts, WithMaxUnwrap(f.MaxUnwrap))
	}
	return NewConfig(opts...)
}

func (f *File) rebase(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i, p := range f.LibraryPaths {
		f.LibraryPaths[i] = abs(p)
	}
	if f.Bootstrap != nil {
		f.Bootstrap.Path = abs(f.Bootstrap.Path)
	}
	for i := range f.Loaders {
		if s := f.Loaders[i].Source; s != nil {
			s.Path = abs(s.Path)
		}
	}
}
