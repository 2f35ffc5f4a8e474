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

package natives

import (
	"context"
	"debug/elf"
	"fmt"
	"plugin"
)

// OnLoadSymbol is the optional initialization function looked up in a
// plugin after it opens. It must have the type func(context.Context) error.
const OnLoadSymbol = "OnLoad"

// PluginAttacher attaches Go plugins built with -buildmode=plugin.
// Plugins cannot be unloaded, so Detach does nothing.
type PluginAttacher struct{}

// Attach checks that path is an ELF shared object, opens it and runs its
// OnLoad function if it exports one.
func (PluginAttacher) Attach(ctx context.Context, path string) (any, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("natives: %s: %w", path, err)
	}
	typ := f.Type
	_ = f.Close()
	if typ != elf.ET_DYN {
		return nil, fmt.Errorf("natives: %s: not a shared object (%s)", path, typ)
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	if sym, err := p.Lookup(OnLoadSymbol); err == nil {
		fn, ok := sym.(func(context.Context) error)
		if !ok {
			return nil, fmt.Errorf("natives: %s: %s has type %T", path, OnLoadSymbol, sym)
		}
		if err := fn(ctx); err != nil {
			return nil, fmt.Errorf("natives: %s: %s: %w", path, OnLoadSymbol, err)
		}
	}
	return p, nil
}

// Detach is a no-op.
func (PluginAttacher) Detach(any) error { return nil }
