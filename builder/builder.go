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

package builder

import (
	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/registry"
	"dirpx.dev/ldx/resolver"
	"dirpx.dev/ldx/strategy"
)

// New creates and returns a new instance of an apis.Builder.
func New() apis.Builder {
	return &builder{}
}

// builder is an empty struct to be used as a receiver for builder methods.
type builder struct{}

// BuildRegistry builds and returns a new apis.Registry based on the provided configuration
// and pre-existing registry. If a pre-existing registry is provided, its entries are copied
// into the new registry, supertypes before the types declaring them.
func (b *builder) BuildRegistry(cfg apis.Config, preg apis.Registry, _ any) apis.Registry {
	nreg := registry.New(cfg)
	if preg == nil {
		return nreg
	}
	pending := preg.Entries()
	for len(pending) > 0 {
		rest := pending[:0]
		for _, e := range pending {
			if !nreg.Register(e.Type, e.Super) {
				rest = append(rest, e)
			}
		}
		if len(rest) == len(pending) {
			// Remaining entries reference supertypes the new registry cannot
			// normalize; drop them.
			break
		}
		pending = rest
	}
	return nreg
}

// BuildResolver builds the resolution chain of one loader: its cache, then
// the parent (or the bootstrap provider for a parentless loader), then the
// loader's find hook.
func (b *builder) BuildResolver(_ apis.Config, node apis.Node, _ any) apis.Resolver {
	var delegate apis.Strategy
	if p := node.Delegate(); p != nil {
		delegate = strategy.NewParentStrategy(p)
	} else {
		delegate = strategy.NewBootstrapStrategy(node.Bootstrap())
	}
	return resolver.New(
		strategy.NewCacheStrategy(node),
		delegate,
		strategy.NewFindStrategy(node),
	)
}
