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

package strategy

import (
	"context"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/typedesc"
)

// NewCacheStrategy creates an apis.Strategy that answers from the loaded-type
// cache of node.
func NewCacheStrategy(node apis.Node) apis.Strategy {
	return &cacheStrategy{node: node}
}

// cacheStrategy consults the loader's already-loaded types (no delegation).
type cacheStrategy struct {
	node apis.Node
}

// Ensure cacheStrategy implements apis.Strategy.
var _ apis.Strategy = (*cacheStrategy)(nil)

// TryResolve looks up name in the cache.
func (s *cacheStrategy) TryResolve(_ context.Context, name string) (*typedesc.Descriptor, bool, error) {
	if s.node == nil {
		return nil, false, nil
	}
	d, ok := s.node.FindLoaded(name)
	return d, ok, nil
}
