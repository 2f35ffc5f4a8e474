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
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/typedesc"
)

// NewFindStrategy creates an apis.Strategy that calls the find hook of node,
// defining through node. It is the last step of a chain: it always handles
// the name or fails.
func NewFindStrategy(node apis.Node) apis.Strategy {
	return &findStrategy{node: node}
}

// findStrategy invokes the loader-specific find hook.
type findStrategy struct {
	node apis.Node
}

// Ensure findStrategy implements apis.Strategy.
var _ apis.Strategy = (*findStrategy)(nil)

// TryResolve calls the find hook. Its errors, not-found included, propagate
// unchanged.
func (s *findStrategy) TryResolve(ctx context.Context, name string) (*typedesc.Descriptor, bool, error) {
	if s.node == nil {
		return nil, false, nil
	}
	f := s.node.Finder()
	if f == nil {
		return nil, false, errs.NotFound(name, s.node.Name())
	}
	d, err := f.Find(ctx, s.node, name)
	if err != nil {
		return nil, false, err
	}
	if d == nil {
		return nil, false, errs.NotFound(name, s.node.Name())
	}
	return d, true, nil
}
