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
	"log/slog"

	slogcontext "github.com/veqryn/slog-context"

	"dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/typedesc"
)

// NewParentStrategy creates an apis.Strategy that delegates to a parent
// loader without linking. A nil parent never handles anything.
func NewParentStrategy(parent apis.Delegate) apis.Strategy {
	return &parentStrategy{parent: parent}
}

// NewBootstrapStrategy creates an apis.Strategy that asks the bootstrap
// provider. It is used in place of the parent step by parentless loaders.
func NewBootstrapStrategy(boot apis.Bootstrap) apis.Strategy {
	return &bootstrapStrategy{boot: boot}
}

type parentStrategy struct {
	parent apis.Delegate
}

type bootstrapStrategy struct {
	boot apis.Bootstrap
}

var (
	_ apis.Strategy = (*parentStrategy)(nil)
	_ apis.Strategy = (*bootstrapStrategy)(nil)
)

// TryResolve asks the parent. Not-found falls through; anything else stops
// the chain.
func (s *parentStrategy) TryResolve(ctx context.Context, name string) (*typedesc.Descriptor, bool, error) {
	if s.parent == nil {
		return nil, false, nil
	}
	return swallowNotFound(ctx, "parent", name)(s.parent.Resolve(ctx, name, false))
}

// TryResolve asks the bootstrap provider with the same rules as the parent
// step.
func (s *bootstrapStrategy) TryResolve(ctx context.Context, name string) (*typedesc.Descriptor, bool, error) {
	if s.boot == nil {
		return nil, false, nil
	}
	return swallowNotFound(ctx, "bootstrap", name)(s.boot.ResolveBootstrap(ctx, name))
}

func swallowNotFound(ctx context.Context, step, name string) func(*typedesc.Descriptor, error) (*typedesc.Descriptor, bool, error) {
	return func(d *typedesc.Descriptor, err error) (*typedesc.Descriptor, bool, error) {
		switch {
		case err == nil && d != nil:
			return d, true, nil
		case err == nil, errs.IsNotFound(err):
			slogcontext.FromCtx(ctx).DebugContext(ctx, "delegation missed",
				slog.String("realm", "resolve"), slog.String("step", step), slog.String("name", name))
			return nil, false, nil
		default:
			return nil, false, err
		}
	}
}
