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

	"dirpx.dev/ldx/typedesc"
)

// Strategy is one step of a loader's resolution chain (cache, delegation,
// find). A Resolver runs strategies in order.
type Strategy interface {
	// TryResolve attempts to resolve name. It returns (d, true, nil) when
	// handled; (nil, false, nil) to fall through to the next step; or a
	// non-nil error that stops the chain.
	TryResolve(ctx context.Context, name string) (d *typedesc.Descriptor, handled bool, err error)
}
