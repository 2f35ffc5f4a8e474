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

package typedesc

import (
	"context"

	"dirpx.dev/ldx/errs"
)

// Linker is the default linker. It runs the optional Verify hook and then
// the descriptor's own idempotent Link.
type Linker struct {
	// Verify, when set, is run before the first link attempt of each type.
	// A failure is reported as a ClassFormat LinkageError and leaves the
	// type unlinked.
	Verify func(d *Descriptor) error
}

// NewLinker returns a Linker without verification.
func NewLinker() *Linker {
	return &Linker{}
}

// Link links d.
func (l *Linker) Link(ctx context.Context, d *Descriptor) error {
	if l.Verify != nil && d.State() == Unlinked {
		if err := l.Verify(d); err != nil {
			return errs.Linkage(errs.ClassFormat, d.Name(), d.LoaderName(), err)
		}
	}
	return d.Link(ctx)
}
