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

package resolver_test

import (
	"context"
	"errors"
	"testing"

	apis "dirpx.dev/ldx/apis"
	"dirpx.dev/ldx/errs"
	"dirpx.dev/ldx/hierarchy"
	"dirpx.dev/ldx/resolver"
	"dirpx.dev/ldx/typedesc"
)

// step is a scripted strategy that records whether it ran.
type step struct {
	d    *typedesc.Descriptor
	ok   bool
	err  error
	hits *int
}

func (s step) TryResolve(context.Context, string) (*typedesc.Descriptor, bool, error) {
	if s.hits != nil {
		*s.hits++
	}
	return s.d, s.ok, s.err
}

func TestChain_FirstHandledWins(t *testing.T) {
	ctx := context.Background()
	a := typedesc.New("A", hierarchy.Bootstrap, "bootstrap", nil)
	b := typedesc.New("A", 1, "app", nil)

	var after int
	r := resolver.New(nil, step{}, step{d: a, ok: true}, step{d: b, ok: true, hits: &after})

	got, err := r.Resolve(ctx, "A")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != a {
		t.Fatalf("got %v, want %v", got, a)
	}
	if after != 0 {
		t.Fatalf("steps after a handled step must not run")
	}
}

func TestChain_ErrorStops(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	var after int
	r := resolver.New(step{err: boom}, step{ok: true, hits: &after})
	if _, err := r.Resolve(ctx, "A"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if after != 0 {
		t.Fatalf("steps after a failing step must not run")
	}
}

func TestChain_Exhausted(t *testing.T) {
	r := resolver.New(step{}, step{})
	_, err := r.Resolve(context.Background(), "x.Y")
	var nf *errs.TypeNotFoundError
	if !errors.As(err, &nf) || nf.Name != "x.Y" {
		t.Fatalf("err = %v, want not found for x.Y", err)
	}

	if _, err := resolver.New().Resolve(context.Background(), "x.Y"); !errs.IsNotFound(err) {
		t.Fatalf("empty chain: err = %v, want not found", err)
	}
}

var _ apis.Strategy = step{}
