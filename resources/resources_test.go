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

package resources_test

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"dirpx.dev/ldx/resources"
)

func TestMap(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	src := map[string][]byte{"a/B.class": []byte("b")}
	m := resources.NewMap(src)
	src["a/B.class"][0] = 'x'

	data, err := resources.ReadAll(ctx, m, "a/B.class")
	r.NoError(err)
	r.Equal([]byte("b"), data)

	_, err = m.Open(ctx, "a/C.class")
	r.ErrorIs(err, fs.ErrNotExist)

	m.Put("a/C.class", []byte("c"))
	r.Equal([]string{"a/B.class", "a/C.class"}, m.Names())
}

func TestFS_Filters(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	fsys := fstest.MapFS{
		"com/acme/Main.class":          {Data: []byte("main")},
		"com/acme/internal/Hot.class":  {Data: []byte("hot")},
		"com/acme/internal/Cold.class": {Data: []byte("cold")},
		"README.md":                    {Data: []byte("docs")},
	}
	p, err := resources.NewFS(fsys, []string{"**.class"}, []string{"com/acme/internal/C*"})
	r.NoError(err)

	data, err := resources.ReadAll(ctx, p, "com/acme/internal/Hot.class")
	r.NoError(err)
	r.Equal([]byte("hot"), data)

	for _, hidden := range []string{"com/acme/internal/Cold.class", "README.md", "com/acme", "../x.class"} {
		_, err := p.Open(ctx, hidden)
		r.ErrorIs(err, fs.ErrNotExist, hidden)
	}

	names, err := p.List(".class")
	r.NoError(err)
	r.Equal([]string{"com/acme/Main.class", "com/acme/internal/Hot.class"}, names)
}

func TestFS_SingleStarStopsAtSeparator(t *testing.T) {
	r := require.New(t)
	p, err := resources.NewFS(fstest.MapFS{}, []string{"com/*.class"}, nil)
	r.NoError(err)
	r.True(p.Visible("com/Top.class"))
	r.False(p.Visible("com/acme/Deep.class"))
}

func TestFS_BadPattern(t *testing.T) {
	_, err := resources.NewFS(fstest.MapFS{}, []string{"[unclosed"}, nil)
	require.Error(t, err)
}

func TestDir(t *testing.T) {
	_, err := resources.Dir(t.TempDir()+"/missing", nil, nil)
	require.Error(t, err)

	p, err := resources.Dir(t.TempDir(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
}
