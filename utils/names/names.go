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

package names

import (
	"errors"
	"strings"
)

// Separator splits package segments of a binary name.
const Separator = "."

// ResourceSuffix is appended to resource paths derived from binary names.
const ResourceSuffix = ".class"

var (
	// ErrEmptyName is returned for an empty binary name.
	ErrEmptyName = errors.New("names: empty binary name")
	// ErrInvalidName is returned for a binary name that contains a path
	// separator, an array marker or an empty segment.
	ErrInvalidName = errors.New("names: invalid binary name")
)

// Check validates a binary name such as "com.acme.Outer$Inner".
func Check(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if strings.ContainsAny(name, "/[;") {
		return ErrInvalidName
	}
	for _, seg := range strings.Split(name, Separator) {
		if seg == "" {
			return ErrInvalidName
		}
	}
	return nil
}

// PackageOf returns the package of a binary name; "" is the unnamed package.
func PackageOf(name string) string {
	if i := strings.LastIndex(name, Separator); i >= 0 {
		return name[:i]
	}
	return ""
}

// Enclosing returns the packages enclosing name from most to least specific.
// A name in the unnamed package yields [""].
func Enclosing(name string) []string {
	pkg := PackageOf(name)
	if pkg == "" {
		return []string{""}
	}
	out := make([]string, 0, strings.Count(pkg, Separator)+1)
	for {
		out = append(out, pkg)
		i := strings.LastIndex(pkg, Separator)
		if i < 0 {
			return out
		}
		pkg = pkg[:i]
	}
}

// ResourcePath maps a binary name to its resource path: "a.b.C" -> "a/b/C.class".
func ResourcePath(name string) string {
	return strings.ReplaceAll(name, Separator, "/") + ResourceSuffix
}
