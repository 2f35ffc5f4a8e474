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

// Config carries read-only knobs that influence loaders created by a process.
// It is passed by value and should be treated as immutable by implementations.
type Config struct {
	// OnlyIfPresent makes LoadLibrary report false instead of failing when
	// the library file does not exist.
	OnlyIfPresent bool

	// SystemAssertions is the desired assertion status answered for loaders
	// whose assertion directives were never configured.
	SystemAssertions bool

	// MaxUnwrap limits pointer unwrapping when normalizing loader
	// implementation types for the parallel-capability registry.
	MaxUnwrap int
}
